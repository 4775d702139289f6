/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gocaptioner/internal/domain"
	"gocaptioner/internal/storage"
)

func TestE2E_BackendSchemaAndSearch(t *testing.T) {
	db := openPGForTest(t)
	defer func() { _ = db.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	libName := fmt.Sprintf("e2e-%d", time.Now().UnixNano())
	records := []domain.CaptionRecord{
		{Name: "sunrise.png", Path: "lib/sunrise.png", Caption: "Sunrise over the city"},
		{Name: "plain.png", Path: "lib/plain.png", Caption: ""},
	}
	n, err := upsertCaptions(ctx, db, libName, records)
	if err != nil {
		t.Fatalf("push captions: %v", err)
	}
	if n != 2 {
		t.Fatalf("accepted: got %d want 2", n)
	}

	lid, err := libraryIDByName(ctx, db, libName)
	if err != nil {
		t.Fatalf("library id: %v", err)
	}

	res, err := SearchPG(ctx, db, lid, storage.SearchQuery{Text: "Sunrise"})
	if err != nil {
		t.Fatalf("searchpg: %v", err)
	}
	if len(res) != 1 || res[0].Name != "sunrise.png" {
		t.Fatalf("expected sunrise.png, got %+v", res)
	}
	if res[0].Snippet == "" {
		t.Fatalf("expected highlighted snippet, got empty")
	}

	// Re-push with an edited caption; the newer record must win.
	records[0].Caption = "Sunset over the harbor"
	if _, err := upsertCaptions(ctx, db, libName, records[:1]); err != nil {
		t.Fatalf("re-push: %v", err)
	}
	res, err = SearchPG(ctx, db, lid, storage.SearchQuery{Text: "harbor"})
	if err != nil {
		t.Fatalf("searchpg after update: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("expected updated caption to match, got %+v", res)
	}
	res, err = SearchPG(ctx, db, lid, storage.SearchQuery{Text: "Sunrise"})
	if err != nil {
		t.Fatalf("searchpg stale: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("old caption text must no longer match, got %+v", res)
	}
}
