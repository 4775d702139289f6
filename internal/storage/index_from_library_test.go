/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"testing"
	"time"

	"gocaptioner/internal/captions"
)

func TestUpdateIndexPopulatesImagesAndCaptions(t *testing.T) {
	root := t.TempDir()
	entries := seedLibrary(t, root, map[string]string{
		"img1.png": "a red ball on grass",
		"img2.jpg": "two dogs running",
		"img3.bmp": "", // no sidecar
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := UpdateIndex(ctx, root, entries, captions.FileStore{}); err != nil {
		t.Fatalf("UpdateIndex: %v", err)
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("InitOrOpenIndex: %v", err)
	}
	defer db.Close()
	n, err := CountImages(ctx, db)
	if err != nil {
		t.Fatalf("CountImages: %v", err)
	}
	if n != 3 {
		t.Fatalf("images rows = %d, want 3", n)
	}
	var capCount int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM captions`).Scan(&capCount); err != nil {
		t.Fatalf("count captions: %v", err)
	}
	if capCount != 2 {
		t.Fatalf("captions rows = %d, want 2 (img3 has no sidecar)", capCount)
	}
	// FTS sees the sidecar text
	res, err := searchDB(ctx, db, SearchQuery{Text: "dogs"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 1 || res[0].Name != "img2.jpg" {
		t.Fatalf("expected img2.jpg for 'dogs', got %+v", res)
	}
}

func TestUpsertCaptionKeepsFTSInSync(t *testing.T) {
	root := t.TempDir()
	entries := seedLibrary(t, root, map[string]string{"img1.png": "old caption text"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := UpdateIndex(ctx, root, entries, captions.FileStore{}); err != nil {
		t.Fatalf("UpdateIndex: %v", err)
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("InitOrOpenIndex: %v", err)
	}
	defer db.Close()

	e := entries[0]
	if err := UpsertCaption(ctx, db, e.Name, e.Path, "fresh wording"); err != nil {
		t.Fatalf("UpsertCaption: %v", err)
	}
	if res, err := searchDB(ctx, db, SearchQuery{Text: "fresh"}); err != nil || len(res) != 1 {
		t.Fatalf("expected new text to match, res=%v err=%v", res, err)
	}
	if res, err := searchDB(ctx, db, SearchQuery{Text: "old"}); err != nil || len(res) != 0 {
		t.Fatalf("expected old text gone from FTS, res=%v err=%v", res, err)
	}

	// Blank caption removes the row (and the FTS entry via trigger).
	if err := UpsertCaption(ctx, db, e.Name, e.Path, ""); err != nil {
		t.Fatalf("UpsertCaption blank: %v", err)
	}
	var capCount int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM captions`).Scan(&capCount); err != nil {
		t.Fatalf("count captions: %v", err)
	}
	if capCount != 0 {
		t.Fatalf("caption row should be deleted, got %d rows", capCount)
	}
}

func TestUpsertCaptionCreatesImageRowOnDemand(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	// Index exists but is empty; a save should still land.
	if err := UpdateIndex(ctx, root, nil, captions.FileStore{}); err != nil {
		t.Fatalf("UpdateIndex: %v", err)
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("InitOrOpenIndex: %v", err)
	}
	defer db.Close()
	if err := UpsertCaption(ctx, db, "new.png", "/lib/new.png", "a brand new caption"); err != nil {
		t.Fatalf("UpsertCaption: %v", err)
	}
	res, err := searchDB(ctx, db, SearchQuery{Text: "brand"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 1 || res[0].Path != "/lib/new.png" {
		t.Fatalf("expected on-demand image row, got %+v", res)
	}
}
