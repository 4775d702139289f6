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
	"strings"
	"testing"
	"time"

	"gocaptioner/internal/captions"
)

func TestSearchCaptions(t *testing.T) {
	root := t.TempDir()
	entries := seedLibrary(t, root, map[string]string{
		"beach1.png": "Hello there from the beach",
		"beach2.png": "waves crashing on the shore",
		"city1.png":  "a busy street at night",
		"blank.png":  "", // uncaptioned
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := UpdateIndex(ctx, root, entries, captions.FileStore{}); err != nil {
		t.Fatalf("UpdateIndex: %v", err)
	}

	// 1) FTS search for term 'Hello'
	res, err := Search(ctx, root, SearchQuery{Text: "Hello"})
	if err != nil {
		t.Fatalf("search 1: %v", err)
	}
	if len(res) != 1 || res[0].Name != "beach1.png" {
		t.Fatalf("expected beach1.png for 'Hello', got %+v", res)
	}
	if !strings.Contains(res[0].Snippet, "[Hello]") {
		t.Fatalf("expected highlighted snippet, got %q", res[0].Snippet)
	}

	// 2) FTS with name filter
	res, err = Search(ctx, root, SearchQuery{Text: "beach OR street", NameContains: "city"})
	if err != nil {
		t.Fatalf("search 2: %v", err)
	}
	if len(res) != 1 || res[0].Name != "city1.png" {
		t.Fatalf("name filter failed: %+v", res)
	}

	// 3) Empty text scans all captioned images
	res, err = Search(ctx, root, SearchQuery{})
	if err != nil {
		t.Fatalf("search 3: %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("expected 3 captioned images, got %d", len(res))
	}

	// 4) Uncaptioned listing finds the blank one
	res, err = Search(ctx, root, SearchQuery{Uncaptioned: true})
	if err != nil {
		t.Fatalf("search 4: %v", err)
	}
	if len(res) != 1 || res[0].Name != "blank.png" {
		t.Fatalf("expected blank.png uncaptioned, got %+v", res)
	}
}

func TestSearchPagination(t *testing.T) {
	root := t.TempDir()
	entries := seedLibrary(t, root, map[string]string{
		"a.png": "common token alpha",
		"b.png": "common token beta",
		"c.png": "common token gamma",
	})
	ctx := context.Background()
	if err := UpdateIndex(ctx, root, entries, captions.FileStore{}); err != nil {
		t.Fatalf("UpdateIndex: %v", err)
	}
	page1, err := Search(ctx, root, SearchQuery{Text: "common", Limit: 2})
	if err != nil {
		t.Fatalf("page1: %v", err)
	}
	page2, err := Search(ctx, root, SearchQuery{Text: "common", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("page2: %v", err)
	}
	if len(page1) != 2 || len(page2) != 1 {
		t.Fatalf("pagination split wrong: %d + %d", len(page1), len(page2))
	}
	if page1[0].Name != "a.png" || page1[1].Name != "b.png" || page2[0].Name != "c.png" {
		t.Fatalf("pagination order wrong: %+v %+v", page1, page2)
	}
}

func TestCaptionForPath(t *testing.T) {
	root := t.TempDir()
	entries := seedLibrary(t, root, map[string]string{
		"a.png": "alpha caption",
		"b.png": "",
	})
	ctx := context.Background()
	if err := UpdateIndex(ctx, root, entries, captions.FileStore{}); err != nil {
		t.Fatalf("UpdateIndex: %v", err)
	}
	var aPath, bPath string
	for _, e := range entries {
		switch e.Name {
		case "a.png":
			aPath = e.Path
		case "b.png":
			bPath = e.Path
		}
	}
	text, ok, err := CaptionForPath(ctx, root, aPath)
	if err != nil || !ok || text != "alpha caption" {
		t.Fatalf("CaptionForPath a: %q %v %v", text, ok, err)
	}
	_, ok, err = CaptionForPath(ctx, root, bPath)
	if err != nil || ok {
		t.Fatalf("CaptionForPath b should report no caption: %v %v", ok, err)
	}
}
