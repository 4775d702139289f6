//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// These tests validate the non-display parts of the Fyne UI. They are gated
// behind the "fyne" build tag so CI (which is headless) does not need Fyne or
// a display. To run locally:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"os"
	"path/filepath"
	"testing"

	"gocaptioner/internal/captions"
	applog "gocaptioner/internal/log"
)

func TestUIStateSnapshot(t *testing.T) {
	st := &uiState{}
	st.setRoot("/lib")
	st.mu.Lock()
	st.image = "/lib/a.png"
	st.buffer = "half a caption"
	st.dirty = true
	st.mu.Unlock()

	if got := st.Root(); got != "/lib" {
		t.Fatalf("Root: got %q want %q", got, "/lib")
	}
	snap := st.snapshot()
	if snap.LibraryRoot != "/lib" || snap.ImagePath != "/lib/a.png" {
		t.Fatalf("unexpected snapshot paths: %+v", snap)
	}
	if snap.BufferText != "half a caption" || !snap.Dirty {
		t.Fatalf("unexpected snapshot buffer state: %+v", snap)
	}
}

func TestIndexingStoreSavesSidecar(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "cat.png")
	if err := os.WriteFile(img, []byte("not really a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Empty root skips the index mirror, so Save is fully synchronous here.
	st := indexingStore{c: &controller{state: &uiState{}, log: applog.WithComponent("test")}}

	if text, err := st.Load(img); err != nil || text != "" {
		t.Fatalf("Load before save: got (%q, %v), want empty and nil", text, err)
	}
	if err := st.Save(img, "a cat\non a mat"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	blob, err := os.ReadFile(captions.SidecarPath(img))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	if string(blob) != "a cat\non a mat" {
		t.Fatalf("sidecar content: got %q", blob)
	}
	if text, err := st.Load(img); err != nil || text != "a cat\non a mat" {
		t.Fatalf("Load after save: got (%q, %v)", text, err)
	}
}
