/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"gocaptioner/internal/captions"
	"gocaptioner/internal/domain"
)

// writeTestPNG writes a small solid-color PNG so exporters have a real,
// decodable image to work with.
func writeTestPNG(t testing.TB, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(40 * x % 255), G: 90, B: uint8(40 * y % 255), A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create test png: %v", err)
	}
	defer func() { _ = f.Close() }()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
}

// seedLibrary creates image files under root and sidecar captions for entries
// with non-empty text, returning the entries in the given order.
func seedLibrary(t testing.TB, root string, names []string, texts map[string]string) []domain.ImageEntry {
	t.Helper()
	store := captions.FileStore{}
	entries := make([]domain.ImageEntry, 0, len(names))
	for _, name := range names {
		p := filepath.Join(root, name)
		writeTestPNG(t, p, 12, 8)
		if text, ok := texts[name]; ok && text != "" {
			if err := store.Save(p, text); err != nil {
				t.Fatalf("save caption for %s: %v", name, err)
			}
		}
		entries = append(entries, domain.ImageEntry{Name: name, Path: p})
	}
	return entries
}
