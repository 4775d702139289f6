/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scan discovers captionable images on disk and filters arbitrary
// path sets down to the supported formats.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocaptioner/internal/domain"
)

// SupportedExtensions lists the image formats the tool accepts, lowercase
// with leading dot.
var SupportedExtensions = []string{".bmp", ".jpg", ".jpeg", ".png", ".webp", ".tiff"}

// IsImagePath reports whether path has a supported image extension,
// case-insensitively.
func IsImagePath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// CollectDir returns an entry for every supported image directly inside dir.
// Subdirectories are not descended and dot-files (including the index
// directory) are skipped. Paths are absolute; ordering is left to the
// caller since the session natural-sorts on open.
func CollectDir(dir string) ([]domain.ImageEntry, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve dir %s: %w", dir, err)
	}
	ents, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", abs, err)
	}
	var out []domain.ImageEntry
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !IsImagePath(name) {
			continue
		}
		out = append(out, domain.ImageEntry{Name: name, Path: filepath.Join(abs, name)})
	}
	return out, nil
}

// FromPaths builds entries from explicit file paths, dropping anything with
// an unsupported extension. Paths are made absolute; missing files are kept
// (the render step reports them when selected, the same way a file that
// disappears after opening would surface).
func FromPaths(paths []string) []domain.ImageEntry {
	var out []domain.ImageEntry
	for _, p := range paths {
		if !IsImagePath(p) {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		out = append(out, domain.ImageEntry{Name: filepath.Base(abs), Path: abs})
	}
	return out
}
