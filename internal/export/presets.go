/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"gocaptioner/internal/domain"
)

// CaptionLoader reads the sidecar caption for an image path. A missing sidecar
// yields ("", nil). captions.FileStore satisfies this.
type CaptionLoader interface {
	Load(imagePath string) (string, error)
}

// PresetName represents a named contact-sheet page preset.
type PresetName string

const (
	PresetA4     PresetName = "a4"
	PresetLetter PresetName = "letter"
	PresetSquare PresetName = "square"
)

// presetPageSize returns the page dimensions in points.
func presetPageSize(p PresetName) (w, h float64) {
	switch p {
	case PresetLetter:
		return 612, 792
	case PresetSquare:
		return 600, 600
	default: // a4
		return 595.28, 841.89
	}
}

// presetColumns returns the default grid columns for the preset.
func presetColumns(p PresetName) int {
	if p == PresetSquare {
		return 2
	}
	return 3
}

// ParsePreset normalizes a user-supplied preset name.
func ParsePreset(s string) (PresetName, error) {
	switch PresetName(strings.ToLower(strings.TrimSpace(s))) {
	case PresetA4, "":
		return PresetA4, nil
	case PresetLetter:
		return PresetLetter, nil
	case PresetSquare:
		return PresetSquare, nil
	}
	return "", fmt.Errorf("unknown preset: %s", s)
}

// BatchOptions controls batch export across multiple formats.
//
// Path semantics:
//   - If OutDir is empty or relative, it is created under <library>/exports/.
//   - Single-file outputs are named contact-sheet.pdf, dataset.zip and
//     manifest.json in OutDir; the HTML gallery goes to OutDir/gallery/.
//
//nolint:revive // keep fields explicit for clarity
type BatchOptions struct {
	Preset  PresetName
	Formats []string // allowed: pdf, zip, html, manifest; empty means all
	Title   string
	OutDir  string
}

// BatchExport runs all requested exporters over the library entries.
func BatchExport(libraryRoot string, entries []domain.ImageEntry, loader CaptionLoader, opt BatchOptions) error {
	if len(entries) == 0 {
		return fmt.Errorf("library has no images")
	}
	formats := make([]string, 0, len(opt.Formats))
	for _, f := range opt.Formats {
		formats = append(formats, strings.ToLower(strings.TrimSpace(f)))
	}
	if len(formats) == 0 {
		formats = []string{"pdf", "zip", "html", "manifest"}
	}

	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = "."
	}
	if !filepath.IsAbs(baseOut) {
		baseOut = filepath.Join(libraryRoot, "exports", baseOut)
	}

	title := opt.Title
	if title == "" {
		title = filepath.Base(libraryRoot)
	}

	for _, f := range formats {
		switch f {
		case "pdf":
			out := filepath.Join(baseOut, "contact-sheet.pdf")
			if err := ExportContactSheetPDF(entries, loader, out, PDFOptions{Preset: opt.Preset, Title: title}); err != nil {
				return fmt.Errorf("pdf: %w", err)
			}
		case "zip":
			out := filepath.Join(baseOut, "dataset.zip")
			if err := ExportArchiveZIP(entries, out); err != nil {
				return fmt.Errorf("zip: %w", err)
			}
		case "html":
			out := filepath.Join(baseOut, "gallery")
			if err := ExportHTMLGallery(entries, loader, out, HTMLOptions{Title: title}); err != nil {
				return fmt.Errorf("html: %w", err)
			}
		case "manifest":
			out := filepath.Join(baseOut, "manifest.json")
			m, err := BuildManifest(libraryRoot, entries, loader)
			if err != nil {
				return fmt.Errorf("manifest build: %w", err)
			}
			if err := WriteManifest(m, out); err != nil {
				return fmt.Errorf("manifest: %w", err)
			}
		default:
			return fmt.Errorf("unknown format: %s", f)
		}
	}
	return nil
}
