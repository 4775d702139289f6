/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gocaptioner/internal/captions"
	"gocaptioner/internal/domain"
)

func TestExportContactSheetPDFWritesFile(t *testing.T) {
	root := t.TempDir()
	entries := seedLibrary(t, root, []string{"one.png", "two.png", "three.png"}, map[string]string{
		"one.png": "a short caption",
		"two.png": strings.Repeat("a very long caption that must be truncated for the grid cell ", 8),
	})

	out := filepath.Join(root, "exports", "sheet.pdf")
	err := ExportContactSheetPDF(entries, captions.FileStore{}, out, PDFOptions{Preset: PresetA4, Title: "Sheet Test"})
	if err != nil {
		t.Fatalf("ExportContactSheetPDF error: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("pdf output is empty")
	}
	if !strings.HasPrefix(string(data[:5]), "%PDF-") {
		t.Fatalf("output does not start with PDF header: %q", data[:5])
	}
}

func TestExportContactSheetPDFUnreadableImage(t *testing.T) {
	root := t.TempDir()
	entries := seedLibrary(t, root, []string{"good.png"}, nil)

	// A garbage file with an image extension must not abort the export.
	bad := filepath.Join(root, "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write bad image: %v", err)
	}
	entries = append(entries, domain.ImageEntry{Name: "bad.png", Path: bad})

	out := filepath.Join(root, "sheet.pdf")
	if err := ExportContactSheetPDF(entries, captions.FileStore{}, out, PDFOptions{}); err != nil {
		t.Fatalf("ExportContactSheetPDF error: %v", err)
	}
	fi, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat pdf: %v", err)
	}
	if fi.Size() == 0 {
		t.Fatalf("pdf output is empty")
	}
}

func TestExportContactSheetPDFEmptyEntries(t *testing.T) {
	out := filepath.Join(t.TempDir(), "sheet.pdf")
	if err := ExportContactSheetPDF(nil, captions.FileStore{}, out, PDFOptions{}); err == nil {
		t.Fatalf("expected error for empty entries")
	}
}

func TestCaptionExcerpt(t *testing.T) {
	if got := captionExcerpt("line one\nline two", 100); got != "line one line two" {
		t.Fatalf("newline folding: got %q", got)
	}
	long := strings.Repeat("word ", 60)
	got := captionExcerpt(long, 40)
	if len(got) > 45 {
		t.Fatalf("excerpt too long: %d chars", len(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("excerpt missing ellipsis: %q", got)
	}
	if got := captionExcerpt("short", 40); got != "short" {
		t.Fatalf("short text must pass through, got %q", got)
	}
}
