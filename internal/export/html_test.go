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
)

func TestExportHTMLGalleryWritesIndexAndThumbs(t *testing.T) {
	root := t.TempDir()
	entries := seedLibrary(t, root, []string{"sunset.png", "plain.png"}, map[string]string{
		"sunset.png": "orange sky over water",
	})

	outDir := filepath.Join(root, "gallery")
	err := ExportHTMLGallery(entries, captions.FileStore{}, outDir, HTMLOptions{Title: "My Library"})
	if err != nil {
		t.Fatalf("ExportHTMLGallery error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "index.html"))
	if err != nil {
		t.Fatalf("read index.html: %v", err)
	}
	html := string(data)
	for _, want := range []string{"My Library", "sunset.png", "plain.png", "orange sky over water", "no caption"} {
		if !strings.Contains(html, want) {
			t.Fatalf("index.html missing %q", want)
		}
	}
	for _, name := range []string{"sunset.png", "plain.png"} {
		thumb := filepath.Join(outDir, "thumbs", name)
		fi, err := os.Stat(thumb)
		if err != nil {
			t.Fatalf("expected thumbnail %s: %v", name, err)
		}
		if fi.Size() == 0 {
			t.Fatalf("thumbnail %s is empty", name)
		}
	}
}

func TestExportHTMLGalleryEscapesMarkup(t *testing.T) {
	root := t.TempDir()
	entries := seedLibrary(t, root, []string{"x.png"}, map[string]string{
		"x.png": `<b>bold & "quoted"</b>`,
	})

	outDir := filepath.Join(root, "out")
	if err := ExportHTMLGallery(entries, captions.FileStore{}, outDir, HTMLOptions{}); err != nil {
		t.Fatalf("ExportHTMLGallery error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "index.html"))
	if err != nil {
		t.Fatalf("read index.html: %v", err)
	}
	html := string(data)
	if strings.Contains(html, "<b>bold") {
		t.Fatalf("caption markup leaked into html unescaped")
	}
	if !strings.Contains(html, "&lt;b&gt;bold &amp; &quot;quoted&quot;&lt;/b&gt;") {
		t.Fatalf("escaped caption not found in html")
	}
}

func TestExportHTMLGalleryEmptyEntries(t *testing.T) {
	if err := ExportHTMLGallery(nil, captions.FileStore{}, t.TempDir(), HTMLOptions{}); err == nil {
		t.Fatalf("expected error for empty entries")
	}
}

func TestHTMLEsc(t *testing.T) {
	if got := htmlEsc(`a<b>&"c"'d'`); got != "a&lt;b&gt;&amp;&quot;c&quot;&apos;d&apos;" {
		t.Fatalf("htmlEsc: got %q", got)
	}
}
