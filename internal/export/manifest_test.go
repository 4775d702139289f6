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

func TestManifestConformsToSchema(t *testing.T) {
	root := t.TempDir()
	entries := seedLibrary(t, root, []string{"img1.png", "img2.png"}, map[string]string{
		"img1.png": "first caption",
	})

	m, err := BuildManifest(root, entries, captions.FileStore{})
	if err != nil {
		t.Fatalf("BuildManifest error: %v", err)
	}
	out := filepath.Join(root, "manifest.json")
	if err := WriteManifest(m, out); err != nil {
		t.Fatalf("WriteManifest error: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if err := ValidateManifestBytes(data); err != nil {
		t.Fatalf("manifest does not conform to schema: %v", err)
	}
}

func TestBuildManifestContents(t *testing.T) {
	root := t.TempDir()
	entries := seedLibrary(t, root, []string{"b.png", "a.png"}, map[string]string{
		"b.png": "caption for b",
	})

	m, err := BuildManifest(root, entries, captions.FileStore{})
	if err != nil {
		t.Fatalf("BuildManifest error: %v", err)
	}
	if m.Version != domain.ManifestVersion {
		t.Fatalf("version: got %d want %d", m.Version, domain.ManifestVersion)
	}
	if m.GeneratedAt.IsZero() {
		t.Fatalf("generatedAt must be set")
	}
	if len(m.Items) != 2 {
		t.Fatalf("items: got %d want 2", len(m.Items))
	}
	// Entry order is preserved, not re-sorted.
	if m.Items[0].Name != "b.png" || m.Items[1].Name != "a.png" {
		t.Fatalf("item order: got %s, %s", m.Items[0].Name, m.Items[1].Name)
	}
	if m.Items[0].Caption != "caption for b" {
		t.Fatalf("caption: got %q", m.Items[0].Caption)
	}
	if m.Items[1].Caption != "" {
		t.Fatalf("missing sidecar must yield empty caption, got %q", m.Items[1].Caption)
	}
	// Paths inside the library are stored relative with forward slashes.
	if m.Items[0].Path != "b.png" {
		t.Fatalf("path: got %q want %q", m.Items[0].Path, "b.png")
	}
	if strings.Contains(m.Items[0].Path, "\\") {
		t.Fatalf("path must use forward slashes, got %q", m.Items[0].Path)
	}
}

func TestReadManifestRoundTrip(t *testing.T) {
	root := t.TempDir()
	entries := seedLibrary(t, root, []string{"z.png"}, map[string]string{"z.png": "zebra"})

	m, err := BuildManifest(root, entries, captions.FileStore{})
	if err != nil {
		t.Fatalf("BuildManifest error: %v", err)
	}
	out := filepath.Join(root, "exports", "manifest.json")
	if err := WriteManifest(m, out); err != nil {
		t.Fatalf("WriteManifest error: %v", err)
	}

	got, err := ReadManifest(out)
	if err != nil {
		t.Fatalf("ReadManifest error: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Caption != "zebra" {
		t.Fatalf("round trip mismatch: %+v", got.Items)
	}
}

func TestValidateManifestBytesRejectsBadDocument(t *testing.T) {
	// Missing required "version" field.
	bad := []byte(`{"generatedAt":"2025-01-02T03:04:05Z","items":[]}`)
	if err := ValidateManifestBytes(bad); err == nil {
		t.Fatalf("expected schema violation")
	}
	// Unknown top-level field.
	bad = []byte(`{"version":1,"generatedAt":"2025-01-02T03:04:05Z","items":[],"extra":true}`)
	if err := ValidateManifestBytes(bad); err == nil {
		t.Fatalf("expected schema violation for extra field")
	}
	// Item without a name.
	bad = []byte(`{"version":1,"generatedAt":"2025-01-02T03:04:05Z","items":[{"path":"x.png","caption":""}]}`)
	if err := ValidateManifestBytes(bad); err == nil {
		t.Fatalf("expected schema violation for unnamed item")
	}
}

func TestReadManifestRejectsNewerVersion(t *testing.T) {
	p := filepath.Join(t.TempDir(), "manifest.json")
	doc := `{"version":99,"generatedAt":"2025-01-02T03:04:05Z","items":[]}`
	if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if _, err := ReadManifest(p); err == nil {
		t.Fatalf("expected version error")
	}
}
