/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"
	"gocaptioner/internal/domain"
)

//go:embed manifest.schema.json
var manifestSchema []byte

// BuildManifest collects the current image/caption pairs into a manifest
// document. Item paths are stored relative to libraryRoot with forward
// slashes when possible, so the manifest stays valid if the folder moves.
// A caption that cannot be read fails the build; a manifest that silently
// dropped captions would misrepresent the dataset.
func BuildManifest(libraryRoot string, entries []domain.ImageEntry, loader CaptionLoader) (domain.Manifest, error) {
	m := domain.Manifest{
		Version:     domain.ManifestVersion,
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Library:     filepath.ToSlash(libraryRoot),
		Items:       make([]domain.ManifestItem, 0, len(entries)),
	}
	for _, e := range entries {
		text := ""
		if loader != nil {
			c, err := loader.Load(e.Path)
			if err != nil {
				return domain.Manifest{}, fmt.Errorf("load caption for %s: %w", e.Name, err)
			}
			text = c
		}
		p := e.Path
		if rel, err := filepath.Rel(libraryRoot, e.Path); err == nil && !strings.HasPrefix(rel, "..") {
			p = rel
		}
		m.Items = append(m.Items, domain.ManifestItem{
			Name:    e.Name,
			Path:    filepath.ToSlash(p),
			Caption: text,
		})
	}
	return m, nil
}

// WriteManifest serializes m as indented JSON, validates it against the
// embedded schema and writes it to outPath.
func WriteManifest(m domain.Manifest, outPath string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')
	if err := ValidateManifestBytes(data); err != nil {
		return fmt.Errorf("generated manifest invalid: %w", err)
	}
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ValidateManifestBytes checks a JSON document against the manifest schema.
func ValidateManifestBytes(data []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(manifestSchema)
	docLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if !result.Valid() {
		var b strings.Builder
		b.WriteString("manifest does not conform to schema:")
		for _, e := range result.Errors() {
			b.WriteString("\n  ")
			b.WriteString(e.String())
		}
		return fmt.Errorf("%s", b.String())
	}
	return nil
}

// ReadManifest loads, validates and decodes a manifest file.
func ReadManifest(path string) (domain.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	if err := ValidateManifestBytes(data); err != nil {
		return domain.Manifest{}, err
	}
	var m domain.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Version > domain.ManifestVersion {
		return domain.Manifest{}, fmt.Errorf("manifest version %d is newer than supported version %d", m.Version, domain.ManifestVersion)
	}
	return m, nil
}
