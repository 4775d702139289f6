/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gocaptioner/internal/captions"
	"gocaptioner/internal/domain"
)

// ExportArchiveZIP packages the library as a flat dataset archive: each image
// file verbatim plus its sidecar caption when one exists, named exactly as on
// disk so downstream tooling can pair image and text by basename. Duplicate
// basenames get a numeric prefix to keep every entry addressable.
func ExportArchiveZIP(entries []domain.ImageEntry, outPath string) error {
	if len(entries) == 0 {
		return fmt.Errorf("no images to export")
	}

	// Enforce .zip extension
	if !strings.HasSuffix(strings.ToLower(outPath), ".zip") {
		outPath = outPath + ".zip"
	}

	zw, f, err := createZip(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		name := e.Name
		if n := seen[strings.ToLower(name)]; n > 0 {
			name = fmt.Sprintf("%d_%s", n, name)
		}
		seen[strings.ToLower(e.Name)]++

		img, err := os.ReadFile(e.Path)
		if err != nil {
			return fmt.Errorf("read image %s: %w", e.Name, err)
		}
		// Image formats are already compressed, store them as-is.
		if err := addStoredZipFile(zw, name, img); err != nil {
			return fmt.Errorf("zip add image: %w", err)
		}

		sidecar := captions.SidecarPath(e.Path)
		text, err := os.ReadFile(sidecar)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read caption %s: %w", filepath.Base(sidecar), err)
		}
		txtName := strings.TrimSuffix(name, filepath.Ext(name)) + captions.Extension
		if err := addZipFile(zw, txtName, text); err != nil {
			return fmt.Errorf("zip add caption: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func createZip(outPath string) (*zip.Writer, *os.File, error) {
	// Ensure directory exists
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create zip: %w", err)
	}
	return zip.NewWriter(f), f, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// addStoredZipFile writes an entry with STORE method (no compression).
func addStoredZipFile(zw *zip.Writer, name string, data []byte) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Store}
	// Set modification time without using deprecated SetModTime
	hdr.Modified = time.Now()
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
