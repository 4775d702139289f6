/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package captions persists image captions as UTF-8 sidecar text files:
// the caption for /photos/img1.png lives at /photos/img1.txt. Loads are
// tolerant (a missing sidecar is an empty caption); saves are atomic.
package captions

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Extension is the sidecar file extension.
const Extension = ".txt"

// Sentinel error kinds. Callers match with errors.Is; the wrapped message
// carries the path and the underlying cause.
var (
	ErrReadFailure  = errors.New("caption read failure")
	ErrWriteFailure = errors.New("caption write failure")
)

// SidecarPath returns the caption file path for an image: the image path
// with its extension replaced by Extension. An image without an extension
// simply gains one.
func SidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + Extension
}

// FileStore reads and writes caption sidecars on the local filesystem.
// The zero value is ready to use.
type FileStore struct{}

// Load returns the caption text for imagePath. A missing sidecar yields an
// empty caption and no error. Unreadable or non-UTF-8 content yields an
// empty caption and an ErrReadFailure-wrapped error so the caller can warn
// the user and continue.
func (FileStore) Load(imagePath string) (string, error) {
	p := SidecarPath(imagePath)
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("%w: read %s: %v", ErrReadFailure, p, err)
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrReadFailure, p)
	}
	return string(b), nil
}

// Save writes text verbatim to the sidecar for imagePath, creating or
// replacing it. No newline is appended and no normalization is applied; a
// later Load returns exactly what was saved. The write is transactional:
// a temp file in the same directory is synced to disk, then renamed over
// the target.
func (FileStore) Save(imagePath, text string) error {
	p := SidecarPath(imagePath)
	dir := filepath.Dir(p)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(p), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, []byte(text)); err != nil {
		return fmt.Errorf("%w: write temp for %s: %v", ErrWriteFailure, p, err)
	}
	// On Windows, replace by removing the destination first if needed.
	if _, err := os.Stat(p); err == nil {
		_ = os.Remove(p)
	}
	if err := os.Rename(temp, p); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("%w: replace %s: %v", ErrWriteFailure, p, err)
	}
	return nil
}

// AutosaveCrashSnapshot persists an unsaved caption buffer as
// "<sidecar>.autosave" so a crash never discards the user's text. The real
// sidecar is left untouched; the user decides on the next start whether to
// keep the snapshot. Returns the snapshot path.
func AutosaveCrashSnapshot(imagePath, text string) (string, error) {
	p := SidecarPath(imagePath) + ".autosave"
	if err := writeFileSync(p, []byte(text)); err != nil {
		return "", fmt.Errorf("write autosave snapshot %s: %w", p, err)
	}
	return p, nil
}

// writeFileSync writes data to a file and ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return nil
}
