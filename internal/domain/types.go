/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "time"

// This file defines the core data model structures shared across the
// Go Captioner packages: the session core, the search index, the sync
// backend and the dataset exporters.

// ImageEntry identifies one image known to a captioning session.
// Name is the basename and acts as the unique display key; Path is the
// absolute location on disk. Entries are value types; the session owns
// the ordered collection.
type ImageEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// CaptionRecord pairs an image with its persisted caption text. It is the
// row shape used by the local search index and the remote sync store.
type CaptionRecord struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Caption   string    `json:"caption"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Manifest is the dataset export document: a versioned snapshot of every
// image/caption pair in a library folder. It serializes to human-readable
// JSON and must conform to the schema embedded in the export package.
type Manifest struct {
	Version     int            `json:"version"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Library     string         `json:"library,omitempty"`
	Items       []ManifestItem `json:"items"`
}

// ManifestItem is one image/caption pair inside a Manifest.
type ManifestItem struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Caption string `json:"caption"`
}

// ManifestVersion is the current manifest document version.
const ManifestVersion = 1
