/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package preview decodes the supported image formats and produces
// display-sized renditions: EXIF orientation is applied so photos show the
// way a camera viewer shows them, and scaling preserves aspect ratio using
// Lanczos resampling.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	// webp has no encoder but registers its decoder with image.Decode;
	// bmp, tiff, jpeg, png and gif are registered by the imaging package.
	_ "golang.org/x/image/webp"
)

// Decode loads path and applies any EXIF orientation tag.
func Decode(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

// Fit scales img down to fit within maxW x maxH, preserving aspect ratio.
// Images already inside the box are returned unscaled; previews never
// upscale.
func Fit(img image.Image, maxW, maxH int) image.Image {
	return imaging.Fit(img, maxW, maxH, imaging.Lanczos)
}

// EncodePNG serializes img to PNG bytes, the storage format of the preview
// cache.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode preview png: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePNG is the inverse of EncodePNG for cache hits.
func DecodePNG(b []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode cached preview: %w", err)
	}
	return img, nil
}

// Thumbnail decodes path, fits it into maxW x maxH and returns PNG bytes.
// This is the generator plugged into the preview cache and the HTML export.
func Thumbnail(path string, maxW, maxH int) ([]byte, error) {
	img, err := Decode(path)
	if err != nil {
		return nil, err
	}
	return EncodePNG(Fit(img, maxW, maxH))
}
