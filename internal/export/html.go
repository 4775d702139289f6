/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocaptioner/internal/domain"
	applog "gocaptioner/internal/log"
	"gocaptioner/internal/preview"
	"log/slog"
)

// HTMLOptions controls gallery export behavior.
//
//nolint:revive // clarity
type HTMLOptions struct {
	Title       string
	ThumbWidth  int // 0 = 320
	ThumbHeight int // 0 = 320
}

// ExportHTMLGallery writes a self-contained static gallery into outDir:
// an index.html grid plus a thumbs/ folder of PNG thumbnails. Captions are
// rendered under each image so the result can be reviewed in any browser
// without the application installed.
func ExportHTMLGallery(entries []domain.ImageEntry, loader CaptionLoader, outDir string, opt HTMLOptions) error {
	if len(entries) == 0 {
		return fmt.Errorf("no images to export")
	}
	l := applog.WithOperation(applog.WithComponent("export"), "html")

	tw := opt.ThumbWidth
	if tw <= 0 {
		tw = 320
	}
	th := opt.ThumbHeight
	if th <= 0 {
		th = 320
	}
	title := opt.Title
	if title == "" {
		title = "Caption Gallery"
	}

	thumbDir := filepath.Join(outDir, "thumbs")
	if err := os.MkdirAll(thumbDir, 0o755); err != nil {
		return fmt.Errorf("ensure thumbs dir: %w", err)
	}

	css := "" +
		"body { font-family: sans-serif; background: #1e1e1e; color: #ddd; margin: 0; padding: 16px; }\n" +
		"h1 { font-size: 1.2em; font-weight: normal; }\n" +
		".grid { display: flex; flex-wrap: wrap; gap: 12px; }\n" +
		"figure { margin: 0; padding: 8px; background: #2a2a2a; border-radius: 4px; width: " + fmt.Sprintf("%d", tw) + "px; }\n" +
		"figure img { max-width: 100%; display: block; margin: 0 auto; }\n" +
		"figcaption { margin-top: 6px; font-size: 0.8em; word-wrap: break-word; }\n" +
		"figcaption b { display: block; color: #fff; margin-bottom: 2px; }\n" +
		".missing { color: #e08080; font-style: italic; }\n"

	buf := &bytes.Buffer{}
	buf.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	buf.WriteString("<meta charset=\"utf-8\"/>\n")
	buf.WriteString("<title>" + htmlEsc(title) + "</title>\n")
	buf.WriteString("<style>\n" + css + "</style>\n")
	buf.WriteString("</head>\n<body>\n")
	buf.WriteString(fmt.Sprintf("<h1>%s — %d image(s)</h1>\n", htmlEsc(title), len(entries)))
	buf.WriteString("<div class=\"grid\">\n")

	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		base := strings.TrimSuffix(e.Name, filepath.Ext(e.Name))
		if n := seen[strings.ToLower(base)]; n > 0 {
			base = fmt.Sprintf("%d_%s", n, base)
		}
		seen[strings.ToLower(strings.TrimSuffix(e.Name, filepath.Ext(e.Name)))]++
		thumbName := base + ".png"

		hasThumb := false
		if blob, err := preview.Thumbnail(e.Path, tw, th); err != nil {
			l.Warn("image unreadable, listing without thumbnail", slog.String("path", e.Path), slog.Any("err", err))
		} else if err := os.WriteFile(filepath.Join(thumbDir, thumbName), blob, 0o644); err != nil {
			return fmt.Errorf("write thumbnail %s: %w", thumbName, err)
		} else {
			hasThumb = true
		}

		text := ""
		if loader != nil {
			if c, err := loader.Load(e.Path); err == nil {
				text = c
			} else {
				l.Warn("sidecar unreadable", slog.String("path", e.Path), slog.Any("err", err))
			}
		}

		buf.WriteString("<figure>\n")
		if hasThumb {
			buf.WriteString("<img src=\"thumbs/" + htmlEsc(thumbName) + "\" alt=\"" + htmlEsc(e.Name) + "\"/>\n")
		} else {
			buf.WriteString("<div class=\"missing\">image unreadable</div>\n")
		}
		buf.WriteString("<figcaption><b>" + htmlEsc(e.Name) + "</b>")
		if text != "" {
			buf.WriteString(htmlEsc(text))
		} else {
			buf.WriteString("<span class=\"missing\">no caption</span>")
		}
		buf.WriteString("</figcaption>\n</figure>\n")
	}

	buf.WriteString("</div>\n</body>\n</html>\n")

	if err := os.WriteFile(filepath.Join(outDir, "index.html"), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write index.html: %w", err)
	}
	return nil
}

func htmlEsc(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '&':
			out = append(out, '&', 'a', 'm', 'p', ';')
		case '<':
			out = append(out, '&', 'l', 't', ';')
		case '>':
			out = append(out, '&', 'g', 't', ';')
		case '"':
			out = append(out, '&', 'q', 'u', 'o', 't', ';')
		case '\'':
			out = append(out, '&', 'a', 'p', 'o', 's', ';')
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}
