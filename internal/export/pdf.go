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

	"github.com/jung-kurt/gofpdf"
	"gocaptioner/internal/domain"
	applog "gocaptioner/internal/log"
	"gocaptioner/internal/preview"
	"log/slog"
)

// PDFOptions controls contact-sheet export behavior.
// Units are points (pt). Images are re-encoded as PNG thumbnails before
// embedding, which keeps webp/tiff/bmp sources working with gofpdf.
//
//nolint:revive // keep options grouped and explicit for clarity
type PDFOptions struct {
	Preset  PresetName
	Columns int // 0 = preset default
	Title   string
}

const (
	sheetMargin   = 36.0 // page margin in pt
	sheetGutter   = 12.0 // space between cells
	captionStripH = 40.0 // caption area under each image
	thumbMaxPx    = 1024 // longest thumbnail edge embedded in the PDF
)

// ExportContactSheetPDF lays the library out as an image-plus-caption grid,
// one cell per entry, paginating as needed, and writes a single PDF to outPath.
// Unreadable images keep their cell (name and caption only) so the sheet stays
// aligned with the library order.
func ExportContactSheetPDF(entries []domain.ImageEntry, loader CaptionLoader, outPath string, opt PDFOptions) error {
	if len(entries) == 0 {
		return fmt.Errorf("no images to export")
	}
	l := applog.WithOperation(applog.WithComponent("export"), "pdf")

	pageW, pageH := presetPageSize(opt.Preset)
	cols := opt.Columns
	if cols <= 0 {
		cols = presetColumns(opt.Preset)
	}

	usableW := pageW - 2*sheetMargin
	usableH := pageH - 2*sheetMargin - 20 // header line
	cellW := (usableW - float64(cols-1)*sheetGutter) / float64(cols)
	cellH := cellW + captionStripH
	rows := int((usableH + sheetGutter) / (cellH + sheetGutter))
	if rows < 1 {
		rows = 1
	}
	perPage := cols * rows

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: pageW, Ht: pageH},
		OrientationStr: "",
	})
	title := opt.Title
	if title == "" {
		title = "Caption Contact Sheet"
	}
	pdf.SetTitle(title, true)
	pdf.SetAuthor("Go Captioner", false)

	imgOpt := gofpdf.ImageOptions{ImageType: "PNG"}
	for i, e := range entries {
		slot := i % perPage
		if slot == 0 {
			pdf.AddPageFormat("", gofpdf.SizeType{Wd: pageW, Ht: pageH})
			pdf.SetFont("Helvetica", "B", 10)
			pdf.Text(sheetMargin, sheetMargin-10, fmt.Sprintf("%s — %d image(s)", title, len(entries)))
		}
		col := slot % cols
		row := slot / cols
		x := sheetMargin + float64(col)*(cellW+sheetGutter)
		y := sheetMargin + 10 + float64(row)*(cellH+sheetGutter)

		// Cell border
		pdf.SetDrawColor(180, 180, 180)
		pdf.SetLineWidth(0.5)
		pdf.Rect(x, y, cellW, cellH, "D")

		imgAreaH := cellH - captionStripH
		if blob, err := preview.Thumbnail(e.Path, thumbMaxPx, thumbMaxPx); err != nil {
			l.Warn("image unreadable, placing caption only", slog.String("path", e.Path), slog.Any("err", err))
		} else {
			info := pdf.RegisterImageOptionsReader(e.Path, imgOpt, bytes.NewReader(blob))
			if pdf.Err() {
				return fmt.Errorf("register image %s: %s", e.Name, pdf.Error())
			}
			iw, ih := info.Extent()
			if iw > 0 && ih > 0 {
				scale := (cellW - 8) / iw
				if s := (imgAreaH - 8) / ih; s < scale {
					scale = s
				}
				if scale > 1 {
					scale = 1
				}
				dw, dh := iw*scale, ih*scale
				ix := x + (cellW-dw)/2
				iy := y + (imgAreaH-dh)/2
				pdf.ImageOptions(e.Path, ix, iy, dw, dh, false, imgOpt, 0, "")
			}
		}

		// Name + caption excerpt in the strip below the image
		text := ""
		if loader != nil {
			if c, err := loader.Load(e.Path); err == nil {
				text = c
			} else {
				l.Warn("sidecar unreadable", slog.String("path", e.Path), slog.Any("err", err))
			}
		}
		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetXY(x+4, y+imgAreaH+2)
		pdf.CellFormat(cellW-8, 10, e.Name, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetXY(x+4, y+imgAreaH+12)
		pdf.MultiCell(cellW-8, 9, captionExcerpt(text, 160), "", "L", false)
	}

	// Ensure directory exists
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// captionExcerpt truncates text for the grid cell, folding newlines to spaces.
func captionExcerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if i := strings.LastIndexByte(cut, ' '); i > max/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
