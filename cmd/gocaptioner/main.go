/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gocaptioner/internal/backend"
	"gocaptioner/internal/captions"
	"gocaptioner/internal/config"
	"gocaptioner/internal/crash"
	"gocaptioner/internal/domain"
	"gocaptioner/internal/export"
	applog "gocaptioner/internal/log"
	"gocaptioner/internal/natsort"
	"gocaptioner/internal/scan"
	"gocaptioner/internal/storage"
	"gocaptioner/internal/telemetry"
	"gocaptioner/internal/ui"
	"gocaptioner/internal/version"
)

func usage() {
	fmt.Println("Go Captioner — desktop image captioning")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gocaptioner version|-v|--version           Show version")
	fmt.Println("  gocaptioner scan <dir>                     List images in caption order with caption presence")
	fmt.Println("  gocaptioner show <image>                   Print the image's caption")
	fmt.Println("  gocaptioner set <image> [text...]          Write the caption (reads stdin when text omitted)")
	fmt.Println("  gocaptioner index <dir>                    Build or refresh the folder's caption search index")
	fmt.Println("  gocaptioner search <dir> <query...>        Full-text search captions in the folder")
	fmt.Println("  gocaptioner export-pdf <dir> <out.pdf> [preset]   Contact sheet PDF (preset: a4|letter|square)")
	fmt.Println("  gocaptioner export-zip <dir> <out.zip>     Dataset archive (images + caption sidecars)")
	fmt.Println("  gocaptioner export-html <dir> <outdir>     Static HTML gallery with thumbnails")
	fmt.Println("  gocaptioner export-all <dir> [outdir]      All export formats under <dir>/exports/")
	fmt.Println("  gocaptioner manifest <dir> <out.json>      Dataset manifest (schema-validated)")
	fmt.Println("  gocaptioner validate <manifest.json>       Validate a manifest file")
	fmt.Println("  gocaptioner push <dir> [library]           Upload the folder's captions to the sync server")
	fmt.Println("  gocaptioner fetch [library]                List remote captions (libraries when omitted)")
	fmt.Println("  gocaptioner search-remote <library> <query...>    Full-text search captions on the sync server")
	fmt.Println("  gocaptioner ui [<dir>]                     Launch desktop UI (build with -tags fyne for full UI)")
}

func main() {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")

	// The snapshot evolves while verbs run, so a crash mid-save still lands
	// the typed caption in an autosave file.
	var snap crash.Snapshot
	defer crash.Recover(func() crash.Snapshot { return snap })

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println("Go Captioner — desktop image captioning")
			fmt.Println(version.String())
			return

		case "scan":
			if len(args) < 3 {
				fmt.Println("scan requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, entries, err := libraryEntries(args[2])
			if err != nil {
				die(l, "scan failed", err)
			}
			captioned := 0
			for _, e := range entries {
				mark := " "
				if _, serr := os.Stat(captions.SidecarPath(e.Path)); serr == nil {
					mark = "x"
					captioned++
				}
				fmt.Printf("[%s] %s\n", mark, e.Name)
			}
			fmt.Printf("%d image(s) in %s, %d captioned\n", len(entries), abs, captioned)
			return

		case "show":
			if len(args) < 3 {
				fmt.Println("show requires <image>")
				usage()
				os.Exit(2)
			}
			img, _ := filepath.Abs(args[2])
			store := captions.FileStore{}
			text, err := store.Load(img)
			if err != nil {
				die(l, "read caption failed", err)
			}
			if text != "" {
				fmt.Print(text)
				if !strings.HasSuffix(text, "\n") {
					fmt.Println()
				}
			}
			return

		case "set":
			if len(args) < 3 {
				fmt.Println("set requires <image> [text...]")
				usage()
				os.Exit(2)
			}
			img, _ := filepath.Abs(args[2])
			var text string
			if len(args) >= 4 {
				text = strings.Join(args[3:], " ")
			} else {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					die(l, "read stdin failed", err)
				}
				text = string(b)
			}
			snap = crash.Snapshot{LibraryRoot: filepath.Dir(img), ImagePath: img, BufferText: text, Dirty: true}
			store := captions.FileStore{}
			if err := store.Save(img, text); err != nil {
				telemetry.Event("save_failure", nil)
				die(l, "save caption failed", err)
			}
			snap.Dirty = false
			mirrorIndex(l, img, text)
			fmt.Println("Saved caption to", captions.SidecarPath(img))
			return

		case "index":
			if len(args) < 3 {
				fmt.Println("index requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, entries, err := libraryEntries(args[2])
			if err != nil {
				die(l, "scan failed", err)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			store := captions.FileStore{}
			rebuilt, err := storage.DetectAndRebuildIndex(ctx, abs, entries, store)
			if err != nil {
				die(l, "index failed", err)
			}
			if !rebuilt {
				if err := storage.UpdateIndex(ctx, abs, entries, store); err != nil {
					die(l, "index failed", err)
				}
			}
			fmt.Printf("Indexed %d image(s) in %s\n", len(entries), abs)
			if rebuilt {
				fmt.Println("Previous index was corrupted and has been rebuilt (backup kept).")
			}
			return

		case "search":
			if len(args) < 4 {
				fmt.Println("search requires <dir> and <query...>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			query := strings.Join(args[3:], " ")
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			res, err := storage.Search(ctx, abs, storage.SearchQuery{Text: query, Limit: 100})
			if err != nil {
				die(l, "search failed", err)
			}
			for _, r := range res {
				sn := strings.TrimSpace(r.Snippet)
				if sn == "" {
					sn = r.Path
				}
				fmt.Printf("%s — %s\n", r.Name, sn)
			}
			fmt.Printf("%d result(s)\n", len(res))
			return

		case "export-pdf":
			if len(args) < 4 {
				fmt.Println("export-pdf requires <dir> and <out.pdf>")
				usage()
				os.Exit(2)
			}
			preset := export.PresetA4
			if len(args) >= 5 {
				p, err := export.ParsePreset(args[4])
				if err != nil {
					die(l, "bad preset", err)
				}
				preset = p
			}
			abs, entries, err := libraryEntries(args[2])
			if err != nil {
				die(l, "scan failed", err)
			}
			out, _ := filepath.Abs(args[3])
			store := captions.FileStore{}
			if err := export.ExportContactSheetPDF(entries, store, out, export.PDFOptions{Preset: preset, Title: filepath.Base(abs)}); err != nil {
				die(l, "export failed", err)
			}
			telemetry.Event("export", map[string]any{"format": "pdf"})
			fmt.Println("Wrote", out)
			return

		case "export-zip":
			if len(args) < 4 {
				fmt.Println("export-zip requires <dir> and <out.zip>")
				usage()
				os.Exit(2)
			}
			_, entries, err := libraryEntries(args[2])
			if err != nil {
				die(l, "scan failed", err)
			}
			out, _ := filepath.Abs(args[3])
			if err := export.ExportArchiveZIP(entries, out); err != nil {
				die(l, "export failed", err)
			}
			telemetry.Event("export", map[string]any{"format": "zip"})
			if !strings.HasSuffix(strings.ToLower(out), ".zip") {
				out += ".zip"
			}
			fmt.Println("Wrote", out)
			return

		case "export-html":
			if len(args) < 4 {
				fmt.Println("export-html requires <dir> and <outdir>")
				usage()
				os.Exit(2)
			}
			abs, entries, err := libraryEntries(args[2])
			if err != nil {
				die(l, "scan failed", err)
			}
			out, _ := filepath.Abs(args[3])
			store := captions.FileStore{}
			if err := export.ExportHTMLGallery(entries, store, out, export.HTMLOptions{Title: filepath.Base(abs)}); err != nil {
				die(l, "export failed", err)
			}
			telemetry.Event("export", map[string]any{"format": "html"})
			fmt.Println("Wrote gallery to", out)
			return

		case "export-all":
			if len(args) < 3 {
				fmt.Println("export-all requires <dir> [outdir]")
				usage()
				os.Exit(2)
			}
			abs, entries, err := libraryEntries(args[2])
			if err != nil {
				die(l, "scan failed", err)
			}
			outDir := ""
			if len(args) >= 4 {
				outDir = args[3]
			}
			store := captions.FileStore{}
			if err := export.BatchExport(abs, entries, store, export.BatchOptions{OutDir: outDir}); err != nil {
				die(l, "export failed", err)
			}
			telemetry.Event("export", map[string]any{"format": "all"})
			dest := outDir
			if dest == "" {
				dest = "."
			}
			if !filepath.IsAbs(dest) {
				dest = filepath.Join(abs, "exports", dest)
			}
			fmt.Println("Exported pdf, zip, html and manifest under", dest)
			return

		case "manifest":
			if len(args) < 4 {
				fmt.Println("manifest requires <dir> and <out.json>")
				usage()
				os.Exit(2)
			}
			abs, entries, err := libraryEntries(args[2])
			if err != nil {
				die(l, "scan failed", err)
			}
			store := captions.FileStore{}
			m, err := export.BuildManifest(abs, entries, store)
			if err != nil {
				die(l, "manifest build failed", err)
			}
			out, _ := filepath.Abs(args[3])
			if err := export.WriteManifest(m, out); err != nil {
				die(l, "manifest write failed", err)
			}
			fmt.Printf("Wrote manifest with %d item(s) to %s\n", len(m.Items), out)
			return

		case "validate":
			if len(args) < 3 {
				fmt.Println("validate requires <manifest.json>")
				usage()
				os.Exit(2)
			}
			m, err := export.ReadManifest(args[2])
			if err != nil {
				die(l, "manifest invalid", err)
			}
			fmt.Printf("Manifest OK: version %d, %d item(s)\n", m.Version, len(m.Items))
			return

		case "push":
			if len(args) < 3 {
				fmt.Println("push requires <dir> [library]")
				usage()
				os.Exit(2)
			}
			abs, entries, err := libraryEntries(args[2])
			if err != nil {
				die(l, "scan failed", err)
			}
			library := filepath.Base(abs)
			if len(args) >= 4 {
				library = args[3]
			}
			cfg, client, ctx, cancel := backendClient(l)
			defer cancel()
			store := captions.FileStore{}
			records := make([]domain.CaptionRecord, 0, len(entries))
			for _, e := range entries {
				text, lerr := store.Load(e.Path)
				if lerr != nil {
					l.Warn("sidecar unreadable, skipping", slog.String("path", e.Path), slog.Any("err", lerr))
					continue
				}
				rec := domain.CaptionRecord{Name: e.Name, Path: e.Path, Caption: text}
				if fi, serr := os.Stat(captions.SidecarPath(e.Path)); serr == nil {
					rec.UpdatedAt = fi.ModTime().UTC()
				}
				records = append(records, rec)
			}
			var accepted int
			err = withAuthRetry(ctx, client, cfg, l, func() error {
				var perr error
				accepted, perr = client.PushCaptions(ctx, library, records)
				return perr
			})
			if err != nil {
				die(l, "push failed", err)
			}
			fmt.Printf("Pushed %d caption record(s) to library %q\n", accepted, library)
			return

		case "fetch":
			cfg, client, ctx, cancel := backendClient(l)
			defer cancel()
			if len(args) >= 3 {
				library := args[2]
				var recs []domain.CaptionRecord
				err := withAuthRetry(ctx, client, cfg, l, func() error {
					var ferr error
					recs, ferr = client.FetchCaptions(ctx, library)
					return ferr
				})
				if err != nil {
					die(l, "fetch failed", err)
				}
				for _, r := range recs {
					fmt.Printf("%s\t%s\n", r.Name, excerpt(r.Caption, 80))
				}
				fmt.Printf("%d record(s) in library %q\n", len(recs), library)
				return
			}
			var libs []backend.Library
			err := withAuthRetry(ctx, client, cfg, l, func() error {
				var lerr error
				libs, lerr = client.ListLibraries(ctx)
				return lerr
			})
			if err != nil {
				die(l, "list libraries failed", err)
			}
			for _, lib := range libs {
				fmt.Printf("%s\t%d caption(s)\tupdated %s\n", lib.Name, lib.Captions, lib.UpdatedAt.Format(time.RFC3339))
			}
			fmt.Printf("%d library(ies)\n", len(libs))
			return

		case "search-remote":
			if len(args) < 4 {
				fmt.Println("search-remote requires <library> and <query...>")
				usage()
				os.Exit(2)
			}
			library := args[2]
			query := strings.Join(args[3:], " ")
			cfg, client, ctx, cancel := backendClient(l)
			defer cancel()
			var res []storage.SearchResult
			err := withAuthRetry(ctx, client, cfg, l, func() error {
				var serr error
				res, serr = client.SearchRemote(ctx, library, storage.SearchQuery{Text: query, Limit: 100})
				return serr
			})
			if err != nil {
				die(l, "remote search failed", err)
			}
			for _, r := range res {
				sn := strings.TrimSpace(r.Snippet)
				if sn == "" {
					sn = r.Path
				}
				fmt.Printf("%s — %s\n", r.Name, sn)
			}
			fmt.Printf("%d result(s) in library %q\n", len(res), library)
			return

		case "ui":
			var dir string
			if len(args) >= 3 {
				dir = args[2]
			}
			cfg, _, cerr := config.Load()
			if cerr != nil {
				l.Warn("config load failed, using defaults", slog.Any("err", cerr))
				cfg = config.Defaults()
			}
			telemetry.InitDefault()
			if cfg.General.TelemetryOptIn {
				tcfg := telemetry.FromEnv()
				tcfg.OptIn = true
				telemetry.NewDefault(tcfg)
			}
			telemetry.Event("app_start", nil)
			if cfg.General.EnableServer {
				l.Info("embedded sync server enabled")
				go func() {
					if err := backend.Start(); err != nil {
						l.Error("embedded sync server failed", slog.Any("err", err))
					}
				}()
			}
			if err := ui.Run(dir); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		}
	}

	usage()
}

// libraryEntries scans dir and returns its absolute path with the images in
// caption order (natural sort by basename).
func libraryEntries(dir string) (string, []domain.ImageEntry, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	entries, err := scan.CollectDir(abs)
	if err != nil {
		return abs, nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return natsort.Compare(entries[i].Name, entries[j].Name) < 0
	})
	return abs, entries, nil
}

// mirrorIndex refreshes the search index row for img when the containing
// folder already has an index. Failures only warn; the sidecar write has
// already succeeded.
func mirrorIndex(l *slog.Logger, img, text string) {
	root := filepath.Dir(img)
	if _, err := os.Stat(storage.IndexPath(root)); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := storage.InitOrOpenIndex(root)
	if err != nil {
		l.Warn("index open failed", slog.Any("err", err))
		return
	}
	defer db.Close()
	if err := storage.UpsertCaption(ctx, db, filepath.Base(img), img, text); err != nil {
		l.Warn("index upsert failed", slog.Any("err", err))
	}
}

// backendClient builds a sync client from the config file, keyring token and
// the configured request timeout.
func backendClient(l *slog.Logger) (config.AppConfig, *backend.Client, context.Context, context.CancelFunc) {
	cfg, token, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	timeout, perr := time.ParseDuration(cfg.Backend.EffectiveTimeout())
	if perr != nil || timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return cfg, backend.NewClient(cfg.Backend.BaseURL, token), ctx, cancel
}

// ensureToken requests a bearer token when none is stored yet and keeps it in
// the OS keyring for the next run. The server caps token lifetime at 24 hours.
func ensureToken(ctx context.Context, client *backend.Client, cfg config.AppConfig, l *slog.Logger) error {
	if client.Token != "" {
		return nil
	}
	tok, err := client.AuthToken(ctx, "cli", 24*time.Hour)
	if err != nil {
		return err
	}
	if err := config.Save(cfg, tok); err != nil {
		l.Warn("could not store token in keyring", slog.Any("err", err))
	} else {
		fmt.Println("Stored new backend token in the OS keyring.")
	}
	return nil
}

// withAuthRetry runs fn with a valid token, re-authenticating once when the
// stored token has expired.
func withAuthRetry(ctx context.Context, client *backend.Client, cfg config.AppConfig, l *slog.Logger, fn func() error) error {
	if err := ensureToken(ctx, client, cfg, l); err != nil {
		return err
	}
	err := fn()
	if errors.Is(err, backend.ErrUnauthorized) {
		l.Info("stored token rejected, requesting a new one")
		client.Token = ""
		if aerr := ensureToken(ctx, client, cfg, l); aerr != nil {
			return aerr
		}
		return fn()
	}
	return err
}

// excerpt folds text onto one line and cuts it for terminal listings.
func excerpt(text string, max int) string {
	s := strings.Join(strings.Fields(text), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

func die(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}
