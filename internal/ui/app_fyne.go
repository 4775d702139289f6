//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"gocaptioner/internal/captions"
	"gocaptioner/internal/config"
	"gocaptioner/internal/crash"
	"gocaptioner/internal/domain"
	"gocaptioner/internal/export"
	applog "gocaptioner/internal/log"
	"gocaptioner/internal/preview"
	"gocaptioner/internal/scan"
	"gocaptioner/internal/session"
	"gocaptioner/internal/storage"
	"gocaptioner/internal/telemetry"
	"gocaptioner/internal/version"
)

// viewerThumbPx is the cached preview size shown while the full image decodes.
const viewerThumbPx = 1024

// uiState mirrors the pieces of session state the crash handler needs. The
// session goroutine owns the session itself; this copy is the only part read
// from other goroutines.
type uiState struct {
	mu     sync.Mutex
	root   string
	image  string
	buffer string
	dirty  bool
}

func (s *uiState) Root() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

func (s *uiState) setRoot(dir string) {
	s.mu.Lock()
	s.root = dir
	s.mu.Unlock()
}

func (s *uiState) snapshot() crash.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return crash.Snapshot{LibraryRoot: s.root, ImagePath: s.image, BufferText: s.buffer, Dirty: s.dirty}
}

// fynePresenter renders session state into the Fyne widgets. Its methods are
// called from the session goroutine and marshal every widget touch onto the
// UI thread with fyne.Do. PromptUnsavedChanges is the one blocking call: it
// parks the session goroutine until the user answers the dialog.
type fynePresenter struct {
	win    fyne.Window
	list   *widget.List
	img    *canvas.Image
	entry  *widget.Entry
	status *widget.Label

	state      *uiState
	log        *slog.Logger
	previewCap int64

	// UI-thread only.
	rows         []domain.ImageEntry
	updatingList bool
	settingText  bool
}

func (p *fynePresenter) RenderImage(e domain.ImageEntry) {
	// Show the cached thumbnail first; on a warm cache this lands well before
	// the full-size decode below finishes.
	if root := p.state.Root(); root != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		blob, err := storage.GetOrCreatePreview(ctx, root, e.Path, viewerThumbPx, viewerThumbPx, p.previewCap,
			func(ctx context.Context) ([]byte, error) {
				return preview.Thumbnail(e.Path, viewerThumbPx, viewerThumbPx)
			})
		cancel()
		if err != nil {
			p.log.Warn("preview cache miss", slog.String("path", e.Path), slog.Any("err", err))
		} else if thumb, derr := preview.DecodePNG(blob); derr == nil {
			fyne.Do(func() {
				p.entry.Enable()
				p.img.Image = thumb
				p.img.Refresh()
			})
		}
	}

	full, err := preview.Decode(e.Path)
	if err != nil {
		p.log.Warn("image decode failed", slog.String("path", e.Path), slog.Any("err", err))
		fyne.Do(func() {
			// The caption stays editable even when the image cannot render.
			p.entry.Enable()
			p.img.Image = nil
			p.img.Refresh()
		})
		return
	}
	fyne.Do(func() {
		p.entry.Enable()
		p.img.Image = full
		p.img.Refresh()
	})
}

func (p *fynePresenter) ClearImage() {
	fyne.Do(func() {
		p.img.Image = nil
		p.img.Refresh()
		p.entry.Disable()
	})
}

func (p *fynePresenter) ShowCaption(text string) {
	fyne.Do(func() {
		p.settingText = true
		p.entry.SetText(text)
		p.settingText = false
	})
}

func (p *fynePresenter) HighlightEntry(index int) {
	fyne.Do(func() {
		p.updatingList = true
		if index >= 0 && index < len(p.rows) {
			p.list.Select(index)
			p.list.ScrollTo(index)
		} else {
			p.list.UnselectAll()
		}
		p.updatingList = false
	})
}

func (p *fynePresenter) PromptUnsavedChanges() session.Choice {
	ch := make(chan session.Choice, 1)
	var once sync.Once
	answer := func(c session.Choice) { once.Do(func() { ch <- c }) }
	fyne.Do(func() {
		msg := widget.NewLabel("You have unsaved changes to the current caption.\nSave them before leaving this image?")
		d := dialog.NewCustomWithoutButtons("Unsaved Caption", msg, p.win)
		save := widget.NewButton("Save", func() { answer(session.ChoiceSave); d.Hide() })
		save.Importance = widget.HighImportance
		discard := widget.NewButton("Discard", func() { answer(session.ChoiceDiscard); d.Hide() })
		cancel := widget.NewButton("Cancel", func() { answer(session.ChoiceCancel); d.Hide() })
		d.SetButtons([]fyne.CanvasObject{save, discard, cancel})
		// Closing the dialog any other way counts as Cancel.
		d.SetOnClosed(func() { answer(session.ChoiceCancel) })
		d.Show()
	})
	return <-ch
}

func (p *fynePresenter) Notify(kind session.NoticeKind, message string) {
	fyne.Do(func() {
		switch kind {
		case session.NoticeError:
			dialog.ShowError(errors.New(message), p.win)
		case session.NoticeWarning:
			dialog.ShowInformation("Warning", message, p.win)
		default:
			dialog.ShowInformation("Go Captioner", message, p.win)
		}
	})
}

func (p *fynePresenter) ShowStatus(message string) {
	fyne.Do(func() { p.status.SetText(message) })
}

// setEntries swaps the list contents. UI thread only.
func (p *fynePresenter) setEntries(rows []domain.ImageEntry, selected int) {
	p.rows = rows
	p.updatingList = true
	p.list.Refresh()
	if selected >= 0 && selected < len(rows) {
		p.list.Select(selected)
		p.list.ScrollTo(selected)
	} else {
		p.list.UnselectAll()
	}
	p.updatingList = false
}

// controller owns the session goroutine. All session mutations are posted to
// the ops channel and run there one at a time, so the single-threaded session
// state machine never sees concurrent calls and may block in the unsaved
// prompt without freezing the event loop.
type controller struct {
	sess  *session.Session
	pres  *fynePresenter
	state *uiState
	ops   chan func()
	win   fyne.Window
	log   *slog.Logger

	// UI-thread only.
	cfg          config.AppConfig
	token        string
	refreshMenus func()
}

func (c *controller) post(op func()) { c.ops <- op }

func (c *controller) loop() {
	defer crash.Recover(c.state.snapshot)
	for op := range c.ops {
		op()
		c.syncState()
	}
}

func (c *controller) syncState() {
	cur, ok := c.sess.Current()
	c.state.mu.Lock()
	if ok {
		c.state.image = cur.Path
	} else {
		c.state.image = ""
	}
	c.state.buffer = c.sess.Buffer()
	c.state.dirty = c.sess.Dirty()
	c.state.mu.Unlock()
}

func (c *controller) refreshList() {
	rows := c.sess.Entries()
	idx := c.sess.Index()
	fyne.Do(func() { c.pres.setEntries(rows, idx) })
}

// confirmLeaveCurrent runs the unsaved-changes guard for actions that abandon
// the current image outside a plain selection change: opening another folder,
// closing the folder, closing the window. Session goroutine only. A failed
// save keeps the buffer and answers false, like Cancel.
func (c *controller) confirmLeaveCurrent() bool {
	if !c.sess.Dirty() {
		return true
	}
	switch c.pres.PromptUnsavedChanges() {
	case session.ChoiceSave:
		return c.sess.SaveCurrent() == nil
	case session.ChoiceDiscard:
		return true
	default:
		return false
	}
}

// openFolder scans dir and loads it into the session. Safe to call from the
// UI thread; the work happens on the session goroutine.
func (c *controller) openFolder(dir string) {
	c.post(func() {
		if !c.confirmLeaveCurrent() {
			return
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			abs = dir
		}
		c.log.Info("open folder", slog.String("root", abs))
		entries, err := scan.CollectDir(abs)
		if err != nil {
			c.log.Error("scan folder failed", slog.String("root", abs), slog.Any("err", err))
			fyne.Do(func() { dialog.ShowError(err, c.win) })
			return
		}
		c.state.setRoot(abs)
		c.sess.Open(entries)
		c.refreshList()
		fyne.Do(func() {
			c.win.SetTitle(fmt.Sprintf("Go Captioner — %s", filepath.Base(abs)))
			c.noteRecent(abs)
		})
		if len(entries) > 0 {
			go c.updateIndex(abs, c.sess.Entries())
		} else {
			c.pres.ShowStatus("No images loaded")
			fyne.Do(func() {
				dialog.ShowInformation("Open Folder", "No supported images found in\n"+abs, c.win)
			})
		}
	})
}

// addImage appends a single image file to the current session. With no
// folder open the file's directory becomes the library root.
func (c *controller) addImage(path string) {
	c.post(func() {
		if !c.confirmLeaveCurrent() {
			return
		}
		added := scan.FromPaths([]string{path})
		if len(added) == 0 {
			fyne.Do(func() {
				dialog.ShowInformation("Open Image", "Not a supported image file:\n"+path, c.win)
			})
			return
		}
		c.log.Info("add image", slog.String("path", added[0].Path))
		entries := append(c.sess.Entries(), added...)
		root := c.state.Root()
		if root == "" {
			root = filepath.Dir(added[0].Path)
			c.state.setRoot(root)
			fyne.Do(func() {
				c.win.SetTitle(fmt.Sprintf("Go Captioner — %s", filepath.Base(root)))
				c.noteRecent(root)
			})
		}
		c.sess.Open(entries)
		if i := c.sess.IndexOf(added[0].Name); i > 0 {
			c.sess.SelectIndex(i)
		}
		c.refreshList()
		go c.updateIndex(root, c.sess.Entries())
	})
}

func (c *controller) closeFolder() {
	c.post(func() {
		if !c.confirmLeaveCurrent() {
			return
		}
		c.log.Info("close folder")
		c.state.setRoot("")
		c.sess.Clear()
		c.refreshList()
		fyne.Do(func() { c.win.SetTitle("Go Captioner") })
	})
}

// updateIndex refreshes the library search index in the background. A
// corrupted index is rebuilt from the sidecar files first.
func (c *controller) updateIndex(root string, entries []domain.ImageEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	store := captions.FileStore{}
	rebuilt, err := storage.DetectAndRebuildIndex(ctx, root, entries, store)
	if err == nil && !rebuilt {
		err = storage.UpdateIndex(ctx, root, entries, store)
	}
	if err != nil {
		c.log.Error("index update failed", slog.String("root", root), slog.Any("err", err))
		c.pres.ShowStatus("Caption index update failed; search may be stale.")
		return
	}
	if rebuilt {
		c.log.Warn("index was rebuilt from sidecar files", slog.String("root", root))
		c.pres.ShowStatus("Caption index rebuilt.")
	}
}

// mirrorToIndex pushes a saved caption into the search index so a search
// right after a save sees the new text. Failures only log; the sidecar file
// is the source of truth.
func (c *controller) mirrorToIndex(imagePath, text string) {
	root := c.state.Root()
	if root == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err := storage.InitOrOpenIndex(root)
		if err != nil {
			c.log.Warn("index open failed", slog.Any("err", err))
			return
		}
		defer db.Close()
		if err := storage.UpsertCaption(ctx, db, filepath.Base(imagePath), imagePath, text); err != nil {
			c.log.Warn("index upsert failed", slog.String("path", imagePath), slog.Any("err", err))
		}
	}()
}

// noteRecent records dir in the recent folders list and persists the config.
// UI thread only.
func (c *controller) noteRecent(dir string) {
	c.cfg.UI.RecentFolders = config.AddRecentFolder(c.cfg.UI.RecentFolders, dir)
	if err := config.Save(c.cfg, c.token); err != nil {
		c.log.Warn("save config failed", slog.Any("err", err))
	}
	if c.refreshMenus != nil {
		c.refreshMenus()
	}
}

// indexingStore saves captions to their sidecar files and mirrors every save
// into the library search index.
type indexingStore struct {
	files captions.FileStore
	c     *controller
}

func (st indexingStore) Load(imagePath string) (string, error) {
	return st.files.Load(imagePath)
}

func (st indexingStore) Save(imagePath, text string) error {
	if err := st.files.Save(imagePath, text); err != nil {
		telemetry.Event("save_failure", nil)
		return err
	}
	st.c.mirrorToIndex(imagePath, text)
	return nil
}

// Run starts the Fyne-based desktop captioning UI. folderDir, when not empty,
// is opened on startup.
func Run(folderDir string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	st := &uiState{}
	defer crash.Recover(st.snapshot)

	cfg, token, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	telemetry.Event("ui_start", nil)

	fyneApp := app.NewWithID("gocaptioner")
	w := fyneApp.NewWindow("Go Captioner")
	winW := cfg.UI.WindowWidth
	winH := cfg.UI.WindowHeight
	if winW < 800 {
		winW = 800
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("No images loaded")
	imgView := canvas.NewImageFromImage(nil)
	imgView.FillMode = canvas.ImageFillContain
	captionEntry := widget.NewMultiLineEntry()
	captionEntry.Wrapping = fyne.TextWrapWord
	captionEntry.SetPlaceHolder("Caption for the selected image…")
	captionEntry.Disable()

	pres := &fynePresenter{
		win:        w,
		img:        imgView,
		entry:      captionEntry,
		status:     status,
		state:      st,
		log:        l,
		previewCap: cfg.Previews.MaxBytes,
	}
	imageList := widget.NewList(
		func() int { return len(pres.rows) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i >= 0 && int(i) < len(pres.rows) {
				o.(*widget.Label).SetText(pres.rows[i].Name)
			} else {
				o.(*widget.Label).SetText("")
			}
		},
	)
	pres.list = imageList

	c := &controller{
		pres:  pres,
		state: st,
		ops:   make(chan func(), 64),
		win:   w,
		log:   l,
		cfg:   cfg,
		token: token,
	}
	c.sess = session.New(indexingStore{c: c}, pres)
	go c.loop()

	imageList.OnSelected = func(id widget.ListItemID) {
		if pres.updatingList {
			return
		}
		if id < 0 || int(id) >= len(pres.rows) {
			return
		}
		c.post(func() { c.sess.SelectIndex(int(id)) })
	}
	captionEntry.OnChanged = func(text string) {
		if pres.settingText {
			return
		}
		c.post(func() { c.sess.EditBuffer(text) })
	}

	buildMainMenu := func() *fyne.MainMenu {
		openItem := fyne.NewMenuItem("Open Folder…", func() {
			l.Info("menu: open folder")
			fd := dialog.NewFolderOpen(func(uri fyne.ListableURI, err error) {
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				if uri == nil {
					return
				}
				c.openFolder(uri.Path())
			}, w)
			fd.Show()
		})
		openItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierControl}

		openImageItem := fyne.NewMenuItem("Open Image…", func() {
			l.Info("menu: open image")
			fd := dialog.NewFileOpen(func(uri fyne.URIReadCloser, err error) {
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				if uri == nil {
					return
				}
				path := uri.URI().Path()
				_ = uri.Close()
				c.addImage(path)
			}, w)
			fd.SetFilter(fstorage.NewExtensionFileFilter(scan.SupportedExtensions))
			fd.Show()
		})

		var recentItems []*fyne.MenuItem
		for _, dir := range c.cfg.UI.RecentFolders {
			if _, serr := os.Stat(dir); serr != nil {
				continue
			}
			d := dir
			recentItems = append(recentItems, fyne.NewMenuItem(d, func() {
				l.Info("menu: open recent", slog.String("root", d))
				c.openFolder(d)
			}))
		}
		if len(recentItems) == 0 {
			empty := fyne.NewMenuItem("(empty)", nil)
			empty.Disabled = true
			recentItems = append(recentItems, empty)
		}
		recentItem := fyne.NewMenuItem("Open Recent", nil)
		recentItem.ChildMenu = fyne.NewMenu("", recentItems...)

		saveItem := fyne.NewMenuItem("Save Caption", func() {
			l.Info("menu: save caption")
			c.post(func() { _ = c.sess.SaveCurrent() })
		})
		saveItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierControl}

		closeItem := fyne.NewMenuItem("Close Folder", func() {
			l.Info("menu: close folder")
			c.closeFolder()
		})
		closeItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyW, Modifier: fyne.KeyModifierControl}

		fileMenu := fyne.NewMenu("File", openItem, openImageItem, recentItem, fyne.NewMenuItemSeparator(), saveItem, fyne.NewMenuItemSeparator(), closeItem)

		prevItem := fyne.NewMenuItem("Previous Image", func() {
			c.post(func() { c.sess.Navigate(-1) })
		})
		prevItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyLeft, Modifier: fyne.KeyModifierControl}
		nextItem := fyne.NewMenuItem("Next Image", func() {
			c.post(func() { c.sess.Navigate(1) })
		})
		nextItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyRight, Modifier: fyne.KeyModifierControl}
		firstItem := fyne.NewMenuItem("First Image", func() {
			c.post(func() {
				if c.sess.Count() > 0 {
					c.sess.SelectIndex(0)
				}
			})
		})
		firstItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyHome, Modifier: fyne.KeyModifierControl}
		lastItem := fyne.NewMenuItem("Last Image", func() {
			c.post(func() {
				if n := c.sess.Count(); n > 0 {
					c.sess.SelectIndex(n - 1)
				}
			})
		})
		lastItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyEnd, Modifier: fyne.KeyModifierControl}

		navigateMenu := fyne.NewMenu("Navigate", prevItem, nextItem, fyne.NewMenuItemSeparator(), firstItem, lastItem)

		searchItem := fyne.NewMenuItem("Search Captions…", func() {
			if c.state.Root() == "" {
				l.Info("menu: search (no folder)")
				dialog.ShowInformation("Search", "No folder open.", w)
				return
			}
			qEntry := widget.NewEntry()
			qEntry.SetPlaceHolder("Search terms (FTS5; use quotes for phrases)")
			nameEntry := widget.NewEntry()
			nameEntry.SetPlaceHolder("File name contains")
			uncapCheck := widget.NewCheck("Only images without a caption", nil)
			form := dialog.NewForm("Search Captions", "Run", "Cancel", []*widget.FormItem{
				widget.NewFormItem("Caption", qEntry),
				widget.NewFormItem("Name", nameEntry),
				widget.NewFormItem("", uncapCheck),
			}, func(ok bool) {
				if !ok {
					return
				}
				sq := storage.SearchQuery{
					Text:         strings.TrimSpace(qEntry.Text),
					NameContains: strings.TrimSpace(nameEntry.Text),
					Uncaptioned:  uncapCheck.Checked,
					Limit:        200,
				}
				l.Info("menu: search", slog.String("query", sq.Text))
				status.SetText("Searching…")
				root := c.state.Root()
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()
					res, serr := storage.Search(ctx, root, sq)
					fyne.Do(func() {
						if serr != nil {
							l.Error("search failed", slog.Any("err", serr))
							dialog.ShowError(serr, w)
							status.SetText("Search failed.")
							return
						}
						status.SetText(fmt.Sprintf("%d result(s)", len(res)))
						items := make([]string, len(res))
						for i, r := range res {
							sn := strings.TrimSpace(r.Snippet)
							if sn == "" {
								sn = "(no caption)"
							}
							if rs := []rune(sn); len(rs) > 120 {
								sn = string(rs[:120]) + "…"
							}
							items[i] = r.Name + " — " + sn
						}
						resList := widget.NewList(
							func() int { return len(items) },
							func() fyne.CanvasObject { return widget.NewLabel("") },
							func(i widget.ListItemID, o fyne.CanvasObject) { o.(*widget.Label).SetText(items[i]) },
						)
						var d dialog.Dialog
						resList.OnSelected = func(id widget.ListItemID) {
							if id < 0 || int(id) >= len(res) {
								return
							}
							name := res[id].Name
							d.Hide()
							c.post(func() {
								if i := c.sess.IndexOf(name); i >= 0 {
									c.sess.SelectIndex(i)
								}
							})
						}
						d = dialog.NewCustom("Search Results", "Close", container.NewMax(resList), w)
						d.Resize(fyne.NewSize(700, 400))
						d.Show()
					})
				}()
			}, w)
			form.Resize(fyne.NewSize(600, 220))
			form.Show()
		})
		searchItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyF, Modifier: fyne.KeyModifierControl}

		rebuildIndexItem := fyne.NewMenuItem("Rebuild Index", func() {
			root := c.state.Root()
			if root == "" {
				l.Info("menu: rebuild index (no folder)")
				dialog.ShowInformation("Rebuild Index", "No folder open.", w)
				return
			}
			l.Info("menu: rebuild index")
			status.SetText("Rebuilding index…")
			c.post(func() {
				entries := c.sess.Entries()
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
					defer cancel()
					rerr := storage.RebuildIndex(ctx, root, entries, captions.FileStore{})
					fyne.Do(func() {
						if rerr != nil {
							l.Error("rebuild index failed", slog.Any("err", rerr))
							dialog.ShowError(rerr, w)
							status.SetText("Rebuild failed.")
						} else {
							status.SetText("Index rebuilt.")
							dialog.ShowInformation("Rebuild Index", "Caption index rebuilt successfully.", w)
						}
					})
				}()
			})
		})

		exportSheetItem := fyne.NewMenuItem("Export Contact Sheet…", func() {
			root := c.state.Root()
			if root == "" {
				l.Info("menu: export contact sheet (no folder)")
				dialog.ShowInformation("Export", "No folder open.", w)
				return
			}
			save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				if uc == nil {
					return
				}
				outPath := uc.URI().Path()
				_ = uc.Close()
				if !strings.HasSuffix(strings.ToLower(outPath), ".pdf") {
					outPath += ".pdf"
				}
				l.Info("menu: export contact sheet", slog.String("out", outPath))
				status.SetText("Exporting contact sheet…")
				c.post(func() {
					entries := c.sess.Entries()
					go func() {
						xerr := export.ExportContactSheetPDF(entries, captions.FileStore{}, outPath,
							export.PDFOptions{Title: filepath.Base(root)})
						if xerr == nil {
							telemetry.Event("export", map[string]any{"format": "pdf"})
						}
						fyne.Do(func() {
							if xerr != nil {
								l.Error("contact sheet export failed", slog.Any("err", xerr))
								dialog.ShowError(xerr, w)
								status.SetText("Export failed.")
							} else {
								status.SetText("Export complete.")
								dialog.ShowInformation("Export", "Exported to "+outPath, w)
							}
						})
					}()
				})
			}, w)
			save.SetFileName("contact-sheet.pdf")
			save.SetFilter(fstorage.NewExtensionFileFilter([]string{".pdf"}))
			save.Show()
		})

		exportAllItem := fyne.NewMenuItem("Export Library…", func() {
			root := c.state.Root()
			if root == "" {
				l.Info("menu: export library (no folder)")
				dialog.ShowInformation("Export Library", "No folder open.", w)
				return
			}
			presetSel := widget.NewSelect([]string{"a4", "letter", "square"}, nil)
			presetSel.SetSelected("a4")
			pdfCheck := widget.NewCheck("PDF contact sheet", nil)
			pdfCheck.SetChecked(true)
			zipCheck := widget.NewCheck("ZIP dataset", nil)
			zipCheck.SetChecked(true)
			htmlCheck := widget.NewCheck("HTML gallery", nil)
			htmlCheck.SetChecked(true)
			manifestCheck := widget.NewCheck("JSON manifest", nil)
			manifestCheck.SetChecked(true)
			outEntry := widget.NewEntry()
			outEntry.SetText(time.Now().Format("run-20060102-150405"))
			form := dialog.NewForm("Export Library", "Export", "Cancel", []*widget.FormItem{
				widget.NewFormItem("Page preset", presetSel),
				widget.NewFormItem("Formats", container.NewVBox(pdfCheck, zipCheck, htmlCheck, manifestCheck)),
				widget.NewFormItem("Output folder", outEntry),
			}, func(ok bool) {
				if !ok {
					return
				}
				preset, perr := export.ParsePreset(presetSel.Selected)
				if perr != nil {
					dialog.ShowError(perr, w)
					return
				}
				var formats []string
				if pdfCheck.Checked {
					formats = append(formats, "pdf")
				}
				if zipCheck.Checked {
					formats = append(formats, "zip")
				}
				if htmlCheck.Checked {
					formats = append(formats, "html")
				}
				if manifestCheck.Checked {
					formats = append(formats, "manifest")
				}
				if len(formats) == 0 {
					dialog.ShowInformation("Export Library", "No formats selected.", w)
					return
				}
				opt := export.BatchOptions{Preset: preset, Formats: formats, OutDir: strings.TrimSpace(outEntry.Text)}
				outBase := opt.OutDir
				if outBase == "" {
					outBase = "."
				}
				if !filepath.IsAbs(outBase) {
					outBase = filepath.Join(root, "exports", outBase)
				}
				l.Info("menu: export library", slog.String("out", outBase))
				status.SetText("Exporting library…")
				c.post(func() {
					entries := c.sess.Entries()
					go func() {
						xerr := export.BatchExport(root, entries, captions.FileStore{}, opt)
						if xerr == nil {
							telemetry.Event("export", map[string]any{"format": strings.Join(formats, ",")})
						}
						fyne.Do(func() {
							if xerr != nil {
								l.Error("library export failed", slog.Any("err", xerr))
								dialog.ShowError(xerr, w)
								status.SetText("Export failed.")
							} else {
								status.SetText("Export complete.")
								dialog.ShowInformation("Export Library", "Exported to "+outBase, w)
							}
						})
					}()
				})
			}, w)
			form.Resize(fyne.NewSize(520, 320))
			form.Show()
		})

		toolsMenu := fyne.NewMenu("Tools", searchItem, rebuildIndexItem, fyne.NewMenuItemSeparator(), exportSheetItem, exportAllItem)

		aboutItem := fyne.NewMenuItem("About Go Captioner", func() {
			l.Info("menu: about")
			exe, _ := os.Executable()
			cwd, _ := os.Getwd()
			info := fmt.Sprintf("Go Captioner\nVersion: %s\nOS: %s\nArch: %s\nGo: %s\nExecutable: %s\nWorking Dir: %s",
				version.String(), runtime.GOOS, runtime.GOARCH, runtime.Version(), exe, cwd)
			dialog.ShowInformation("Installation Environment", info, w)
		})
		copyrightItem := fyne.NewMenuItem("Copyright…", func() {
			l.Info("menu: copyright")
			currentYear := time.Now().Year()
			msg := fmt.Sprintf("Go Captioner\nCopyright © 2025-%d The Go Captioner Authors\n\nLicensed under the Apache License, Version 2.0.\nSee the LICENSE file for details.", currentYear)
			dialog.ShowInformation("Copyright", msg, w)
		})
		aboutMenu := fyne.NewMenu("About", aboutItem, copyrightItem)

		return fyne.NewMainMenu(fileMenu, navigateMenu, toolsMenu, aboutMenu)
	}
	c.refreshMenus = func() { w.SetMainMenu(buildMainMenu()) }
	c.refreshMenus()

	listHeader := widget.NewLabel("Images")
	listHeader.TextStyle = fyne.TextStyle{Bold: true}
	left := container.NewBorder(container.NewVBox(listHeader, widget.NewSeparator()), nil, nil, nil, imageList)
	right := container.NewVSplit(container.NewMax(imgView), container.NewMax(captionEntry))
	right.SetOffset(0.72)
	split := container.NewHSplit(left, right)
	split.SetOffset(0.25)
	w.SetContent(container.NewBorder(nil, container.NewVBox(widget.NewSeparator(), status), nil, nil, split))

	// Run the unsaved-changes guard before the window goes away, then persist
	// the window size.
	w.SetCloseIntercept(func() {
		c.post(func() {
			if !c.confirmLeaveCurrent() {
				return
			}
			fyne.Do(func() {
				sz := w.Canvas().Size()
				c.cfg.UI.WindowWidth = int(sz.Width)
				c.cfg.UI.WindowHeight = int(sz.Height)
				if err := config.Save(c.cfg, c.token); err != nil {
					l.Warn("save config failed", slog.Any("err", err))
				}
				w.Close()
			})
		})
	})

	if folderDir != "" {
		c.openFolder(folderDir)
	}

	w.ShowAndRun()
	return nil
}
