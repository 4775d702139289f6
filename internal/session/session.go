/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package session holds the selection/persistence state machine at the heart
// of the captioning tool: the ordered image list, the current selection, the
// in-memory caption buffer and the dirty flag, together with the
// unsaved-changes guard that runs before every selection change.
//
// A Session is single-threaded. All methods must be called from one
// goroutine; the desktop adapter funnels UI events through a command channel
// drained by a dedicated session goroutine, and PromptUnsavedChanges blocks
// that goroutine until the user answers.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gocaptioner/internal/captions"
	"gocaptioner/internal/domain"
	applog "gocaptioner/internal/log"
	"gocaptioner/internal/natsort"
)

// Choice is the user's answer to the unsaved-changes prompt.
type Choice int

const (
	ChoiceSave Choice = iota
	ChoiceDiscard
	ChoiceCancel
)

// NoticeKind classifies user-facing messages emitted through the presenter.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeWarning
	NoticeError
)

// Outcome reports how a selection attempt ended. Skipped covers the defined
// no-ops (empty list, same index, out-of-range target); Cancelled means the
// unsaved-changes guard aborted the transition and state is unchanged.
type Outcome int

const (
	Selected Outcome = iota
	Cancelled
	Skipped
)

// ErrNoSelection is returned by SaveCurrent when no image is selected.
var ErrNoSelection = errors.New("no image selected")

// Store abstracts caption persistence so the state machine can be driven by
// captions.FileStore in the app and by fakes in tests.
type Store interface {
	Load(imagePath string) (string, error)
	Save(imagePath, text string) error
}

// Presenter is the session's view of the UI. Implementations translate these
// calls into toolkit operations; the session never touches a toolkit type.
// PromptUnsavedChanges must block until the user answers.
type Presenter interface {
	RenderImage(entry domain.ImageEntry)
	ClearImage()
	ShowCaption(text string)
	HighlightEntry(index int)
	PromptUnsavedChanges() Choice
	Notify(kind NoticeKind, message string)
	ShowStatus(message string)
}

// Session is the state machine. Construct with New; the zero value is not
// usable.
type Session struct {
	store Store
	pres  Presenter
	log   *slog.Logger

	entries []domain.ImageEntry
	index   int // -1 when nothing is selected
	buffer  string
	dirty   bool
}

// New returns an empty session bound to a caption store and presenter.
func New(store Store, pres Presenter) *Session {
	return &Session{
		store: store,
		pres:  pres,
		log:   applog.WithComponent("session"),
		index: -1,
	}
}

// Open replaces the session contents with the given entries: duplicates by
// Name are dropped keeping the last occurrence (a warning names the
// collisions, since the earlier path becomes unreachable), the result is
// natural-sorted by Name, and the first entry is selected. Any unsaved buffer
// is discarded without a prompt; Open is a fresh start.
func (s *Session) Open(entries []domain.ImageEntry) {
	counts := make(map[string]int, len(entries))
	for _, e := range entries {
		counts[e.Name]++
	}
	var dups []string
	for name, n := range counts {
		if n > 1 {
			dups = append(dups, name)
		}
	}

	sorted := append([]domain.ImageEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return natsort.Compare(sorted[i].Name, sorted[j].Name) < 0
	})

	out := make([]domain.ImageEntry, 0, len(sorted))
	slot := make(map[string]int, len(sorted))
	for _, e := range sorted {
		if at, ok := slot[e.Name]; ok {
			out[at] = e // last occurrence wins
			continue
		}
		slot[e.Name] = len(out)
		out = append(out, e)
	}

	s.entries = out
	s.buffer = ""
	s.dirty = false
	s.log.Info("open", slog.Int("images", len(out)), slog.Int("duplicates", len(dups)))

	if len(dups) > 0 {
		natsort.SortStrings(dups)
		s.pres.Notify(NoticeWarning,
			"Duplicate image name(s), keeping the last occurrence: "+strings.Join(dups, ", "))
	}
	if len(out) == 0 {
		s.Clear()
		return
	}
	s.pres.ShowStatus(fmt.Sprintf("Loaded %d image(s)", len(out)))
	s.index = 0
	s.loadCurrent()
}

// SelectIndex moves the selection to target, running the unsaved-changes
// guard first. Same-index, out-of-range and empty-list calls are Skipped
// without prompting. When the buffer is dirty the presenter asks
// Save/Discard/Cancel: Cancel (and a failed Save) aborts, visibly reverting
// the highlighted entry and leaving all state untouched; Discard drops the
// buffer. On success the target's caption is loaded and dirty resets.
func (s *Session) SelectIndex(target int) Outcome {
	if len(s.entries) == 0 || target < 0 || target >= len(s.entries) || target == s.index {
		return Skipped
	}
	if s.dirty && s.index >= 0 {
		switch s.pres.PromptUnsavedChanges() {
		case ChoiceCancel:
			s.pres.HighlightEntry(s.index)
			return Cancelled
		case ChoiceSave:
			if err := s.SaveCurrent(); err != nil {
				// Failed save must not lose the buffer: abort like Cancel.
				s.pres.HighlightEntry(s.index)
				return Cancelled
			}
		case ChoiceDiscard:
			s.dirty = false
		}
	}
	s.log.Debug("select", slog.Int("from", s.index), slog.Int("to", target))
	s.index = target
	s.loadCurrent()
	return Selected
}

// Navigate moves the selection by step, clamped to the list bounds. Stepping
// past either end resolves to the current index and is Skipped before the
// guard can fire, so leaning on an arrow key at the edge never prompts.
func (s *Session) Navigate(step int) Outcome {
	count := len(s.entries)
	if count == 0 {
		return Skipped
	}
	target := s.index + step
	if target < 0 {
		target = 0
	}
	if target > count-1 {
		target = count - 1
	}
	if target == s.index {
		return Skipped
	}
	return s.SelectIndex(target)
}

// EditBuffer records a caption edit. The dirty flag is set unconditionally:
// edits are tracked by the edit event firing, not by a content diff.
func (s *Session) EditBuffer(text string) {
	s.buffer = text
	s.dirty = true
}

// SaveCurrent persists the buffer for the selected image. With no selection
// it notifies and returns ErrNoSelection. On a write failure the dirty flag
// is kept so the text cannot be silently lost. On success dirty clears and
// the user is told where the caption went.
func (s *Session) SaveCurrent() error {
	if s.index < 0 {
		s.pres.Notify(NoticeInfo, "No image selected to save caption for.")
		return ErrNoSelection
	}
	e := s.entries[s.index]
	if err := s.store.Save(e.Path, s.buffer); err != nil {
		s.log.Error("caption save failed", slog.String("image", e.Name), slog.Any("err", err))
		s.pres.Notify(NoticeError, "There was an error while saving the caption.")
		return fmt.Errorf("save caption for %s: %w", e.Name, err)
	}
	s.dirty = false
	s.pres.Notify(NoticeInfo, "Caption saved:\n"+captions.SidecarPath(e.Path))
	return nil
}

// Clear empties the session: no entries, no selection, empty buffer, clean.
func (s *Session) Clear() {
	s.entries = nil
	s.index = -1
	s.buffer = ""
	s.dirty = false
	s.pres.ClearImage()
	s.pres.ShowCaption("")
	s.pres.ShowStatus("No image selected")
}

// loadCurrent loads the caption for the selected entry and pushes image,
// caption, highlight and status to the presenter. A read failure degrades to
// an empty caption with a warning, matching the store contract.
func (s *Session) loadCurrent() {
	e := s.entries[s.index]
	s.pres.HighlightEntry(s.index)
	s.pres.RenderImage(e)
	s.pres.ShowStatus(e.Name + " — " + e.Path)

	text, err := s.store.Load(e.Path)
	if err != nil {
		s.log.Warn("caption load failed", slog.String("image", e.Name), slog.Any("err", err))
		s.pres.Notify(NoticeWarning, "Failed to read caption file:\n"+captions.SidecarPath(e.Path))
		text = ""
	}
	s.buffer = text
	s.dirty = false
	s.pres.ShowCaption(text)
}

// Entries returns a copy of the ordered image list.
func (s *Session) Entries() []domain.ImageEntry {
	return append([]domain.ImageEntry(nil), s.entries...)
}

// Count returns the number of images in the session.
func (s *Session) Count() int { return len(s.entries) }

// Index returns the selected position, or -1 when nothing is selected.
func (s *Session) Index() int { return s.index }

// Current returns the selected entry, if any.
func (s *Session) Current() (domain.ImageEntry, bool) {
	if s.index < 0 || s.index >= len(s.entries) {
		return domain.ImageEntry{}, false
	}
	return s.entries[s.index], true
}

// IndexOf returns the position of the entry with the given name, or -1.
func (s *Session) IndexOf(name string) int {
	for i, e := range s.entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// Buffer returns the in-memory caption text for the selected image.
func (s *Session) Buffer() string { return s.buffer }

// Dirty reports whether the buffer has unsaved edits.
func (s *Session) Dirty() bool { return s.dirty }
