package captions

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSidecarPath(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"/photos/img1.png", "/photos/img1.txt"},
		{"/photos/img1.jpeg", "/photos/img1.txt"},
		{"/photos/archive.v2.webp", "/photos/archive.v2.txt"},
		{"/photos/noext", "/photos/noext.txt"},
	}
	for _, c := range cases {
		if got := SidecarPath(c.in); got != c.want {
			t.Fatalf("SidecarPath(%q): got %q want %q", c.in, got, c.want)
		}
	}
}

func TestLoadMissingSidecarIsEmpty(t *testing.T) {
	dir := t.TempDir()
	var s FileStore
	text, err := s.Load(filepath.Join(dir, "img1.png"))
	if err != nil {
		t.Fatalf("Load of missing sidecar: %v", err)
	}
	if text != "" {
		t.Fatalf("missing sidecar caption: got %q want empty", text)
	}
}

func TestSaveLoadRoundTripVerbatim(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "img1.png")
	var s FileStore

	for _, text := range []string{
		"a cat on a mat",
		"line one\nline two\n",
		"no trailing newline",
		"",
		"tabs\tand  spaces   kept",
	} {
		if err := s.Save(img, text); err != nil {
			t.Fatalf("Save(%q): %v", text, err)
		}
		got, err := s.Load(img)
		if err != nil {
			t.Fatalf("Load after Save(%q): %v", text, err)
		}
		if got != text {
			t.Fatalf("round trip: got %q want %q", got, text)
		}
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "img1.png")
	var s FileStore
	if err := s.Save(img, "first"); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := s.Save(img, "second"); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, err := s.Load(img)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "second" {
		t.Fatalf("overwrite: got %q want %q", got, "second")
	}
	// No temp files may be left behind.
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range ents {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("leftover temp file: %s", e.Name())
		}
	}
}

func TestLoadReadFailure(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "img1.png")
	// A directory in place of the sidecar makes the read fail.
	if err := os.Mkdir(SidecarPath(img), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	var s FileStore
	text, err := s.Load(img)
	if !errors.Is(err, ErrReadFailure) {
		t.Fatalf("expected ErrReadFailure, got %v", err)
	}
	if text != "" {
		t.Fatalf("failed load must return empty text, got %q", text)
	}
}

func TestLoadInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "img1.png")
	if err := os.WriteFile(SidecarPath(img), []byte{0xff, 0xfe, 0x00, 0x41}, 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	var s FileStore
	if _, err := s.Load(img); !errors.Is(err, ErrReadFailure) {
		t.Fatalf("expected ErrReadFailure for invalid UTF-8, got %v", err)
	}
}

func TestSaveWriteFailure(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "missing", "img1.png")
	var s FileStore
	if err := s.Save(img, "text"); !errors.Is(err, ErrWriteFailure) {
		t.Fatalf("expected ErrWriteFailure, got %v", err)
	}
}

func TestAutosaveCrashSnapshot(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "img1.png")
	path, err := AutosaveCrashSnapshot(img, "unsaved words")
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot: %v", err)
	}
	if !strings.HasSuffix(path, ".txt.autosave") {
		t.Fatalf("snapshot path: got %q want *.txt.autosave", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if string(b) != "unsaved words" {
		t.Fatalf("snapshot content: got %q want %q", b, "unsaved words")
	}
	// The real sidecar must be untouched.
	if _, err := os.Stat(SidecarPath(img)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("sidecar must not exist after autosave, stat err=%v", err)
	}
}
