package crash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gocaptioner/internal/storage"
)

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport(Snapshot{}, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("report file missing: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "Go Captioner Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") {
		t.Fatalf("panic content missing: %s", s)
	}
}

func TestWriteReportCreatesFileInLibraryBackups(t *testing.T) {
	root := t.TempDir()
	snap := Snapshot{LibraryRoot: root, ImagePath: filepath.Join(root, "img.png"), BufferText: "secret draft", Dirty: true}

	path, err := writeReport(snap, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if !strings.Contains(path, storage.BackupsDir(root)) {
		t.Fatalf("expected crash report under backups dir, got %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "CurrentImage: "+snap.ImagePath) {
		t.Fatalf("report missing current image: %s", s)
	}
	if !strings.Contains(s, "UnsavedBuffer: true") {
		t.Fatalf("report missing unsaved flag: %s", s)
	}
	// The buffer text itself stays out of the report.
	if strings.Contains(s, "secret draft") {
		t.Fatalf("report must not contain the caption text: %s", s)
	}
}
