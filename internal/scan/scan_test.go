package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestIsImagePath(t *testing.T) {
	yes := []string{"a.png", "b.JPG", "c.jpeg", "d.webp", "e.tiff", "f.bmp", "/dir/g.PNG"}
	no := []string{"a.txt", "b.gif", "c.md", "noext", "d.png.bak"}
	for _, p := range yes {
		if !IsImagePath(p) {
			t.Fatalf("IsImagePath(%q): got false want true", p)
		}
	}
	for _, p := range no {
		if IsImagePath(p) {
			t.Fatalf("IsImagePath(%q): got true want false", p)
		}
	}
}

func TestCollectDirFiltersAndSkips(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "img1.png"))
	touch(t, filepath.Join(dir, "img2.JPG"))
	touch(t, filepath.Join(dir, "img1.txt")) // sidecar, not an image
	touch(t, filepath.Join(dir, "notes.md"))
	touch(t, filepath.Join(dir, ".hidden.png"))
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	touch(t, filepath.Join(dir, "sub", "nested.png"))

	got, err := CollectDir(dir)
	if err != nil {
		t.Fatalf("CollectDir: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entry count: got %d want 2 (%+v)", len(got), got)
	}
	for _, e := range got {
		if !filepath.IsAbs(e.Path) {
			t.Fatalf("path not absolute: %q", e.Path)
		}
		if e.Name != filepath.Base(e.Path) {
			t.Fatalf("name/path mismatch: %+v", e)
		}
	}
}

func TestCollectDirMissing(t *testing.T) {
	if _, err := CollectDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestFromPaths(t *testing.T) {
	got := FromPaths([]string{"/a/img1.png", "/a/skip.gif", "rel/img2.webp"})
	if len(got) != 2 {
		t.Fatalf("entry count: got %d want 2", len(got))
	}
	if got[0].Name != "img1.png" {
		t.Fatalf("name: got %q want img1.png", got[0].Name)
	}
	if !filepath.IsAbs(got[1].Path) {
		t.Fatalf("relative input must become absolute: %q", got[1].Path)
	}
}
