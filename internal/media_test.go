package internal

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func TestClassifier_Kind(t *testing.T) {
	c := NewClassifier([]string{".JPG", "png"}, []string{".mov"})

	tests := []struct {
		ext  string
		want Kind
	}{
		{".jpg", KindImage},
		{".JPG", KindImage},
		{".Png", KindImage},
		{".mov", KindVideo},
		{".MOV", KindVideo},
		{".txt", KindUnsupported},
		{"", KindUnsupported},
	}
	for _, tt := range tests {
		if got := c.Kind(tt.ext); got != tt.want {
			t.Errorf("Kind(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}

func TestClassifier_Stat(t *testing.T) {
	dir := t.TempDir()
	mtime := localTime(2022, 3, 4, 5, 6, 7)
	path := filepath.Join(dir, "IMG_0001.JPG")
	writeFile(t, path, []byte("jpeg"), mtime)

	c := NewClassifier(testImageExt, testVideoExt)
	file, err := c.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if file.Kind != KindImage {
		t.Errorf("Expected image, got %v", file.Kind)
	}
	if file.Ext != ".jpg" {
		t.Errorf("Expected lowercased .jpg, got %s", file.Ext)
	}
	if file.Size != 4 {
		t.Errorf("Expected size 4, got %d", file.Size)
	}
	if !file.ModTime.Equal(mtime) {
		t.Errorf("Expected mtime %v, got %v", mtime, file.ModTime)
	}

	if _, err := c.Stat(dir); err == nil {
		t.Error("Expected error for a directory")
	}
	if _, err := c.Stat(filepath.Join(dir, "missing.jpg")); !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestEnumerate(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(src, "sorted")
	for _, rel := range []string{"a.jpg", "nested/b.mov", "nested/deeper/c.txt", "sorted/2020/01/01/x.jpg"} {
		writeFile(t, filepath.Join(src, rel), []byte(rel), time.Time{})
	}
	if err := os.Symlink(filepath.Join(src, "a.jpg"), filepath.Join(src, "link.jpg")); err != nil {
		t.Logf("symlink not supported: %v", err)
	}

	files, err := Enumerate(src, dest)
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	sort.Strings(files)

	want := []string{
		filepath.Join(src, "a.jpg"),
		filepath.Join(src, "nested/b.mov"),
		filepath.Join(src, "nested/deeper/c.txt"),
	}
	if len(files) != len(want) {
		t.Fatalf("Expected %d files, got %d: %v", len(want), len(files), files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}
}

func TestEnumerate_MissingRoot(t *testing.T) {
	if _, err := Enumerate(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Expected error for missing root")
	}
}
