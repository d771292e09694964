package internal

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestPlan_Layout(t *testing.T) {
	root := t.TempDir()
	p := NewPlanner()

	got, err := p.Plan(localTime(2023, 7, 4, 9, 15, 30), ".JPG", root, SkipDuplicates)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	want := filepath.Join(root, "2023", "07", "04", "2023-07-04_09-15-30.jpg")
	if got != want {
		t.Errorf("Plan = %s, want %s", got, want)
	}
	if info, err := os.Stat(filepath.Dir(got)); err != nil || !info.IsDir() {
		t.Errorf("Target directory not created: %v", err)
	}
}

func TestPlan_UniqueSuffix(t *testing.T) {
	root := t.TempDir()
	p := NewPlanner()
	at := localTime(2020, 1, 2, 3, 4, 5)

	for i, want := range []string{
		"2020-01-02_03-04-05.mp4",
		"2020-01-02_03-04-05 (1).mp4",
		"2020-01-02_03-04-05 (2).mp4",
	} {
		got, err := p.Plan(at, ".mp4", root, UniqueSuffix)
		if err != nil {
			t.Fatalf("Plan %d failed: %v", i, err)
		}
		if filepath.Base(got) != want {
			t.Errorf("Plan %d = %s, want %s", i, filepath.Base(got), want)
		}
		writeFile(t, got, []byte{byte(i)}, time.Time{})
	}

	// SkipDuplicates ignores what is already there.
	got, err := p.Plan(at, ".mp4", root, SkipDuplicates)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if filepath.Base(got) != "2020-01-02_03-04-05.mp4" {
		t.Errorf("SkipDuplicates should return the base name, got %s", filepath.Base(got))
	}
}

func TestPlan_DirectoryIsAFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "2020"), []byte("in the way"), time.Time{})

	if _, err := NewPlanner().Plan(localTime(2020, 1, 2, 3, 4, 5), ".jpg", root, SkipDuplicates); err == nil {
		t.Error("Expected error when a file blocks the target directory")
	}
}

func TestSuffixedPath(t *testing.T) {
	tests := []struct {
		base string
		n    int
		want string
	}{
		{"/d/2020-01-02_03-04-05.jpg", 0, "/d/2020-01-02_03-04-05.jpg"},
		{"/d/2020-01-02_03-04-05.jpg", 1, "/d/2020-01-02_03-04-05 (1).jpg"},
		{"/d/2020-01-02_03-04-05.jpg", 12, "/d/2020-01-02_03-04-05 (12).jpg"},
		{"/d/2020-01-02_03-04-05", 2, "/d/2020-01-02_03-04-05 (2)"},
	}
	for _, tt := range tests {
		if got := SuffixedPath(tt.base, tt.n); got != tt.want {
			t.Errorf("SuffixedPath(%s, %d) = %s, want %s", tt.base, tt.n, got, tt.want)
		}
	}
}

func TestPathLocks(t *testing.T) {
	locks := newPathLocks()

	var mu sync.Mutex
	inside := 0
	maxInside := 0
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("/dest/a.jpg")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("Expected one holder at a time, saw %d", maxInside)
	}
	if n := locks.len(); n != 0 {
		t.Errorf("Expected lock entries to be released, %d left", n)
	}
}

func TestPathLocks_DistinctKeys(t *testing.T) {
	locks := newPathLocks()
	unlockA := locks.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Lock on a different key blocked")
	}
	unlockA()
}
