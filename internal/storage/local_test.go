package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStore_SaveOpen(t *testing.T) {
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "uploads"), 0)
	if err != nil {
		t.Fatal(err)
	}
	key, err := s.Save("../../etc/Report.PDF", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasSuffix(key, ".pdf") || strings.Contains(key, "/") {
		t.Fatalf("unexpected key %q", key)
	}
	rc, err := s.Open(key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "hello" {
		t.Fatalf("expected hello, got %q", b)
	}
}

func TestLocalStore_TooLarge(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewLocalStore(dir, 4)
	if _, err := s.Save("a.txt", strings.NewReader("12345")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("oversized upload must not be kept, found %d files", len(entries))
	}
	if _, err := s.Save("a.txt", strings.NewReader("1234")); err != nil {
		t.Fatalf("upload at the limit should succeed: %v", err)
	}
}

func TestLocalStore_Remove(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewLocalStore(dir, 0)
	key, err := s.Save("a.txt", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(key); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, key)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file still present: %v", err)
	}
	if err := s.Remove(key); err != nil {
		t.Fatalf("second remove should be a no-op, got %v", err)
	}
	if err := s.Remove("../escape"); !errors.Is(err, ErrBadKey) {
		t.Fatalf("expected ErrBadKey, got %v", err)
	}
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	s, _ := NewLocalStore(t.TempDir(), 0)
	for _, key := range []string{"", "../x", "a/b", ".hidden"} {
		if _, err := s.Open(key); !errors.Is(err, ErrBadKey) {
			t.Errorf("%q: expected ErrBadKey, got %v", key, err)
		}
	}
}

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"photo.JPG":           ".jpg",
		"noext":               "",
		"weird.p$f":           "",
		"archive.tar.gz":      ".gz",
		"x.verylongextension": "",
	}
	for in, want := range cases {
		if got := extension(in); got != want {
			t.Errorf("extension(%q) = %q, want %q", in, got, want)
		}
	}
}
