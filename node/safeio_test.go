package node

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadFileFromDirRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	if _, err := readFileFromDir(dir, "../x"); err == nil {
		t.Fatalf("expected error for traversal name")
	}
	if _, err := readFileFromDir(dir, ".."); err == nil {
		t.Fatalf("expected error for ..")
	}
	if _, err := readFileFromDir(dir, ""); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestReadFileFromDirReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ok.bin")
	if err := os.WriteFile(path, []byte("hi"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := readFileByPath(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "hi" {
		t.Fatalf("unexpected bytes: %q", string(b))
	}
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	for _, content := range []string{"one", "two"} {
		if err := writeFileAtomic(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil || string(got) != content {
			t.Fatalf("got %q, %v", got, err)
		}
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp file left behind: %d entries", len(entries))
	}
}

func TestWriteFileIfAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b")
	if err := writeFileIfAbsent(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := writeFileIfAbsent(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("same content must be accepted: %v", err)
	}
	if err := writeFileIfAbsent(path, []byte("y"), 0o600); err == nil {
		t.Fatalf("expected conflict error")
	}
}

func TestWriteSeedFileKeepsExistingSeed(t *testing.T) {
	dir := t.TempDir()
	if err := WriteSeedFile(dir, "first"); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if err := WriteSeedFile(dir, "first"); err != nil {
		t.Fatalf("rewriting the same seed: %v", err)
	}
	if err := WriteSeedFile(dir, "second"); err == nil {
		t.Fatalf("expected a different seed to be refused")
	}
	got, err := os.ReadFile(filepath.Join(dir, SeedFileName))
	if err != nil {
		t.Fatalf("read seed: %v", err)
	}
	if string(got) != "first\n" {
		t.Fatalf("seed file = %q", got)
	}
}
