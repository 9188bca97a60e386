package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewCreatesFileNamedForToday(t *testing.T) {
	dir := t.TempDir()
	l, err := New(zerolog.Nop(), dir, "test-agent", ".log")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	want := filepath.Join(dir, "test-agent."+time.Now().UTC().Format(dayLayout)+".log")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected %s to exist: %v", want, err)
	}
}

func TestWriteAppendsToCurrentFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(zerolog.Nop(), dir, "test-agent", ".log")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	l.Write([]byte("line one\n"))
	l.Write([]byte("line two\n"))

	path := filepath.Join(dir, "test-agent."+time.Now().UTC().Format(dayLayout)+".log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "line one\nline two\n" {
		t.Fatalf("unexpected file contents: %q", data)
	}
}

func TestWriteAfterCloseIsSilentlyDropped(t *testing.T) {
	dir := t.TempDir()
	l, err := New(zerolog.Nop(), dir, "test-agent", ".datalog")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Close()

	l.Write([]byte("should be dropped"))
}

func TestRotateOpensNewFileForNewDay(t *testing.T) {
	dir := t.TempDir()
	l, err := New(zerolog.Nop(), dir, "test-agent", ".log")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	if err := l.rotate(tomorrow); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	newPath := filepath.Join(dir, "test-agent."+tomorrow.Format(dayLayout)+".log")
	if _, err := os.Stat(newPath); err != nil {
		t.Fatalf("expected rotated file %s to exist: %v", newPath, err)
	}

	// The original day's file is compressed in the background; poll for up
	// to two seconds until its .gz appears.
	oldPath := filepath.Join(dir, "test-agent."+time.Now().UTC().Format(dayLayout)+".log")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(oldPath + ".gz"); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected %s.gz to appear after rotation", oldPath)
}
