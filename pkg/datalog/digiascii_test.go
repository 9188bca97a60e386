package datalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/paproto"
)

func writeTextFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDigiASCIIReplayerParsesRecords(t *testing.T) {
	dir := t.TempDir()
	content := "<OOI-TS 2023-01-14T15:30:00.000000Z TX>\r\n" +
		"hello world\r\n" +
		"<\\OOI-TS>" +
		"junk between records" +
		"<OOI-TS 2023-01-14T15:30:05.000000Z TN>\r\n" +
		"second record\r\n" +
		"<\\OOI-TS>"
	path := writeTextFile(t, dir, "a.txt", content)

	r := &fakeRouter{clients: 1}
	rep := NewDigiASCIIReplayer(zerolog.Nop(), r, []string{path})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rep.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := r.packets()
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if string(got[0].Payload) != "hello world\r\n" {
		t.Errorf("unexpected first record payload: %q", got[0].Payload)
	}
	if string(got[1].Payload) != "second record\r\n" {
		t.Errorf("unexpected second record payload: %q", got[1].Payload)
	}
	for _, p := range got {
		if p.Header.PacketType != paproto.FromInstrument {
			t.Errorf("expected FROM_INSTRUMENT, got %s", p.Header.PacketType)
		}
	}
	wantNTP, _ := paproto.ParseISOToNTP("2023-01-14T15:30:00.000000Z")
	if got[0].Header.Time() != wantNTP {
		t.Errorf("expected record timestamp from its own OOI-TS marker, got %v want %v", got[0].Header.Time(), wantNTP)
	}
}

func TestDigiASCIIReplayerSkipsBadTimestamp(t *testing.T) {
	dir := t.TempDir()
	content := "<OOI-TS not-a-timestamp XS>\r\nbad\r\n<\\OOI-TS>" +
		"<OOI-TS 2023-01-14T15:30:05Z XN>\r\ngood\r\n<\\OOI-TS>"
	path := writeTextFile(t, dir, "a.txt", content)

	r := &fakeRouter{clients: 1}
	rep := NewDigiASCIIReplayer(zerolog.Nop(), r, []string{path})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rep.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := r.packets()
	if len(got) != 1 {
		t.Fatalf("expected the malformed-timestamp record to be skipped, got %d packets", len(got))
	}
	if string(got[0].Payload) != "good\r\n" {
		t.Errorf("unexpected surviving record: %q", got[0].Payload)
	}
}

func TestSortDigiFilesByTimestampToken(t *testing.T) {
	files := []string{
		"station_20230115T000000_UTC.txt",
		"station_20230114T000000_UTC.txt",
		"station_20230116T000000_UTC.txt",
	}
	sorted := sortDigiFiles(files)
	want := []string{
		"station_20230114T000000_UTC.txt",
		"station_20230115T000000_UTC.txt",
		"station_20230116T000000_UTC.txt",
	}
	for i := range want {
		if sorted[i] != want[i] {
			t.Fatalf("sortDigiFiles = %v, want %v", sorted, want)
		}
	}
}

func TestSortDigiFilesFallsBackToLexicographic(t *testing.T) {
	files := []string{"b.txt", "a.txt", "c_20230101T000000_UTC.txt"}
	sorted := sortDigiFiles(files)
	want := []string{"a.txt", "b.txt", "c_20230101T000000_UTC.txt"}
	for i := range want {
		if sorted[i] != want[i] {
			t.Fatalf("sortDigiFiles = %v, want %v (mixed tokenized/untokenized falls back to lexicographic)", sorted, want)
		}
	}
}
