package delivery

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		want        string
	}{
		{
			name:        "rfc5987 arabic",
			disposition: `attachment; filename*=UTF-8''%D8%AA%D8%AC%D8%B1%D9%8A%D8%A8.pdf`,
			want:        "تجريب.pdf",
		},
		{
			name:        "plain quoted",
			disposition: `attachment; filename="ticket.pdf"`,
			want:        "ticket.pdf",
		},
		{
			name:        "parameters without type",
			disposition: `filename="ticket.pdf"`,
			want:        "ticket.pdf",
		},
		{
			name:        "extended wins over plain",
			disposition: `attachment; filename="fallback.pdf"; filename*=UTF-8''badge%20%C3%A9.pdf`,
			want:        "badge é.pdf",
		},
		{
			name:        "neither",
			disposition: `attachment`,
			want:        DefaultFilename,
		},
		{
			name:        "empty",
			disposition: "",
			want:        DefaultFilename,
		},
		{
			name:        "malformed",
			disposition: `attachment; filename="unterminated`,
			want:        DefaultFilename,
		},
		{
			name:        "directory components stripped",
			disposition: `attachment; filename="../../etc/badge.pdf"`,
			want:        "badge.pdf",
		},
		{
			name:        "dot dot only",
			disposition: `attachment; filename=".."`,
			want:        DefaultFilename,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Filename(tc.disposition); got != tc.want {
				t.Fatalf("Filename(%q) = %q, want %q", tc.disposition, got, tc.want)
			}
		})
	}
}

func TestContentDispositionRoundTrip(t *testing.T) {
	for _, name := range []string{"ticket.pdf", "تجريب.pdf", `we"ird name.pdf`} {
		header := ContentDisposition(name)
		if !strings.HasPrefix(header, "attachment; ") {
			t.Fatalf("unexpected header %q", header)
		}
		if got := Filename(header); got != name {
			t.Fatalf("round trip of %q through %q gave %q", name, header, got)
		}
	}
}

func TestContentDispositionASCIIFallback(t *testing.T) {
	header := ContentDisposition("تجريب.pdf")
	if !strings.Contains(header, `filename="_____.pdf"`) {
		t.Fatalf("expected ascii fallback, got %q", header)
	}
	if !strings.Contains(header, "filename*=UTF-8''%D8%AA%D8%AC%D8%B1%D9%8A%D8%A8.pdf") {
		t.Fatalf("expected encoded filename*, got %q", header)
	}
}

func TestDirSinkWritesFileAndReleasesTransient(t *testing.T) {
	dir := t.TempDir()
	sink := DirSink{Dir: dir}

	if err := sink.Deliver([]byte("%PDF-1.4"), "badge.pdf"); err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "badge.pdf"))
	if err != nil {
		t.Fatalf("read delivered file: %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Fatalf("unexpected content %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the delivered file, got %d entries", len(entries))
	}
}

func TestDirSinkReleasesTransientOnFailure(t *testing.T) {
	dir := t.TempDir()
	// A directory occupying the target name makes the rename fail.
	if err := os.Mkdir(filepath.Join(dir, "badge.pdf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "badge.pdf", "keep"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := (DirSink{Dir: dir}).Deliver([]byte("data"), "badge.pdf"); err == nil {
		t.Fatal("expected rename failure")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".download-") {
			t.Fatalf("transient file %s was not released", e.Name())
		}
	}
}

func TestDirSinkFallsBackToDefaultName(t *testing.T) {
	dir := t.TempDir()
	if err := (DirSink{Dir: dir}).Deliver([]byte("x"), ""); err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultFilename)); err != nil {
		t.Fatalf("expected default filename: %v", err)
	}
}

func TestResponseSink(t *testing.T) {
	rec := httptest.NewRecorder()
	err := ResponseSink{W: rec, ContentType: "application/pdf"}.Deliver([]byte("%PDF-1.4"), "ticket.pdf")
	if err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}
	if rec.Code != 200 {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := Filename(rec.Header().Get("Content-Disposition")); got != "ticket.pdf" {
		t.Fatalf("unexpected filename %q", got)
	}
	if rec.Body.String() != "%PDF-1.4" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}
