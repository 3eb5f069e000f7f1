package badge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/eventdesk/roster/internal/delivery"
	"github.com/eventdesk/roster/internal/roster"
	"github.com/eventdesk/roster/internal/tasks"
)

type fakeSource struct {
	mu       sync.Mutex
	artifact roster.Artifact
	err      error
	gate     map[string]chan struct{}
	calls    []string
}

func (f *fakeSource) FetchArtifact(ctx context.Context, id string) (roster.Artifact, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	gate := f.gate[id]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.artifact, f.err
}

type recordingSink struct {
	mu    sync.Mutex
	names []string
	data  [][]byte
	err   error
}

func (s *recordingSink) Deliver(data []byte, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.names = append(s.names, filename)
	s.data = append(s.data, data)
	return nil
}

func TestDownloadDeliversWithHintedFilename(t *testing.T) {
	src := &fakeSource{artifact: roster.Artifact{
		Data:        []byte("%PDF"),
		Disposition: `attachment; filename*=UTF-8''%D8%AA%D8%AC%D8%B1%D9%8A%D8%A8.pdf`,
	}}
	sink := &recordingSink{}
	tr := tasks.New("badge_test_hint")
	d := &Downloader{Source: src, Tracker: tr}

	name, err := d.Download(context.Background(), "p1", sink)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if name != "تجريب.pdf" || len(sink.names) != 1 || sink.names[0] != name {
		t.Fatalf("unexpected delivery: name=%q sink=%v", name, sink.names)
	}
	if tr.IsActive("p1") {
		t.Fatal("expected pending mark cleared")
	}
}

func TestDownloadWithoutHintUsesDefault(t *testing.T) {
	sink := &recordingSink{}
	d := &Downloader{Source: &fakeSource{artifact: roster.Artifact{Data: []byte("x")}}}
	name, err := d.Download(context.Background(), "p1", sink)
	if err != nil || name != delivery.DefaultFilename {
		t.Fatalf("unexpected result %q %v", name, err)
	}
}

func TestFailureClearsPendingBeforeNotifying(t *testing.T) {
	tr := tasks.New("badge_test_failure")
	fetchErr := &roster.RemoteError{Op: roster.OpFetchArtifact, Status: 404, Message: "Participant not found"}
	var notified []string
	d := &Downloader{
		Source:  &fakeSource{err: fetchErr},
		Tracker: tr,
		OnError: func(id string, err error) {
			if tr.IsActive(id) {
				t.Errorf("notification for %s ran while still pending", id)
			}
			notified = append(notified, roster.Message(roster.OpFetchArtifact, err))
		},
	}

	_, err := d.Download(context.Background(), "p1", &recordingSink{})
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if len(notified) != 1 || notified[0] != "Participant not found" {
		t.Fatalf("unexpected notifications %v", notified)
	}
}

func TestSinkFailureIsReported(t *testing.T) {
	tr := tasks.New("badge_test_sink")
	var got error
	d := &Downloader{
		Source:  &fakeSource{artifact: roster.Artifact{Data: []byte("x")}},
		Tracker: tr,
		OnError: func(_ string, err error) { got = err },
	}
	_, err := d.Download(context.Background(), "p1", &recordingSink{err: errors.New("disk full")})
	var fetch *roster.FetchError
	if !errors.As(err, &fetch) || got == nil {
		t.Fatalf("expected FetchError and notification, got %v / %v", err, got)
	}
	if roster.Message(roster.OpFetchArtifact, got) != "Failed to download PDF" {
		t.Fatalf("unexpected message for %v", got)
	}
	if tr.IsActive("p1") {
		t.Fatal("expected pending mark cleared")
	}
}

func TestConcurrentDownloadsAreIndependent(t *testing.T) {
	gateA := make(chan struct{})
	src := &fakeSource{
		artifact: roster.Artifact{Data: []byte("x")},
		gate:     map[string]chan struct{}{"a": gateA},
	}
	tr := tasks.New("badge_test_independent")
	d := &Downloader{Source: src, Tracker: tr}
	sink := &recordingSink{}

	started := make(chan struct{})
	tr.Observe(func(id string, active bool) {
		if id == "a" && active {
			close(started)
		}
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = d.Download(context.Background(), "a", sink)
	}()
	<-started

	if _, err := d.Download(context.Background(), "b", sink); err != nil {
		t.Fatalf("Download b returned error: %v", err)
	}
	if !tr.IsActive("a") || tr.IsActive("b") {
		t.Fatalf("unexpected pending state a=%v b=%v", tr.IsActive("a"), tr.IsActive("b"))
	}
	close(gateA)
	<-done
	if tr.IsActive("a") {
		t.Fatal("expected a cleared after completion")
	}
}
