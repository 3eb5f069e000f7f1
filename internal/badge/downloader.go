// Package badge runs the per-participant badge download flow: mark the
// participant pending, fetch the document, hand it to a sink, clear the
// pending mark, then report any failure.
package badge

import (
	"context"
	"log/slog"

	"github.com/eventdesk/roster/internal/delivery"
	"github.com/eventdesk/roster/internal/roster"
	"github.com/eventdesk/roster/internal/tasks"
)

// Source fetches a participant's generated document.
type Source interface {
	FetchArtifact(ctx context.Context, id string) (roster.Artifact, error)
}

type Downloader struct {
	Source  Source
	Tracker *tasks.Tracker
	// OnError runs after the pending mark is cleared.
	OnError func(id string, err error)
	Logger  *slog.Logger
}

// Download fetches the badge for id and delivers it to sink. It returns the
// filename handed to the sink. Downloads for distinct ids are independent.
func (d *Downloader) Download(ctx context.Context, id string, sink delivery.Sink) (string, error) {
	filename, err := d.run(ctx, id, sink)
	if err != nil {
		d.logger().Warn("badge download failed", "participant_id", id, "err", err)
		if d.OnError != nil {
			d.OnError(id, err)
		}
		return "", err
	}
	d.logger().Info("badge delivered", "participant_id", id, "filename", filename)
	return filename, nil
}

func (d *Downloader) run(ctx context.Context, id string, sink delivery.Sink) (string, error) {
	if d.Tracker != nil {
		d.Tracker.Begin(id)
		defer d.Tracker.End(id)
	}

	artifact, err := d.Source.FetchArtifact(ctx, id)
	if err != nil {
		return "", err
	}
	filename := delivery.Filename(artifact.Disposition)
	if err := sink.Deliver(artifact.Data, filename); err != nil {
		return "", &roster.FetchError{Op: roster.OpFetchArtifact, Err: err}
	}
	return filename, nil
}

func (d *Downloader) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
