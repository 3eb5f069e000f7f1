package delivery

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// Sink persists or hands off one document.
type Sink interface {
	Deliver(data []byte, filename string) error
}

// DirSink saves documents into Dir. Each delivery writes a transient file
// that is renamed into place; the transient file is always released.
type DirSink struct {
	Dir string
}

func (s DirSink) Deliver(data []byte, filename string) (err error) {
	name, ok := sanitize(filename)
	if !ok {
		name = DefaultFilename
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".download-*")
	if err != nil {
		return fmt.Errorf("create transient file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		closeErr := tmp.Close()
		if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && err == nil {
			err = fmt.Errorf("close transient file: %w", closeErr)
		}
		// After a successful rename this is a no-op.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write transient file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close transient file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.Dir, name)); err != nil {
		return fmt.Errorf("move %s into place: %w", name, err)
	}
	return nil
}

// ResponseSink delivers a document to the browser as an attachment.
type ResponseSink struct {
	W           http.ResponseWriter
	ContentType string
}

func (s ResponseSink) Deliver(data []byte, filename string) error {
	contentType := s.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	h := s.W.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", ContentDisposition(filename))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Cache-Control", "no-store")
	s.W.WriteHeader(http.StatusOK)
	if _, err := s.W.Write(data); err != nil {
		return fmt.Errorf("write download response: %w", err)
	}
	return nil
}
