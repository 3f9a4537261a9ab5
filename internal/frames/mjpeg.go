package frames

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTickInterval gives roughly 10 frames per second.
	DefaultTickInterval = 100 * time.Millisecond

	// StreamBoundary separates parts in the multipart stream.
	StreamBoundary = "frame"
)

// StreamContentType is the response content type browsers expect for an
// MJPEG stream rendered through an <img> element.
const StreamContentType = "multipart/x-mixed-replace; boundary=" + StreamBoundary

// Streamer emulates an MJPEG stream by polling the store on a fixed
// interval and writing whichever fresh frame is present. Ticks with no
// fresh frame write nothing; the browser simply keeps the last image.
type Streamer struct {
	store *Store
	tick  time.Duration
}

// NewStreamer builds a streamer over the supplied store.
func NewStreamer(store *Store, tick time.Duration) *Streamer {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	return &Streamer{store: store, tick: tick}
}

// Serve writes multipart frames for cameraID to w until ctx is cancelled
// or the writer fails. The caller is expected to pass the request context
// so a client disconnect stops the ticker promptly.
func (s *Streamer) Serve(ctx context.Context, w io.Writer, cameraID string) error {
	flusher, _ := w.(http.Flusher)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			frame, ok := s.store.Fetch(cameraID)
			if !ok {
				continue
			}
			if err := writePart(w, frame); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func writePart(w io.Writer, frame *Frame) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n",
		StreamBoundary, frame.ContentType, frame.Size); err != nil {
		return err
	}
	if _, err := w.Write(frame.Payload); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
