package frames

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStreamerWritesFreshFrames(t *testing.T) {
	store := NewStore(Config{MaxAge: time.Minute})
	store.Store("cam-1", []byte{0xFF, 0xD8, 0xFF, 0xAA}, "image/jpeg")

	streamer := NewStreamer(store, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	err := streamer.Serve(ctx, &buf, "cam-1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	out := buf.String()
	require.Contains(t, out, "--frame\r\n")
	require.Contains(t, out, "Content-Type: image/jpeg\r\n")
	require.Contains(t, out, "Content-Length: 4\r\n")
	require.Contains(t, out, string([]byte{0xFF, 0xD8, 0xFF, 0xAA}))
}

func TestStreamerSkipsMisses(t *testing.T) {
	store := NewStore(Config{MaxAge: time.Minute})
	streamer := NewStreamer(store, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	err := streamer.Serve(ctx, &buf, "cam-unknown")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, buf.Len(), "misses must emit nothing")
}

func TestStreamerStopsOnCancel(t *testing.T) {
	store := NewStore(Config{MaxAge: time.Minute})
	store.Store("cam-1", []byte("abc"), "image/jpeg")
	streamer := NewStreamer(store, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	var buf bytes.Buffer
	go func() {
		done <- streamer.Serve(ctx, &buf, "cam-1")
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("streamer did not stop after cancellation")
	}

	parts := strings.Count(buf.String(), "--frame\r\n")
	require.Greater(t, parts, 0)
}
