package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fleetdeck-io/fleetdeck/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4 << 20 // 4 MiB, audio chunks included
)

// Session owns one client/upstream connection pair. Messages are copied
// verbatim in both directions, preserving per-direction order and message
// boundaries. Closing or erroring either socket tears down both; nothing
// is queued, retried, or replayed.
type Session struct {
	identity Identity
	client   *websocket.Conn
	upstream *websocket.Conn
	log      *zap.Logger

	closeOnce sync.Once
}

// NewSession pairs an accepted client connection with an established
// upstream connection. Both sockets become property of the session.
func NewSession(identity Identity, client, upstream *websocket.Conn, log *zap.Logger) *Session {
	return &Session{
		identity: identity,
		client:   client,
		upstream: upstream,
		log:      log,
	}
}

// Run relays until either side closes or errors, then tears down both
// sockets. It blocks for the lifetime of the session.
func (s *Session) Run() {
	metrics.RelaySessions.Inc()
	defer metrics.RelaySessions.Dec()

	s.client.SetReadLimit(maxMessageSize)
	s.upstream.SetReadLimit(maxMessageSize)

	errCh := make(chan error, 2)

	go s.forward(s.client, s.upstream, errCh)
	go s.forward(s.upstream, s.client, errCh)

	err := <-errCh
	s.teardown(err)

	// Wait for the second pump so neither goroutine outlives the session.
	<-errCh
}

func (s *Session) forward(src, dst *websocket.Conn, errCh chan<- error) {
	for {
		messageType, payload, err := src.ReadMessage()
		if err != nil {
			errCh <- err
			return
		}

		if err := dst.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			errCh <- err
			return
		}
		if err := dst.WriteMessage(messageType, payload); err != nil {
			// Destination already closed or closing: the message is
			// dropped and the session ends.
			errCh <- err
			return
		}
	}
}

func (s *Session) teardown(cause error) {
	s.closeOnce.Do(func() {
		if cause != nil && !isExpectedClose(cause) {
			s.log.Warn("relay session ended",
				zap.String("camera_id", s.identity.CameraID),
				zap.Error(cause))
		} else {
			s.log.Info("relay session closed",
				zap.String("camera_id", s.identity.CameraID))
		}

		deadline := time.Now().Add(writeWait)
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.client.WriteControl(websocket.CloseMessage, closeMsg, deadline)
		_ = s.upstream.WriteControl(websocket.CloseMessage, closeMsg, deadline)

		_ = s.client.Close()
		_ = s.upstream.Close()
	})
}

func isExpectedClose(err error) bool {
	if err == nil {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return true
	}
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr)
}
