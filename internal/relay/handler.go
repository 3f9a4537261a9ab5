package relay

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "github.com/fleetdeck-io/fleetdeck/pkg/errors"
	"github.com/fleetdeck-io/fleetdeck/pkg/logger"
	"github.com/fleetdeck-io/fleetdeck/pkg/response"
)

const (
	// TokenQueryParam and TokenHeader are the two places a camera may
	// present its API token during the relay handshake.
	TokenQueryParam = "token"
	TokenHeader     = "X-Camera-Token"

	defaultHandshakeTimeout = 10 * time.Second
)

// Config describes the upstream voice endpoint the relay bridges to.
type Config struct {
	// UpstreamURL is the wss endpoint of the realtime provider.
	UpstreamURL string
	// Secret is sent upstream as a bearer token. It is never exposed to
	// cameras.
	Secret string
	// ProtocolHeader/ProtocolValue form an extra handshake header the
	// provider requires, e.g. "OpenAI-Beta: realtime=v1".
	ProtocolHeader string
	ProtocolValue  string
	// HandshakeTimeout bounds the upstream dial. Zero selects a default.
	HandshakeTimeout time.Duration
}

// Handler terminates camera websocket connections and bridges each one to
// the upstream realtime endpoint.
type Handler struct {
	cfg        Config
	authorizer Authorizer
	upgrader   websocket.Upgrader
	dial       func(urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
	log        *zap.Logger
}

func NewHandler(cfg Config, authorizer Authorizer) *Handler {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	return &Handler{
		cfg:        cfg,
		authorizer: authorizer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Cameras dial from their own firmware, not a browser.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		dial: dialer.Dial,
		log:  logger.WithModule("relay"),
	}
}

// Connect handles GET /realtime/voice. Authorization is decided, and the
// upstream connection established, before the client upgrade completes, so
// a camera never holds an open socket it is not entitled to.
func (h *Handler) Connect(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		response.Error(c, apperrors.ErrUpgradeRequired)
		return
	}

	token := extractToken(c.Request)
	if token == "" {
		response.Error(c, apperrors.New("relay.token_missing", "Camera token required", http.StatusUnauthorized))
		return
	}

	identity, ok := h.authorizer.Authorize(c.Request.Context(), token)
	if !ok {
		response.Error(c, apperrors.New("relay.token_invalid", "Camera token rejected", http.StatusForbidden))
		return
	}

	upstream, resp, err := h.dial(h.cfg.UpstreamURL, h.upstreamHeader())
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		h.log.Error("upstream dial failed",
			zap.String("camera_id", identity.CameraID),
			zap.Int("upstream_status", status),
			zap.Error(err))
		response.Error(c, apperrors.New("relay.upstream_unavailable", "Voice service unavailable", http.StatusBadGateway))
		return
	}

	client, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade failures write their own response.
		_ = upstream.Close()
		h.log.Warn("client upgrade failed",
			zap.String("camera_id", identity.CameraID),
			zap.Error(err))
		return
	}

	h.log.Info("relay session started",
		zap.String("camera_id", identity.CameraID),
		zap.String("camera_name", identity.Name))

	NewSession(identity, client, upstream, h.log).Run()
}

func (h *Handler) upstreamHeader() http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+h.cfg.Secret)
	if h.cfg.ProtocolHeader != "" {
		header.Set(h.cfg.ProtocolHeader, h.cfg.ProtocolValue)
	}
	return header
}

func extractToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get(TokenQueryParam)); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get(TokenHeader))
}
