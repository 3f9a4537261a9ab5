package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/fleetdeck-io/fleetdeck/internal/auth"
	"github.com/fleetdeck-io/fleetdeck/internal/realtime"
	"github.com/fleetdeck-io/fleetdeck/pkg/errors"
	"github.com/fleetdeck-io/fleetdeck/pkg/response"
)

// RealtimeHandler upgrades dashboard connections onto the realtime hub.
type RealtimeHandler struct {
	hub *realtime.Hub
	jwt *iauth.JWTService
}

func NewRealtimeHandler(hub *realtime.Hub, jwt *iauth.JWTService) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, jwt: jwt}
}

// Stream authenticates the caller and joins the requested streams.
// Browsers cannot set headers on websocket dials, so the token is also
// accepted as a query parameter.
// GET /api/realtime?stream=baskets&stream=telemetry
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.jwt == nil || h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		authz := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
	}
	if token == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	claims, err := h.jwt.ValidateAccessToken(token)
	if err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	streams := c.QueryArray("stream")
	if len(streams) == 0 {
		streams = realtime.Streams()
	}

	h.hub.Serve(userID, streams, c.Writer, c.Request)
}
