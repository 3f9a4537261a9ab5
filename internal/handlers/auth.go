package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/fleetdeck-io/fleetdeck/internal/auth"
	"github.com/fleetdeck-io/fleetdeck/internal/middleware"
	"github.com/fleetdeck-io/fleetdeck/internal/services"
	apperrors "github.com/fleetdeck-io/fleetdeck/pkg/errors"
	"github.com/fleetdeck-io/fleetdeck/pkg/response"
)

// AuthHandler manages the magic-link authentication flow.
type AuthHandler struct {
	links    *services.LoginLinkService
	users    *services.UserService
	sessions *iauth.SessionService
}

func NewAuthHandler(links *services.LoginLinkService, users *services.UserService, sessions *iauth.SessionService) *AuthHandler {
	return &AuthHandler{links: links, users: users, sessions: sessions}
}

type requestLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyRequest struct {
	Token string `json:"token" validate:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RequestLink emails a sign-in link. The response does not reveal whether
// the address is recognised.
// POST /api/auth/request-link
func (h *AuthHandler) RequestLink(c *gin.Context) {
	var req requestLinkRequest
	if !bindAndValidate(c, &req) {
		return
	}

	_, err := h.links.RequestLink(requestContext(c), req.Email)
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, gin.H{"sent": true})
	case errors.Is(err, services.ErrInvalidEmail):
		response.Error(c, apperrors.NewBadRequest("a valid email address is required"))
	case errors.Is(err, services.ErrLoginRateLimited):
		response.Error(c, apperrors.ErrRateLimit)
	default:
		response.Error(c, apperrors.ErrInternalServer)
	}
}

// Verify redeems a link token and opens a session.
// POST /api/auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	email, err := h.links.Redeem(requestContext(c), req.Token)
	if err != nil {
		// All redemption failures read the same to the caller.
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	user, err := h.users.EnsureByEmail(requestContext(c), email, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	pair, _, err := h.sessions.CreateSession(user.ID, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, apperrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"tokens": tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
		"user": gin.H{
			"id":       user.ID,
			"email":    user.Email,
			"name":     user.Name,
			"is_admin": user.IsAdmin,
		},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh rotates the refresh token.
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		response.Error(c, apperrors.NewBadRequest("refresh token is required"))
		return
	}

	pair, _, err := h.sessions.RefreshSession(req.RefreshToken)
	if err != nil {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// Logout revokes the current session.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID := c.GetString(middleware.CtxSessionIDKey)
	if sessionID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	if err := h.sessions.RevokeSession(sessionID); err != nil {
		response.Error(c, apperrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

// Me returns the authenticated user's profile.
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	user, err := h.users.Get(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"id":            user.ID,
		"email":         user.Email,
		"name":          user.Name,
		"is_admin":      user.IsAdmin,
		"last_login_at": user.LastLoginAt,
	})
}
