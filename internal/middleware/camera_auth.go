package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fleetdeck-io/fleetdeck/internal/models"
	apperrors "github.com/fleetdeck-io/fleetdeck/pkg/errors"
	"github.com/fleetdeck-io/fleetdeck/pkg/response"
)

const (
	// CtxCameraIDKey holds the authenticated camera's row ID.
	CtxCameraIDKey = "cameraID"
	// CtxCameraDeviceIDKey holds the authenticated camera's device-facing ID.
	CtxCameraDeviceIDKey = "cameraDeviceID"

	cameraTokenHeader = "X-Camera-Token"
)

// CameraAuth authenticates device-facing endpoints with the camera API
// token, presented in the X-Camera-Token header or a token query
// parameter. A missing token is a 401; a token that does not resolve to
// exactly one camera is a 403.
func CameraAuth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(cameraTokenHeader))
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		var matches []models.Camera
		err := db.WithContext(c.Request.Context()).
			Select("id", "camera_id").
			Where("api_token = ?", token).
			Limit(2).
			Find(&matches).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperrors.ErrInternalServer)
			c.Abort()
			return
		}
		if len(matches) != 1 {
			response.Error(c, apperrors.ErrForbidden)
			c.Abort()
			return
		}

		c.Set(CtxCameraIDKey, matches[0].ID)
		c.Set(CtxCameraDeviceIDKey, matches[0].CameraID)
		c.Next()
	}
}
