package relay

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fleetdeck-io/fleetdeck/internal/models"
	"github.com/fleetdeck-io/fleetdeck/pkg/logger"
	"github.com/fleetdeck-io/fleetdeck/pkg/metrics"
)

// Identity names the device a token resolved to.
type Identity struct {
	CameraID string
	Name     string
}

// Authorizer decides whether an opaque device token may open a relay
// session. Implementations must fail closed: any lookup error or
// ambiguity yields not-authorized.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (Identity, bool)
}

// CameraAuthorizer validates tokens against the cameras table. A token is
// valid only when exactly one camera row carries it and that camera's
// status is online.
type CameraAuthorizer struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewCameraAuthorizer constructs a database-backed authorizer.
func NewCameraAuthorizer(db *gorm.DB) (*CameraAuthorizer, error) {
	if db == nil {
		return nil, errors.New("relay: db is required")
	}
	return &CameraAuthorizer{db: db, log: logger.WithModule("relay")}, nil
}

// Authorize implements Authorizer. Every failure branch returns false;
// the token itself is never logged.
func (a *CameraAuthorizer) Authorize(ctx context.Context, token string) (Identity, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		metrics.RelayAuthorizations.WithLabelValues("invalid").Inc()
		return Identity{}, false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var matches []models.Camera
	if err := a.db.WithContext(ctx).
		Select("id", "camera_name", "status").
		Where("api_token = ?", token).
		Limit(2).
		Find(&matches).Error; err != nil {
		a.log.Warn("token lookup failed", zap.Error(err))
		metrics.RelayAuthorizations.WithLabelValues("invalid").Inc()
		return Identity{}, false
	}

	if len(matches) != 1 {
		a.log.Debug("token did not resolve to exactly one camera", zap.Int("matches", len(matches)))
		metrics.RelayAuthorizations.WithLabelValues("invalid").Inc()
		return Identity{}, false
	}

	camera := matches[0]
	if camera.Status != models.CameraStatusOnline {
		a.log.Debug("camera not online", zap.String("camera_id", camera.ID), zap.String("status", camera.Status))
		metrics.RelayAuthorizations.WithLabelValues("invalid").Inc()
		return Identity{}, false
	}

	metrics.RelayAuthorizations.WithLabelValues("valid").Inc()
	return Identity{CameraID: camera.ID, Name: camera.CameraName}, true
}
