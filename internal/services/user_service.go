package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/fleetdeck-io/fleetdeck/internal/models"
	apperrors "github.com/fleetdeck-io/fleetdeck/pkg/errors"
)

// UserService manages dashboard operator accounts.
type UserService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db, now: time.Now}, nil
}

// EnsureByEmail returns the account for an address, creating it on first
// login. The login timestamp and source IP are refreshed either way.
func (s *UserService) EnsureByEmail(ctx context.Context, email, loginIP string) (*models.User, error) {
	ctx = ensureContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("user service: email is required")
	}

	now := s.now().UTC()

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		if !user.IsActive {
			return nil, apperrors.ErrForbidden
		}
		updates := map[string]any{"last_login_at": now}
		if ip := strings.TrimSpace(loginIP); ip != "" {
			updates["last_login_ip"] = ip
		}
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("user service: record login: %w", err)
		}
		user.LastLoginAt = &now
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Email:       email,
			Name:        nameFromEmail(email),
			IsActive:    true,
			LastLoginAt: &now,
			LastLoginIP: strings.TrimSpace(loginIP),
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			if isUniqueConstraintError(err) {
				// Lost a create race; fall back to the existing row.
				return s.EnsureByEmail(ctx, email, loginIP)
			}
			return nil, fmt.Errorf("user service: create user: %w", err)
		}
		return &user, nil
	default:
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

func nameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return email
	}
	return local
}
