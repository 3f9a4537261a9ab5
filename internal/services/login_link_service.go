package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/fleetdeck-io/fleetdeck/internal/models"
	"github.com/fleetdeck-io/fleetdeck/pkg/crypto"
	"github.com/fleetdeck-io/fleetdeck/pkg/mail"
	"github.com/fleetdeck-io/fleetdeck/pkg/metrics"
)

const (
	defaultLoginLinkExpiry     = 15 * time.Minute
	defaultLoginLinkTokenBytes = 32
	defaultLoginLinkPerMinute  = 3
)

var (
	// ErrLoginLinkNotFound indicates the token does not exist.
	ErrLoginLinkNotFound = errors.New("login link: not found")
	// ErrLoginLinkExpired indicates the link has passed its expiry.
	ErrLoginLinkExpired = errors.New("login link: expired")
	// ErrLoginLinkUsed signals that the link has already been redeemed.
	ErrLoginLinkUsed = errors.New("login link: already used")
	// ErrLoginRateLimited signals too many link requests for one address.
	ErrLoginRateLimited = errors.New("login link: rate limited")
	// ErrInvalidEmail indicates the supplied address is not a valid email.
	ErrInvalidEmail = errors.New("login link: invalid email")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// LoginLinkOption customises the LoginLinkService.
type LoginLinkOption func(*LoginLinkService)

// WithLoginLinkBaseURL sets the base URL used when composing link emails.
func WithLoginLinkBaseURL(url string) LoginLinkOption {
	return func(s *LoginLinkService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithLoginLinkExpiry overrides the link lifetime.
func WithLoginLinkExpiry(d time.Duration) LoginLinkOption {
	return func(s *LoginLinkService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithLoginLinkClock injects a custom time source.
func WithLoginLinkClock(clock func() time.Time) LoginLinkOption {
	return func(s *LoginLinkService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithAllowedEmails restricts link issuance to the supplied addresses.
// An empty list allows any address.
func WithAllowedEmails(emails []string) LoginLinkOption {
	return func(s *LoginLinkService) {
		s.allowed = make(map[string]struct{}, len(emails))
		for _, email := range emails {
			email = strings.ToLower(strings.TrimSpace(email))
			if email != "" {
				s.allowed[email] = struct{}{}
			}
		}
	}
}

// LoginLinkService issues and redeems single-use magic-link tokens. A
// request for an address outside the allow-list succeeds silently so the
// endpoint does not reveal which operators exist.
type LoginLinkService struct {
	db      *gorm.DB
	mailer  mail.Mailer
	baseURL string
	expiry  time.Duration
	allowed map[string]struct{}
	now     func() time.Time

	mu       sync.Mutex
	requests map[string][]time.Time
}

// NewLoginLinkService constructs the service with the provided dependencies.
func NewLoginLinkService(db *gorm.DB, mailer mail.Mailer, opts ...LoginLinkOption) (*LoginLinkService, error) {
	if db == nil {
		return nil, errors.New("login link service: db is required")
	}

	service := &LoginLinkService{
		db:       db,
		mailer:   mailer,
		expiry:   defaultLoginLinkExpiry,
		now:      time.Now,
		requests: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// RequestLink validates the address and, when it is on the allow-list,
// creates a link token and emails it. The returned token is only for
// callers that deliver links out of band; handlers must not expose it.
func (s *LoginLinkService) RequestLink(ctx context.Context, email string) (string, error) {
	ctx = ensureContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}

	if err := s.checkRate(email); err != nil {
		return "", err
	}

	if !s.emailAllowed(email) {
		// Indistinguishable from success to the caller.
		return "", nil
	}

	token, err := crypto.GenerateToken(defaultLoginLinkTokenBytes)
	if err != nil {
		return "", fmt.Errorf("login link service: generate token: %w", err)
	}

	now := s.now().UTC()
	link := models.LoginLink{
		Email:     email,
		TokenHash: crypto.HashToken(token),
		ExpiresAt: now.Add(s.expiry),
	}
	if err := s.db.WithContext(ctx).Create(&link).Error; err != nil {
		return "", fmt.Errorf("login link service: create link: %w", err)
	}

	if s.mailer != nil {
		message := mail.Message{
			To:      []string{email},
			Subject: "Your FleetDeck sign-in link",
			Body:    s.linkBody(token),
		}
		if mailErr := s.mailer.Send(ctx, message); mailErr != nil && !errors.Is(mailErr, mail.ErrSMTPDisabled) {
			return "", fmt.Errorf("login link service: send email: %w", mailErr)
		}
	}

	return token, nil
}

// Redeem validates and consumes a link token, returning the verified
// email address. Accounts are provisioned by the caller.
func (s *LoginLinkService) Redeem(ctx context.Context, token string) (string, error) {
	ctx = ensureContext(ctx)
	token = strings.TrimSpace(token)
	if token == "" {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return "", ErrLoginLinkNotFound
	}

	var link models.LoginLink
	if err := s.db.WithContext(ctx).
		Where("token_hash = ?", crypto.HashToken(token)).
		First(&link).Error; err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrLoginLinkNotFound
		}
		return "", fmt.Errorf("login link service: load link: %w", err)
	}

	now := s.now().UTC()
	if link.UsedAt != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return "", ErrLoginLinkUsed
	}
	if !now.Before(link.ExpiresAt) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return "", ErrLoginLinkExpired
	}

	// Guard against two concurrent redeems both passing the check above.
	result := s.db.WithContext(ctx).Model(&link).
		Where("used_at IS NULL").
		Update("used_at", now)
	if result.Error != nil {
		return "", fmt.Errorf("login link service: mark used: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return "", ErrLoginLinkUsed
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return link.Email, nil
}

// PurgeExpired removes links past their expiry and redeemed links.
func (s *LoginLinkService) PurgeExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("expires_at < ? OR used_at IS NOT NULL", s.now().UTC()).
		Delete(&models.LoginLink{})
	if result.Error != nil {
		return 0, fmt.Errorf("login link service: purge expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *LoginLinkService) emailAllowed(email string) bool {
	if len(s.allowed) == 0 {
		return true
	}
	_, ok := s.allowed[email]
	return ok
}

// checkRate enforces a per-address budget of link requests per minute.
func (s *LoginLinkService) checkRate(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-time.Minute)

	// Drop addresses whose whole window has aged out so the map does
	// not keep an entry for every address ever seen.
	for addr, stamps := range s.requests {
		live := stamps[:0]
		for _, ts := range stamps {
			if ts.After(cutoff) {
				live = append(live, ts)
			}
		}
		if len(live) == 0 {
			delete(s.requests, addr)
			continue
		}
		s.requests[addr] = live
	}

	recent := s.requests[email]
	if len(recent) >= defaultLoginLinkPerMinute {
		return ErrLoginRateLimited
	}

	s.requests[email] = append(recent, now)
	return nil
}

func (s *LoginLinkService) linkBody(token string) string {
	link := token
	if s.baseURL != "" {
		link = fmt.Sprintf("%s/auth/verify?token=%s", s.baseURL, token)
	}
	return fmt.Sprintf(
		"Sign in to FleetDeck by opening the link below. It expires in %d minutes and can be used once.\n\n%s\n",
		int(s.expiry.Minutes()), link)
}
