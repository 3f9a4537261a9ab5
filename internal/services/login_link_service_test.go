package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fleetdeck-io/fleetdeck/internal/database/testutil"
	"github.com/fleetdeck-io/fleetdeck/internal/models"
	"github.com/fleetdeck-io/fleetdeck/pkg/crypto"
	"github.com/fleetdeck-io/fleetdeck/pkg/mail"
)

type recordingMailer struct {
	messages []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

func TestLoginLinkRequestAndRedeem(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	mailer := &recordingMailer{}

	svc, err := NewLoginLinkService(db, mailer, WithLoginLinkBaseURL("https://fleet.example.com"))
	require.NoError(t, err)

	ctx := context.Background()
	token, err := svc.RequestLink(ctx, "ops@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Len(t, mailer.messages, 1)
	require.Contains(t, mailer.messages[0].Body, token)

	// Only the hash is persisted.
	var link models.LoginLink
	require.NoError(t, db.First(&link).Error)
	require.Equal(t, crypto.HashToken(token), link.TokenHash)
	require.NotEqual(t, token, link.TokenHash)

	email, err := svc.Redeem(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "ops@example.com", email)

	_, err = svc.Redeem(ctx, token)
	require.ErrorIs(t, err, ErrLoginLinkUsed)
}

func TestLoginLinkRejectsMalformedEmail(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewLoginLinkService(db, nil)
	require.NoError(t, err)

	for _, email := range []string{"", "plain", "a b@example.com", "user@", "@example.com"} {
		_, err := svc.RequestLink(context.Background(), email)
		require.ErrorIs(t, err, ErrInvalidEmail, "email %q", email)
	}
}

func TestLoginLinkAllowListSilentSuccess(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	mailer := &recordingMailer{}

	svc, err := NewLoginLinkService(db, mailer, WithAllowedEmails([]string{"ops@example.com"}))
	require.NoError(t, err)

	token, err := svc.RequestLink(context.Background(), "intruder@example.com")
	require.NoError(t, err)
	require.Empty(t, token)
	require.Empty(t, mailer.messages)

	var count int64
	require.NoError(t, db.Model(&models.LoginLink{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestLoginLinkRateLimitPerEmail(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewLoginLinkService(db, nil, WithLoginLinkClock(func() time.Time { return current }))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.RequestLink(ctx, "ops@example.com")
		require.NoError(t, err)
	}

	_, err = svc.RequestLink(ctx, "ops@example.com")
	require.ErrorIs(t, err, ErrLoginRateLimited)

	// A different address has its own budget.
	_, err = svc.RequestLink(ctx, "other@example.com")
	require.NoError(t, err)

	// The window slides.
	current = current.Add(61 * time.Second)
	_, err = svc.RequestLink(ctx, "ops@example.com")
	require.NoError(t, err)
}

func TestLoginLinkRedeemLosesRaceToConcurrentUse(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewLoginLinkService(db, nil)
	require.NoError(t, err)

	ctx := context.Background()
	token, err := svc.RequestLink(ctx, "ops@example.com")
	require.NoError(t, err)

	// Mark the row used between Redeem's load and its update, the way a
	// concurrent redeem of the same token would.
	raced := false
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("redeem_race", func(tx *gorm.DB) {
		if raced {
			return
		}
		raced = true
		used := time.Now().UTC()
		tx.Session(&gorm.Session{NewDB: true}).
			Model(&models.LoginLink{}).
			Where("token_hash = ?", crypto.HashToken(token)).
			Update("used_at", used)
	}))
	t.Cleanup(func() {
		_ = db.Callback().Update().Remove("redeem_race")
	})

	_, err = svc.Redeem(ctx, token)
	require.ErrorIs(t, err, ErrLoginLinkUsed)
	require.True(t, raced)
}

func TestLoginLinkRateMapDropsIdleAddresses(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewLoginLinkService(db, nil, WithLoginLinkClock(func() time.Time { return current }))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.RequestLink(ctx, "idle@example.com")
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)
	_, err = svc.RequestLink(ctx, "active@example.com")
	require.NoError(t, err)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.NotContains(t, svc.requests, "idle@example.com")
	require.Contains(t, svc.requests, "active@example.com")
}

func TestLoginLinkExpiry(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewLoginLinkService(db, nil, WithLoginLinkClock(func() time.Time { return current }))
	require.NoError(t, err)

	ctx := context.Background()
	token, err := svc.RequestLink(ctx, "ops@example.com")
	require.NoError(t, err)

	current = current.Add(16 * time.Minute)
	_, err = svc.Redeem(ctx, token)
	require.ErrorIs(t, err, ErrLoginLinkExpired)
}

func TestLoginLinkPurgeExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewLoginLinkService(db, nil, WithLoginLinkClock(func() time.Time { return current }))
	require.NoError(t, err)

	ctx := context.Background()
	expired, err := svc.RequestLink(ctx, "old@example.com")
	require.NoError(t, err)
	_ = expired

	current = current.Add(20 * time.Minute)
	fresh, err := svc.RequestLink(ctx, "new@example.com")
	require.NoError(t, err)

	removed, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, err = svc.Redeem(ctx, fresh)
	require.NoError(t, err)
}
