package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/fleetdeck-io/fleetdeck/internal/auth"
	"github.com/fleetdeck-io/fleetdeck/internal/services"
	"github.com/fleetdeck-io/fleetdeck/pkg/logger"
)

const (
	defaultTelemetryRetentionDays = 30
	defaultCameraStaleAfter       = 2 * time.Minute
	defaultDeviceSilentAfter      = 10 * time.Minute
	defaultCommandTimeout         = services.DefaultCommandTimeout

	defaultLivenessSpec  = "@every 1m"
	defaultSessionSpec   = "@hourly"
	defaultRetentionSpec = "@daily"
)

// Cleaner coordinates background maintenance: flipping silent cameras and
// devices offline, timing out stuck commands, purging expired sessions and
// login links, and pruning old telemetry.
type Cleaner struct {
	sessions *iauth.SessionService
	links    *services.LoginLinkService
	cameras  *services.CameraService
	commands *services.CameraCommandService
	devices  *services.DeviceService
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger

	cameraStaleAfter  time.Duration
	deviceSilentAfter time.Duration
	commandTimeout    time.Duration
	retentionDays     int

	livenessSchedule  string
	sessionSchedule   string
	retentionSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithCameraStaleAfter adjusts how long a camera may stay silent before it
// is marked offline.
func WithCameraStaleAfter(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.cameraStaleAfter = d
		}
	}
}

// WithDeviceSilentAfter adjusts how long a tracker may stay silent before it
// is marked inactive.
func WithDeviceSilentAfter(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.deviceSilentAfter = d
		}
	}
}

// WithCommandTimeout adjusts how long a delivered command may stay
// unacknowledged before it is marked timed out.
func WithCommandTimeout(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.commandTimeout = d
		}
	}
}

// WithTelemetryRetentionDays adjusts how long telemetry reports are kept.
func WithTelemetryRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retentionDays = days
		}
	}
}

// WithLivenessSchedule overrides the cron specification for liveness sweeps.
func WithLivenessSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.livenessSchedule = spec
		}
	}
}

// WithSessionSchedule overrides the cron specification for session and link cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithRetentionSchedule overrides the cron specification for telemetry pruning.
func WithRetentionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.retentionSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(
	sessions *iauth.SessionService,
	links *services.LoginLinkService,
	cameras *services.CameraService,
	commands *services.CameraCommandService,
	devices *services.DeviceService,
	opts ...Option,
) *Cleaner {
	cleaner := &Cleaner{
		sessions:          sessions,
		links:             links,
		cameras:           cameras,
		commands:          commands,
		devices:           devices,
		now:               time.Now,
		cameraStaleAfter:  defaultCameraStaleAfter,
		deviceSilentAfter: defaultDeviceSilentAfter,
		commandTimeout:    defaultCommandTimeout,
		retentionDays:     defaultTelemetryRetentionDays,
		livenessSchedule:  defaultLivenessSpec,
		sessionSchedule:   defaultSessionSpec,
		retentionSchedule: defaultRetentionSpec,
		log:               logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.cameras != nil || c.commands != nil || c.devices != nil {
		if _, err := c.cron.AddFunc(c.livenessSchedule, func() {
			if err := c.runLiveness(context.Background()); err != nil {
				c.log.Warn("liveness sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.sessions != nil || c.links != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			if err := c.runAuthCleanup(context.Background()); err != nil {
				c.log.Warn("auth cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.devices != nil && c.retentionDays > 0 {
		if _, err := c.cron.AddFunc(c.retentionSchedule, func() {
			if err := c.runRetention(context.Background()); err != nil {
				c.log.Warn("telemetry retention failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily
// used in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	errs = multierr.Append(errs, c.runLiveness(ctx))
	errs = multierr.Append(errs, c.runAuthCleanup(ctx))
	errs = multierr.Append(errs, c.runRetention(ctx))
	return errs
}

func (c *Cleaner) runLiveness(ctx context.Context) error {
	var errs error

	if c.cameras != nil {
		if n, err := c.cameras.MarkStaleOffline(ctx, c.cameraStaleAfter); err != nil {
			errs = multierr.Append(errs, err)
		} else if n > 0 {
			c.log.Info("marked stale cameras offline", zap.Int64("count", n))
		}
	}

	if c.commands != nil {
		if n, err := c.commands.ExpireStale(ctx, c.commandTimeout); err != nil {
			errs = multierr.Append(errs, err)
		} else if n > 0 {
			c.log.Info("timed out stuck commands", zap.Int64("count", n))
		}
	}

	if c.devices != nil {
		if n, err := c.devices.MarkSilentOffline(ctx, c.deviceSilentAfter); err != nil {
			errs = multierr.Append(errs, err)
		} else if n > 0 {
			c.log.Info("marked silent trackers inactive", zap.Int64("count", n))
		}
	}

	return errs
}

func (c *Cleaner) runAuthCleanup(ctx context.Context) error {
	var errs error

	if c.sessions != nil {
		if _, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.links != nil {
		if _, err := c.links.PurgeExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) runRetention(ctx context.Context) error {
	if c.devices == nil || c.retentionDays <= 0 {
		return nil
	}

	cutoff := c.now().UTC().AddDate(0, 0, -c.retentionDays)
	if _, err := c.devices.PurgeTelemetryBefore(ctx, cutoff); err != nil {
		return err
	}
	return nil
}
