package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/coinsora/server/internal/auth"
	"github.com/coinsora/server/pkg/logger"
	"github.com/coinsora/server/pkg/metrics"
)

const defaultSweepSpec = "@every 1m"

// Reclaimer periodically purges expired pending OTP challenges so that
// abandoned signups and logins do not accumulate. Sweep errors are logged
// and never stop the schedule.
type Reclaimer struct {
	otp  *iauth.OTPService
	cron *cron.Cron
	now  func() time.Time
	log  *zap.Logger

	sweepSchedule string
}

// Option customises the Reclaimer.
type Option func(*Reclaimer)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Reclaimer) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(r *Reclaimer) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSweepSchedule overrides the cron expression for the expiry sweep.
func WithSweepSchedule(spec string) Option {
	return func(r *Reclaimer) {
		if spec != "" {
			r.sweepSchedule = spec
		}
	}
}

// NewReclaimer constructs a Reclaimer with the default one minute cadence.
func NewReclaimer(otp *iauth.OTPService, opts ...Option) (*Reclaimer, error) {
	if otp == nil {
		return nil, errors.New("reclaimer: otp service is required")
	}

	r := &Reclaimer{
		otp:           otp,
		now:           time.Now,
		sweepSchedule: defaultSweepSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.cron == nil {
		r.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return r, nil
}

// Start registers the sweep job with the cron scheduler and launches it.
func (r *Reclaimer) Start() error {
	if _, err := r.cron.AddFunc(r.sweepSchedule, func() {
		if err := r.sweep(context.Background()); err != nil {
			r.log.Warn("challenge sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	r.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running sweep to complete.
func (r *Reclaimer) Stop() context.Context {
	if r.cron == nil {
		return context.Background()
	}
	return r.cron.Stop()
}

// RunOnce executes a single sweep. Used in tests and during graceful shutdown.
func (r *Reclaimer) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if err := r.sweep(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (r *Reclaimer) sweep(ctx context.Context) error {
	removed, err := r.otp.SweepExpired(ctx, r.now())
	if err != nil {
		return err
	}

	if removed > 0 {
		metrics.ExpiredChallenges.Add(float64(removed))
		r.log.Info("purged expired challenges", zap.Int64("count", removed))
	}
	return nil
}
