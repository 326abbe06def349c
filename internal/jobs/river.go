// Package jobs runs the background compensation queue on River. When a
// remote step (Stripe, S3) succeeds but the local write fails, the
// service enqueues a cleanup job here instead of orphaning the remote
// state.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
)

const (
	JobKindPaymentCleanup    = "payment_cleanup"
	JobKindImageCleanup      = "image_cleanup"
	JobKindHostedListRepair  = "hosted_list_repair"
	JobKindPaymentLinkRepair = "payment_link_repair"
)

const (
	PaymentCleanupMaxAttempts    = 5
	ImageCleanupMaxAttempts      = 5
	HostedListRepairMaxAttempts  = 10
	PaymentLinkRepairMaxAttempts = 8
)

// RetryConfig controls per-kind retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryPolicy implements River's ClientRetryPolicy with per-kind
// exponential backoff.
type RetryPolicy struct {
	Default RetryConfig
	ByKind  map[string]RetryConfig
}

func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		Default: RetryConfig{
			MaxAttempts: PaymentCleanupMaxAttempts,
			BaseDelay:   30 * time.Second,
			MaxDelay:    30 * time.Minute,
		},
		ByKind: map[string]RetryConfig{
			JobKindPaymentCleanup: {
				MaxAttempts: PaymentCleanupMaxAttempts,
				BaseDelay:   1 * time.Minute,
				MaxDelay:    1 * time.Hour,
			},
			JobKindImageCleanup: {
				MaxAttempts: ImageCleanupMaxAttempts,
				BaseDelay:   1 * time.Minute,
				MaxDelay:    1 * time.Hour,
			},
			JobKindHostedListRepair: {
				MaxAttempts: HostedListRepairMaxAttempts,
				BaseDelay:   10 * time.Second,
				MaxDelay:    10 * time.Minute,
			},
			JobKindPaymentLinkRepair: {
				MaxAttempts: PaymentLinkRepairMaxAttempts,
				BaseDelay:   30 * time.Second,
				MaxDelay:    30 * time.Minute,
			},
		},
	}
}

// NextRetry determines the next retry time for a failed job.
func (p *RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	config := p.configFor(job.Kind)
	if config.BaseDelay == 0 {
		return time.Now()
	}

	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}

	// Compare in float space so deep attempts cannot overflow the
	// Duration before the cap applies.
	backoff := float64(config.BaseDelay) * math.Pow(2, float64(attempt-1))
	if config.MaxDelay > 0 && backoff > float64(config.MaxDelay) {
		backoff = float64(config.MaxDelay)
	}
	if backoff > float64(math.MaxInt64) {
		backoff = float64(math.MaxInt64)
	}
	delay := time.Duration(backoff)

	if job.AttemptedAt != nil {
		return job.AttemptedAt.Add(delay)
	}
	return time.Now().Add(delay)
}

func (p *RetryPolicy) configFor(kind string) RetryConfig {
	if p == nil {
		return RetryConfig{MaxAttempts: PaymentCleanupMaxAttempts, BaseDelay: 1 * time.Minute, MaxDelay: 1 * time.Hour}
	}
	if config, ok := p.ByKind[kind]; ok {
		return config
	}
	return p.Default
}

// InsertOptsForKind returns default insert options for a job kind.
func InsertOptsForKind(kind string) river.InsertOpts {
	config := NewRetryPolicy().configFor(kind)
	return river.InsertOpts{MaxAttempts: config.MaxAttempts}
}

// NewClientConfig builds a River client configuration with the retry
// policy applied.
func NewClientConfig(workers *river.Workers, logger *slog.Logger) *river.Config {
	policy := NewRetryPolicy()
	config := &river.Config{
		Workers:     workers,
		RetryPolicy: policy,
		MaxAttempts: policy.Default.MaxAttempts,
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
	}
	if logger != nil {
		config.Logger = logger
	}
	return config
}

// NewClient creates a River client using pgx v5.
func NewClient(pool *pgxpool.Pool, workers *river.Workers, logger *slog.Logger) (*river.Client[pgx.Tx], error) {
	return river.NewClient(riverpgxv5.New(pool), NewClientConfig(workers, logger))
}

// Migrate brings River's own tables up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("init river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("migrate river tables: %w", err)
	}
	return nil
}
