package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
)

// Logical bucket names carried in image cleanup job args.
const (
	BucketEvents = "events"
	BucketUsers  = "users"
)

// ProductDeactivator deactivates an orphaned payment product.
type ProductDeactivator interface {
	DeactivateProduct(ctx context.Context, productID string) error
}

// ImageDeleter removes a stored image object.
type ImageDeleter interface {
	Delete(ctx context.Context, key string) error
}

// HostedListAppender records an event on its host's hosted list.
type HostedListAppender interface {
	AddHostedEvent(ctx context.Context, userID, eventID string) error
}

// PriceSyncer replaces a product's active price and mints payment links.
type PriceSyncer interface {
	ReplacePrice(ctx context.Context, productID string, dollars float64) (string, error)
	CreatePaymentLink(ctx context.Context, priceID string) (string, error)
}

// PaymentProvider is the payment surface the workers need.
type PaymentProvider interface {
	ProductDeactivator
	PriceSyncer
}

// PaymentURLWriter stores a regenerated payment link on an event row.
type PaymentURLWriter interface {
	SetPaymentURL(ctx context.Context, eventID, url string) error
}

type PaymentCleanupArgs struct {
	ProductID string `json:"product_id"`
}

func (PaymentCleanupArgs) Kind() string { return JobKindPaymentCleanup }

// PaymentCleanupWorker deactivates a Stripe product whose event never
// made it into the database, or whose deletion-time deactivation
// failed.
type PaymentCleanupWorker struct {
	river.WorkerDefaults[PaymentCleanupArgs]
	Payments ProductDeactivator
	Logger   *slog.Logger
}

func (PaymentCleanupWorker) Kind() string { return JobKindPaymentCleanup }

func (w PaymentCleanupWorker) Work(ctx context.Context, job *river.Job[PaymentCleanupArgs]) error {
	if w.Payments == nil {
		return fmt.Errorf("payments client not configured")
	}
	if job.Args.ProductID == "" {
		return nil
	}
	if err := w.Payments.DeactivateProduct(ctx, job.Args.ProductID); err != nil {
		return fmt.Errorf("deactivate product %s: %w", job.Args.ProductID, err)
	}
	w.logger().Info("cleaned up orphaned payment product",
		"product_id", job.Args.ProductID,
		"attempt", job.Attempt,
	)
	return nil
}

func (w PaymentCleanupWorker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

type ImageCleanupArgs struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (ImageCleanupArgs) Kind() string { return JobKindImageCleanup }

// ImageCleanupWorker deletes a stored image left behind by a failed
// create or delete.
type ImageCleanupWorker struct {
	river.WorkerDefaults[ImageCleanupArgs]
	EventImages ImageDeleter
	UserImages  ImageDeleter
	Logger      *slog.Logger
}

func (ImageCleanupWorker) Kind() string { return JobKindImageCleanup }

func (w ImageCleanupWorker) Work(ctx context.Context, job *river.Job[ImageCleanupArgs]) error {
	if job.Args.Key == "" {
		return nil
	}

	var store ImageDeleter
	switch job.Args.Bucket {
	case BucketEvents:
		store = w.EventImages
	case BucketUsers:
		store = w.UserImages
	default:
		return fmt.Errorf("unknown image bucket %q", job.Args.Bucket)
	}
	if store == nil {
		return fmt.Errorf("image store for bucket %q not configured", job.Args.Bucket)
	}

	if err := store.Delete(ctx, job.Args.Key); err != nil {
		return fmt.Errorf("delete image %s: %w", job.Args.Key, err)
	}
	w.logger().Info("cleaned up orphaned image",
		"bucket", job.Args.Bucket,
		"key", job.Args.Key,
		"attempt", job.Attempt,
	)
	return nil
}

func (w ImageCleanupWorker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

type HostedListRepairArgs struct {
	UserID  string `json:"user_id"`
	EventID string `json:"event_id"`
}

func (HostedListRepairArgs) Kind() string { return JobKindHostedListRepair }

// HostedListRepairWorker re-applies a hosted list append that failed
// after the event row was already committed.
type HostedListRepairWorker struct {
	river.WorkerDefaults[HostedListRepairArgs]
	Users  HostedListAppender
	Logger *slog.Logger
}

func (HostedListRepairWorker) Kind() string { return JobKindHostedListRepair }

func (w HostedListRepairWorker) Work(ctx context.Context, job *river.Job[HostedListRepairArgs]) error {
	if w.Users == nil {
		return fmt.Errorf("user repository not configured")
	}
	if err := w.Users.AddHostedEvent(ctx, job.Args.UserID, job.Args.EventID); err != nil {
		return fmt.Errorf("repair hosted list for %s: %w", job.Args.UserID, err)
	}
	w.logger().Info("repaired hosted event list",
		"user_id", job.Args.UserID,
		"event_id", job.Args.EventID,
		"attempt", job.Attempt,
	)
	return nil
}

func (w HostedListRepairWorker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

type PaymentLinkRepairArgs struct {
	EventID   string  `json:"event_id"`
	ProductID string  `json:"product_id"`
	Dollars   float64 `json:"dollars"`
}

func (PaymentLinkRepairArgs) Kind() string { return JobKindPaymentLinkRepair }

// PaymentLinkRepairWorker re-syncs the provider after a price change
// that could not be committed locally. Dollars is the price the
// database still holds: the worker replaces the provider's active
// price with it and stores a fresh payment link (or clears the link
// when the stored price is zero).
type PaymentLinkRepairWorker struct {
	river.WorkerDefaults[PaymentLinkRepairArgs]
	Payments PriceSyncer
	Events   PaymentURLWriter
	Logger   *slog.Logger
}

func (PaymentLinkRepairWorker) Kind() string { return JobKindPaymentLinkRepair }

func (w PaymentLinkRepairWorker) Work(ctx context.Context, job *river.Job[PaymentLinkRepairArgs]) error {
	if w.Payments == nil || w.Events == nil {
		return fmt.Errorf("payment link repair worker not configured")
	}
	if job.Args.ProductID == "" {
		return nil
	}

	priceID, err := w.Payments.ReplacePrice(ctx, job.Args.ProductID, job.Args.Dollars)
	if err != nil {
		return fmt.Errorf("replace price for %s: %w", job.Args.ProductID, err)
	}

	url := ""
	if job.Args.Dollars > 0 {
		url, err = w.Payments.CreatePaymentLink(ctx, priceID)
		if err != nil {
			return fmt.Errorf("create payment link for %s: %w", job.Args.ProductID, err)
		}
	}
	if err := w.Events.SetPaymentURL(ctx, job.Args.EventID, url); err != nil {
		return fmt.Errorf("store payment link for %s: %w", job.Args.EventID, err)
	}

	w.logger().Info("repaired payment link",
		"event_id", job.Args.EventID,
		"product_id", job.Args.ProductID,
		"attempt", job.Attempt,
	)
	return nil
}

func (w PaymentLinkRepairWorker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// NewWorkers registers every compensation worker.
func NewWorkers(payments PaymentProvider, eventImages, userImages ImageDeleter, users HostedListAppender, events PaymentURLWriter, logger *slog.Logger) (*river.Workers, error) {
	workers := river.NewWorkers()
	if err := river.AddWorkerSafely(workers, PaymentCleanupWorker{Payments: payments, Logger: logger}); err != nil {
		return nil, fmt.Errorf("register payment cleanup worker: %w", err)
	}
	if err := river.AddWorkerSafely(workers, ImageCleanupWorker{EventImages: eventImages, UserImages: userImages, Logger: logger}); err != nil {
		return nil, fmt.Errorf("register image cleanup worker: %w", err)
	}
	if err := river.AddWorkerSafely(workers, HostedListRepairWorker{Users: users, Logger: logger}); err != nil {
		return nil, fmt.Errorf("register hosted list repair worker: %w", err)
	}
	if err := river.AddWorkerSafely(workers, PaymentLinkRepairWorker{Payments: payments, Events: events, Logger: logger}); err != nil {
		return nil, fmt.Errorf("register payment link repair worker: %w", err)
	}
	return workers, nil
}
