package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
)

// Enqueuer inserts compensation jobs. It satisfies the event service's
// Compensator contract.
type Enqueuer struct {
	client *river.Client[pgx.Tx]
}

func NewEnqueuer(client *river.Client[pgx.Tx]) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) CleanupProduct(ctx context.Context, productID string) error {
	opts := InsertOptsForKind(JobKindPaymentCleanup)
	if _, err := e.client.Insert(ctx, PaymentCleanupArgs{ProductID: productID}, &opts); err != nil {
		return fmt.Errorf("enqueue payment cleanup: %w", err)
	}
	return nil
}

func (e *Enqueuer) CleanupImage(ctx context.Context, key string) error {
	opts := InsertOptsForKind(JobKindImageCleanup)
	if _, err := e.client.Insert(ctx, ImageCleanupArgs{Bucket: BucketEvents, Key: key}, &opts); err != nil {
		return fmt.Errorf("enqueue image cleanup: %w", err)
	}
	return nil
}

func (e *Enqueuer) RepairHostedList(ctx context.Context, userID, eventID string) error {
	opts := InsertOptsForKind(JobKindHostedListRepair)
	if _, err := e.client.Insert(ctx, HostedListRepairArgs{UserID: userID, EventID: eventID}, &opts); err != nil {
		return fmt.Errorf("enqueue hosted list repair: %w", err)
	}
	return nil
}

func (e *Enqueuer) RepairPaymentLink(ctx context.Context, eventID, productID string, dollars float64) error {
	opts := InsertOptsForKind(JobKindPaymentLinkRepair)
	args := PaymentLinkRepairArgs{EventID: eventID, ProductID: productID, Dollars: dollars}
	if _, err := e.client.Insert(ctx, args, &opts); err != nil {
		return fmt.Errorf("enqueue payment link repair: %w", err)
	}
	return nil
}
