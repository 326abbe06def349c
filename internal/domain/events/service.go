package events

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/allez-events/server/internal/domain/ids"
	"github.com/allez-events/server/internal/sanitize"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// PaymentMirror keeps the payment provider's view of an event in sync:
// one product per event, one active price, one payment link. Free
// events have a product but no price or link.
type PaymentMirror interface {
	CreateProduct(ctx context.Context, event *Event) (string, error)
	CreatePrice(ctx context.Context, productID string, dollars float64) (string, error)
	CreatePaymentLink(ctx context.Context, priceID string) (string, error)
	UpdateProduct(ctx context.Context, event *Event) error
	DeactivateProduct(ctx context.Context, productID string) error

	// ReplacePrice deactivates the product's active price and creates a
	// replacement for the given amount, returning the new price id. A
	// zero amount retires the active price without creating one.
	ReplacePrice(ctx context.Context, productID string, dollars float64) (string, error)
}

// ImageStore deletes stored event images.
type ImageStore interface {
	Delete(ctx context.Context, key string) error
}

// ViewPurger drops an event from every user's recently-viewed set.
type ViewPurger interface {
	Forget(ctx context.Context, eventID string) error
}

// UserDirectory mirrors event membership onto user records. All
// mutations are idempotent.
type UserDirectory interface {
	AddHostedEvent(ctx context.Context, userID, eventID string) error
	RemoveHostedEvent(ctx context.Context, userID, eventID string) error
	AddCohostedEvent(ctx context.Context, userID, eventID string) error
	RemoveCohostedEvent(ctx context.Context, userID, eventID string) error
	AddAttendedEvent(ctx context.Context, userID, eventID string) error
	RemoveAttendedEvent(ctx context.Context, userID, eventID string) error
}

// Compensator enqueues background cleanup for remote state left behind
// by a partial failure.
type Compensator interface {
	CleanupProduct(ctx context.Context, productID string) error
	CleanupImage(ctx context.Context, key string) error
	RepairHostedList(ctx context.Context, userID, eventID string) error

	// RepairPaymentLink re-syncs the provider's active price and payment
	// link to dollars, the price the database still holds.
	RepairPaymentLink(ctx context.Context, eventID, productID string, dollars float64) error
}

// Service coordinates the event repository with the payment mirror,
// image store, recently-viewed cache and user directory.
type Service struct {
	repo     Repository
	users    UserDirectory
	payments PaymentMirror
	images   ImageStore
	views    ViewPurger
	comp     Compensator
	logger   zerolog.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewService(repo Repository, users UserDirectory, payments PaymentMirror, images ImageStore, views ViewPurger, comp Compensator, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		payments: payments,
		images:   images,
		views:    views,
		comp:     comp,
		logger:   logger,
		validate: newValidator(),
		now:      time.Now,
	}
}

// Create validates the input, rejects duplicates by (name, city),
// mirrors the event into the payment provider and inserts it. Remote
// state created before a local failure is handed to the compensator
// instead of being orphaned.
func (s *Service) Create(ctx context.Context, hostID string, input EventInput) (*Event, error) {
	cleanInput(&input)
	eventDate, err := ValidateInput(s.validate, input, s.now())
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByNameCity(ctx, input.Name, input.City)
	if err != nil {
		return nil, fmt.Errorf("check duplicate event: %w", err)
	}
	if exists {
		return nil, ErrConflict
	}

	id, err := ids.New()
	if err != nil {
		return nil, fmt.Errorf("generate event id: %w", err)
	}
	event := newEvent(id, hostID, input, eventDate, s.now())

	productID, err := s.payments.CreateProduct(ctx, event)
	if err != nil {
		s.compensateImage(ctx, input.ImageKey)
		return nil, &UpstreamError{Op: "create payment product", Err: err}
	}
	event.StripeProductID = productID

	if event.Price > 0 {
		url, err := s.createPaymentLink(ctx, productID, event.Price)
		if err != nil {
			s.compensateProduct(ctx, productID)
			s.compensateImage(ctx, input.ImageKey)
			return nil, &UpstreamError{Op: "create payment link", Err: err}
		}
		event.PaymentURL = url
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		s.compensateProduct(ctx, productID)
		s.compensateImage(ctx, input.ImageKey)
		return nil, fmt.Errorf("insert event: %w", err)
	}

	if err := s.users.AddHostedEvent(ctx, hostID, event.ID); err != nil {
		s.logger.Error().Err(err).Str("event_id", event.ID).Str("host_id", hostID).
			Msg("failed to record hosted event, scheduling repair")
		if cerr := s.comp.RepairHostedList(ctx, hostID, event.ID); cerr != nil {
			s.logger.Error().Err(cerr).Str("event_id", event.ID).Msg("failed to schedule hosted list repair")
		}
	}

	return event, nil
}

// Get returns the event with the given id. A malformed id fails with
// ids.ErrInvalidID before any storage access.
func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	if err := ids.Validate(id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// GetByIDs resolves a list of event ids into events. Missing ids are
// skipped, not errors.
func (s *Service) GetByIDs(ctx context.Context, eventIDs []string) ([]Event, error) {
	if len(eventIDs) == 0 {
		return []Event{}, nil
	}
	return s.repo.GetByIDs(ctx, eventIDs)
}

func (s *Service) List(ctx context.Context) ([]Event, error) {
	return s.repo.List(ctx)
}

// Modify updates an event's fields. Only the host may modify; a price
// change is synced to the payment provider and always yields a fresh
// payment link (or none when the event becomes free). A replaced image
// has its old object deleted.
func (s *Service) Modify(ctx context.Context, hostID, id string, input EventInput) (*Event, error) {
	event, err := s.getOwned(ctx, hostID, id)
	if err != nil {
		return nil, err
	}

	cleanInput(&input)
	eventDate, err := ValidateInput(s.validate, input, s.now())
	if err != nil {
		return nil, err
	}

	oldPrice := event.Price
	oldImageKey := event.ImageKey
	applyInput(event, input, eventDate, s.now())

	priceSynced := false
	if event.Price != oldPrice {
		if err := s.syncPriceChange(ctx, event, oldPrice); err != nil {
			return nil, err
		}
		priceSynced = true
	}

	if err := s.payments.UpdateProduct(ctx, event); err != nil {
		if priceSynced {
			s.compensatePaymentLink(ctx, event.ID, event.StripeProductID, oldPrice)
		}
		return nil, &UpstreamError{Op: "update payment product", Err: err}
	}

	if err := s.repo.Update(ctx, event); err != nil {
		// The provider already carries the new price but the database
		// keeps the old one, so the old price stays authoritative.
		if priceSynced {
			s.compensatePaymentLink(ctx, event.ID, event.StripeProductID, oldPrice)
		}
		return nil, fmt.Errorf("update event: %w", err)
	}

	if input.ImageKey != "" && input.ImageKey != oldImageKey && oldImageKey != "" {
		if err := s.images.Delete(ctx, oldImageKey); err != nil {
			s.logger.Warn().Err(err).Str("image_key", oldImageKey).
				Msg("failed to delete replaced event image, scheduling cleanup")
			s.compensateImage(ctx, oldImageKey)
		}
	}

	return event, nil
}

// Delete removes an event. The payment product is deactivated, the
// stored image deleted and the event purged from recently-viewed sets;
// failures in those remote steps are compensated, not fatal.
func (s *Service) Delete(ctx context.Context, hostID, id string) error {
	event, err := s.getOwned(ctx, hostID, id)
	if err != nil {
		return err
	}
	return s.remove(ctx, event)
}

// AddCohost promotes userID to cohost. When the user was an attendee,
// the repository moves them between the lists in a single statement.
func (s *Service) AddCohost(ctx context.Context, hostID, id, userID string) (*Event, error) {
	event, err := s.getOwned(ctx, hostID, id)
	if err != nil {
		return nil, err
	}
	wasAttendee := slices.Contains(event.AttendeeIDs, userID)

	if err := s.repo.AddCohost(ctx, id, userID); err != nil {
		return nil, fmt.Errorf("add cohost: %w", err)
	}
	if err := s.users.AddCohostedEvent(ctx, userID, id); err != nil {
		s.logger.Error().Err(err).Str("event_id", id).Str("user_id", userID).
			Msg("failed to record cohosted event")
	}
	if wasAttendee {
		if err := s.users.RemoveAttendedEvent(ctx, userID, id); err != nil {
			s.logger.Error().Err(err).Str("event_id", id).Str("user_id", userID).
				Msg("failed to remove attended event after promotion")
		}
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) RemoveCohost(ctx context.Context, hostID, id, userID string) (*Event, error) {
	if _, err := s.getOwned(ctx, hostID, id); err != nil {
		return nil, err
	}
	if err := s.repo.RemoveCohost(ctx, id, userID); err != nil {
		return nil, fmt.Errorf("remove cohost: %w", err)
	}
	if err := s.users.RemoveCohostedEvent(ctx, userID, id); err != nil {
		s.logger.Error().Err(err).Str("event_id", id).Str("user_id", userID).
			Msg("failed to remove cohosted event")
	}
	return s.repo.GetByID(ctx, id)
}

// AddAttendee registers userID for the event. Registering twice fails
// with ErrAlreadyRegistered.
func (s *Service) AddAttendee(ctx context.Context, id, userID string) (*Event, error) {
	if err := ids.Validate(id); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.AddAttendee(ctx, id, userID); err != nil {
		return nil, err
	}
	if err := s.users.AddAttendedEvent(ctx, userID, id); err != nil {
		s.logger.Error().Err(err).Str("event_id", id).Str("user_id", userID).
			Msg("failed to record attended event")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) RemoveAttendee(ctx context.Context, id, userID string) (*Event, error) {
	if err := ids.Validate(id); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.RemoveAttendee(ctx, id, userID); err != nil {
		return nil, fmt.Errorf("remove attendee: %w", err)
	}
	if err := s.users.RemoveAttendedEvent(ctx, userID, id); err != nil {
		s.logger.Error().Err(err).Str("event_id", id).Str("user_id", userID).
			Msg("failed to remove attended event")
	}
	return s.repo.GetByID(ctx, id)
}

// DeleteAllByHost removes every event the user hosts, used by the user
// deletion cascade.
func (s *Service) DeleteAllByHost(ctx context.Context, hostID string) error {
	hosted, err := s.repo.ListByHost(ctx, hostID)
	if err != nil {
		return fmt.Errorf("list hosted events: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range hosted {
		event := &hosted[i]
		g.Go(func() error {
			return s.remove(gctx, event)
		})
	}
	return g.Wait()
}

func (s *Service) remove(ctx context.Context, event *Event) error {
	if event.StripeProductID != "" {
		if err := s.payments.DeactivateProduct(ctx, event.StripeProductID); err != nil {
			s.logger.Warn().Err(err).Str("product_id", event.StripeProductID).
				Msg("failed to deactivate payment product, scheduling cleanup")
			s.compensateProduct(ctx, event.StripeProductID)
		}
	}
	if event.ImageKey != "" {
		if err := s.images.Delete(ctx, event.ImageKey); err != nil {
			s.logger.Warn().Err(err).Str("image_key", event.ImageKey).
				Msg("failed to delete event image, scheduling cleanup")
			s.compensateImage(ctx, event.ImageKey)
		}
	}

	if err := s.repo.Delete(ctx, event.ID); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	if err := s.views.Forget(ctx, event.ID); err != nil {
		s.logger.Warn().Err(err).Str("event_id", event.ID).
			Msg("failed to purge event from recently viewed sets")
	}
	if err := s.users.RemoveHostedEvent(ctx, event.HostID, event.ID); err != nil {
		s.logger.Error().Err(err).Str("event_id", event.ID).Str("host_id", event.HostID).
			Msg("failed to remove hosted event")
	}
	return nil
}

func (s *Service) getOwned(ctx context.Context, hostID, id string) (*Event, error) {
	if err := ids.Validate(id); err != nil {
		return nil, err
	}
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.HostID != hostID {
		return nil, ErrForbidden
	}
	return event, nil
}

func (s *Service) createPaymentLink(ctx context.Context, productID string, dollars float64) (string, error) {
	priceID, err := s.payments.CreatePrice(ctx, productID, dollars)
	if err != nil {
		return "", err
	}
	return s.payments.CreatePaymentLink(ctx, priceID)
}

func (s *Service) syncPriceChange(ctx context.Context, event *Event, oldPrice float64) error {
	productID := event.StripeProductID
	switch {
	case event.Price == 0:
		if _, err := s.payments.ReplacePrice(ctx, productID, 0); err != nil {
			return &UpstreamError{Op: "retire payment price", Err: err}
		}
		event.PaymentURL = ""
	case oldPrice == 0:
		url, err := s.createPaymentLink(ctx, productID, event.Price)
		if err != nil {
			return &UpstreamError{Op: "create payment link", Err: err}
		}
		event.PaymentURL = url
	default:
		priceID, err := s.payments.ReplacePrice(ctx, productID, event.Price)
		if err != nil {
			return &UpstreamError{Op: "replace payment price", Err: err}
		}
		url, err := s.payments.CreatePaymentLink(ctx, priceID)
		if err != nil {
			return &UpstreamError{Op: "create payment link", Err: err}
		}
		event.PaymentURL = url
	}
	return nil
}

func (s *Service) compensateProduct(ctx context.Context, productID string) {
	if productID == "" {
		return
	}
	if err := s.comp.CleanupProduct(ctx, productID); err != nil {
		s.logger.Error().Err(err).Str("product_id", productID).
			Msg("failed to schedule payment product cleanup")
	}
}

func (s *Service) compensatePaymentLink(ctx context.Context, eventID, productID string, dollars float64) {
	if productID == "" {
		return
	}
	if err := s.comp.RepairPaymentLink(ctx, eventID, productID, dollars); err != nil {
		s.logger.Error().Err(err).Str("event_id", eventID).Str("product_id", productID).
			Msg("failed to schedule payment link repair")
	}
}

func (s *Service) compensateImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.comp.CleanupImage(ctx, key); err != nil {
		s.logger.Error().Err(err).Str("image_key", key).
			Msg("failed to schedule image cleanup")
	}
}

func cleanInput(input *EventInput) {
	input.Name = sanitize.Text(input.Name)
	input.Description = sanitize.Description(input.Description)
	input.Categories = sanitize.Tags(input.Categories)
	input.Address = sanitize.Text(input.Address)
	input.City = sanitize.Text(input.City)
	input.State = sanitize.Text(input.State)
	input.Country = sanitize.Text(input.Country)
	input.Zip = sanitize.Text(input.Zip)
	input.StartTime = sanitize.Text(input.StartTime)
	input.EndTime = sanitize.Text(input.EndTime)
}

func newEvent(id, hostID string, input EventInput, eventDate, now time.Time) *Event {
	return &Event{
		ID:         id,
		Name:       input.Name,
		Categories: input.Categories,
		Venue: Venue{
			Address:   input.Address,
			City:      input.City,
			State:     input.State,
			Country:   input.Country,
			Zip:       input.Zip,
			Latitude:  input.Latitude,
			Longitude: input.Longitude,
		},
		Price:       input.Price,
		TotalSeats:  input.TotalSeats,
		BookedSeats: input.BookedSeats,
		MinAge:      input.MinAge,
		Description: input.Description,
		EventDate:   eventDate,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		HostID:      hostID,
		CohostIDs:   []string{},
		AttendeeIDs: []string{},
		ImageKey:    input.ImageKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func applyInput(event *Event, input EventInput, eventDate, now time.Time) {
	event.Name = input.Name
	event.Categories = input.Categories
	event.Venue = Venue{
		Address:   input.Address,
		City:      input.City,
		State:     input.State,
		Country:   input.Country,
		Zip:       input.Zip,
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
	}
	event.Price = input.Price
	event.TotalSeats = input.TotalSeats
	event.BookedSeats = input.BookedSeats
	event.MinAge = input.MinAge
	event.Description = input.Description
	event.EventDate = eventDate
	event.StartTime = input.StartTime
	event.EndTime = input.EndTime
	if input.ImageKey != "" {
		event.ImageKey = input.ImageKey
	}
	event.UpdatedAt = now
}
