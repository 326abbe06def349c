package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/allez-events/server/internal/domain/events"
	"github.com/allez-events/server/internal/sanitize"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// EventDirectory resolves event id lists into events and cascades
// deletion of a user's hosted events.
type EventDirectory interface {
	GetByIDs(ctx context.Context, eventIDs []string) ([]events.Event, error)
	DeleteAllByHost(ctx context.Context, hostID string) error
}

// ImageStore deletes stored profile images.
type ImageStore interface {
	Delete(ctx context.Context, key string) error
}

// Service manages user profiles and resolves their event membership
// lists through the event directory.
type Service struct {
	repo     Repository
	events   EventDirectory
	images   ImageStore
	logger   zerolog.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewService(repo Repository, events EventDirectory, images ImageStore, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		events:   events,
		images:   images,
		logger:   logger,
		validate: newValidator(),
		now:      time.Now,
	}
}

// Create signs up a new user. ID is the storage key derived from the
// identity subject, authID the full subject. A taken email fails with
// ErrEmailTaken; the unique index on email backs up this check.
func (s *Service) Create(ctx context.Context, id, authID string, input UserInput) (*User, error) {
	cleanInput(&input)
	dob, err := ValidateInput(s.validate, input, s.now())
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	now := s.now()
	user := &User{
		ID:               id,
		AuthID:           authID,
		FirstName:        input.FirstName,
		LastName:         input.LastName,
		Email:            input.Email,
		Phone:            input.Phone,
		Gender:           input.Gender,
		DateOfBirth:      dob,
		Address:          input.Address,
		City:             input.City,
		State:            input.State,
		Country:          input.Country,
		Zip:              input.Zip,
		ImageKey:         input.ImageKey,
		HostedEventIDs:   []string{},
		CohostedEventIDs: []string{},
		AttendedEventIDs: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Insert(ctx, user); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Modify updates the profile fields. Membership lists are untouched; a
// replaced image has its old object deleted.
func (s *Service) Modify(ctx context.Context, id string, input UserInput) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	cleanInput(&input)
	dob, err := ValidateInput(s.validate, input, s.now())
	if err != nil {
		return nil, err
	}

	if input.Email != user.Email {
		taken, err := s.repo.ExistsByEmail(ctx, input.Email)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			return nil, ErrEmailTaken
		}
	}

	oldImageKey := user.ImageKey
	user.FirstName = input.FirstName
	user.LastName = input.LastName
	user.Email = input.Email
	user.Phone = input.Phone
	user.Gender = input.Gender
	user.DateOfBirth = dob
	user.Address = input.Address
	user.City = input.City
	user.State = input.State
	user.Country = input.Country
	user.Zip = input.Zip
	if input.ImageKey != "" {
		user.ImageKey = input.ImageKey
	}
	user.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	if input.ImageKey != "" && input.ImageKey != oldImageKey && oldImageKey != "" {
		if err := s.images.Delete(ctx, oldImageKey); err != nil {
			s.logger.Warn().Err(err).Str("image_key", oldImageKey).
				Msg("failed to delete replaced profile image")
		}
	}

	return user, nil
}

// Delete removes the user after cascading deletion of every event they
// host.
func (s *Service) Delete(ctx context.Context, id string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.events.DeleteAllByHost(ctx, id); err != nil {
		return fmt.Errorf("delete hosted events: %w", err)
	}

	if user.ImageKey != "" {
		if err := s.images.Delete(ctx, user.ImageKey); err != nil {
			s.logger.Warn().Err(err).Str("image_key", user.ImageKey).
				Msg("failed to delete profile image")
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// HostedEvents resolves the user's hosted event ids into events.
func (s *Service) HostedEvents(ctx context.Context, id string) ([]events.Event, error) {
	return s.materialize(ctx, id, func(u *User) []string { return u.HostedEventIDs })
}

// CohostedEvents resolves the user's cohosted event ids into events.
func (s *Service) CohostedEvents(ctx context.Context, id string) ([]events.Event, error) {
	return s.materialize(ctx, id, func(u *User) []string { return u.CohostedEventIDs })
}

// AttendedEvents resolves the user's attended event ids into events.
func (s *Service) AttendedEvents(ctx context.Context, id string) ([]events.Event, error) {
	return s.materialize(ctx, id, func(u *User) []string { return u.AttendedEventIDs })
}

func (s *Service) materialize(ctx context.Context, id string, pick func(*User) []string) ([]events.Event, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.events.GetByIDs(ctx, pick(user))
}

func cleanInput(input *UserInput) {
	input.FirstName = sanitize.Text(input.FirstName)
	input.LastName = sanitize.Text(input.LastName)
	input.Email = strings.ToLower(sanitize.Text(input.Email))
	input.Phone = sanitize.Text(input.Phone)
	input.Gender = strings.ToLower(sanitize.Text(input.Gender))
	input.Address = sanitize.Text(input.Address)
	input.City = sanitize.Text(input.City)
	input.State = sanitize.Text(input.State)
	input.Country = sanitize.Text(input.Country)
	input.Zip = sanitize.Text(input.Zip)
}
