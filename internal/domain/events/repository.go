package events

import "context"

// Repository is the storage contract for events. Membership mutations
// (cohost and attendee add/remove) are single-statement conditional
// updates so concurrent callers cannot lose each other's writes.
type Repository interface {
	Insert(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	GetByIDs(ctx context.Context, ids []string) ([]Event, error)
	List(ctx context.Context) ([]Event, error)
	ListByHost(ctx context.Context, hostID string) ([]Event, error)
	ExistsByNameCity(ctx context.Context, name, city string) (bool, error)
	Update(ctx context.Context, event *Event) error
	Delete(ctx context.Context, id string) error
	DeleteByHost(ctx context.Context, hostID string) error

	// AddCohost appends userID to the cohost list and, when userID was an
	// attendee, removes it from the attendee list in the same statement.
	AddCohost(ctx context.Context, eventID, userID string) error
	RemoveCohost(ctx context.Context, eventID, userID string) error

	// AddAttendee returns ErrAlreadyRegistered when userID is already on
	// the attendee list.
	AddAttendee(ctx context.Context, eventID, userID string) error
	RemoveAttendee(ctx context.Context, eventID, userID string) error
}
