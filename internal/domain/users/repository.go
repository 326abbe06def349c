package users

import "context"

// Repository is the storage contract for users. The membership list
// mutators are idempotent single-statement array updates; adding an id
// already present or removing one that is absent succeeds silently.
type Repository interface {
	Insert(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error

	AddHostedEvent(ctx context.Context, userID, eventID string) error
	RemoveHostedEvent(ctx context.Context, userID, eventID string) error
	AddCohostedEvent(ctx context.Context, userID, eventID string) error
	RemoveCohostedEvent(ctx context.Context, userID, eventID string) error
	AddAttendedEvent(ctx context.Context, userID, eventID string) error
	RemoveAttendedEvent(ctx context.Context, userID, eventID string) error
}
