// Package users implements the user directory: profile management keyed
// by the identity provider's subject, plus the per-user event membership
// lists that mirror the event directory.
package users

import "time"

// User is a registered profile. ID is the storage key derived from the
// identity subject (the portion after the provider delimiter); AuthID
// keeps the full subject for reference.
type User struct {
	ID               string    `json:"id"`
	AuthID           string    `json:"-"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	Gender           string    `json:"gender"`
	DateOfBirth      time.Time `json:"dateOfBirth"`
	Address          string    `json:"address"`
	City             string    `json:"city"`
	State            string    `json:"state"`
	Country          string    `json:"country"`
	Zip              string    `json:"zip"`
	ImageKey         string    `json:"-"`
	HostedEventIDs   []string  `json:"hostedEventIds"`
	CohostedEventIDs []string  `json:"cohostedEventIds"`
	AttendedEventIDs []string  `json:"attendedEventIds"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// UserInput is the client-supplied profile payload for signup and
// modify. Membership lists are never client-writable. ImageKey is set
// by the handler after the upload completes.
type UserInput struct {
	FirstName   string `json:"firstName" validate:"required,alpha,max=50"`
	LastName    string `json:"lastName" validate:"required,alpha,max=50"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Phone       string `json:"phone" validate:"required,numeric,len=10"`
	Gender      string `json:"gender" validate:"required,oneof=male female other"`
	DateOfBirth string `json:"dateOfBirth" validate:"required"`
	Address     string `json:"address" validate:"required,max=200"`
	City        string `json:"city" validate:"required,max=100"`
	State       string `json:"state" validate:"required,max=100"`
	Country     string `json:"country" validate:"required,max=100"`
	Zip         string `json:"zip" validate:"required,max=20"`

	ImageKey string `json:"-"`
}
