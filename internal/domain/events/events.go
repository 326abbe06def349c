// Package events implements the event directory: creation, lookup,
// modification and deletion of hosted events, plus cohost and attendee
// membership. Events are mirrored into the payment provider (product,
// price, payment link) and carry a stored image key; the service
// orchestrates those remote stores around the local repository and
// enqueues compensation jobs when a remote step succeeds but the local
// write does not.
package events

import "time"

// Event is a hosted event as stored and served by the directory.
//
// HostID, CohostIDs and AttendeeIDs hold user storage keys. An id never
// appears in both CohostIDs and AttendeeIDs; promotion moves it between
// the two lists in a single statement.
type Event struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Categories      []string  `json:"categories"`
	Venue           Venue     `json:"venue"`
	Price           float64   `json:"price"`
	TotalSeats      int       `json:"totalSeats"`
	BookedSeats     int       `json:"bookedSeats"`
	MinAge          int       `json:"minAge"`
	Description     string    `json:"description"`
	EventDate       time.Time `json:"eventDate"`
	StartTime       string    `json:"startTime"`
	EndTime         string    `json:"endTime"`
	HostID          string    `json:"hostId"`
	CohostIDs       []string  `json:"cohostIds"`
	AttendeeIDs     []string  `json:"attendeeIds"`
	StripeProductID string    `json:"-"`
	PaymentURL      string    `json:"paymentUrl,omitempty"`
	ImageKey        string    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Venue is the physical location of an event.
type Venue struct {
	Address   string   `json:"address"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	Country   string   `json:"country"`
	Zip       string   `json:"zip"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// EventInput is the client-supplied payload for create and modify.
// ImageKey is set by the handler after the upload completes, never by
// the client.
type EventInput struct {
	Name        string   `json:"name" validate:"required,min=3,max=100"`
	Categories  []string `json:"categories" validate:"required,min=1,dive,required,max=50"`
	Address     string   `json:"address" validate:"required,max=200"`
	City        string   `json:"city" validate:"required,max=100,placename"`
	State       string   `json:"state" validate:"required,max=100,placename"`
	Country     string   `json:"country" validate:"required,max=100,placename"`
	Zip         string   `json:"zip" validate:"required,max=20"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Price       float64  `json:"price" validate:"gte=0"`
	TotalSeats  int      `json:"totalSeats" validate:"required,gt=0"`
	BookedSeats int      `json:"bookedSeats" validate:"gte=0"`
	MinAge      int      `json:"minAge" validate:"gte=0,lte=150"`
	Description string   `json:"description" validate:"required,max=10000"`
	EventDate   string   `json:"eventDate" validate:"required"`
	StartTime   string   `json:"startTime" validate:"required,max=20"`
	EndTime     string   `json:"endTime" validate:"required,max=20"`

	ImageKey string `json:"-"`
}
