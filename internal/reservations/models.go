// Package reservations locates a client's next appointment from an inbound
// message and applies the status change the client asked for.
package reservations

import (
	"errors"
	"time"
)

// Status is the lifecycle state stored on a reservation.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
)

var (
	// ErrReservationNotFound is returned when a status write targets a missing reservation.
	ErrReservationNotFound = errors.New("reservations: reservation not found")
	// ErrClientNotFound is returned when a counter write targets a missing client.
	ErrClientNotFound = errors.New("reservations: client not found")
)

// Client is a barbershop customer. Phone is the 10-digit join key for inbound messages.
type Client struct {
	ID                 string `dynamodbav:"id" json:"id"`
	Phone              string `dynamodbav:"phone" json:"phone"`
	FirstName          string `dynamodbav:"firstName,omitempty" json:"firstName,omitempty"`
	LastName           string `dynamodbav:"lastName,omitempty" json:"lastName,omitempty"`
	CancelledCount     int    `dynamodbav:"citas_canceladas" json:"citas_canceladas"`
	DuplicateValidated bool   `dynamodbav:"duplicateValidated,omitempty" json:"duplicateValidated,omitempty"`
}

// DisplayName joins the name fields, falling back to the phone.
func (c Client) DisplayName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	case c.LastName != "":
		return c.LastName
	default:
		return c.Phone
	}
}

// Reservation is a booked appointment. Date is YYYY-MM-DD and StartTime is HH:MM.
type Reservation struct {
	ID        string `dynamodbav:"id" json:"id"`
	ClientID  string `dynamodbav:"clientId" json:"clientId"`
	Date      string `dynamodbav:"date" json:"date"`
	StartTime string `dynamodbav:"startTime" json:"startTime"`
	Status    Status `dynamodbav:"status" json:"status"`
	LocalID   string `dynamodbav:"localId,omitempty" json:"localId,omitempty"`
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// StartsAt combines Date and StartTime into an instant in loc.
func (r Reservation) StartsAt(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(dateTimeLayout, r.Date+" "+r.StartTime, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Location is the result of resolving an inbound sender.
// Found is false when no client matches the phone; Reservation is nil when the
// client has nothing actionable.
type Location struct {
	Found       bool
	Client      Client
	Reservation *Reservation
}
