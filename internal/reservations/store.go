package reservations

import "context"

// Store is the document-store surface the locator and applier need.
type Store interface {
	// FindClientByPhone returns the first client whose phone equals phone.
	// ok is false when none exists.
	FindClientByPhone(ctx context.Context, phone string) (client Client, ok bool, err error)
	// ListFromDate returns the client's reservations with Date >= fromDate.
	ListFromDate(ctx context.Context, clientID, fromDate string) ([]Reservation, error)
	// UpdateStatus rewrites a single reservation's status.
	UpdateStatus(ctx context.Context, reservationID string, status Status) error
	// CancelReservation sets the reservation to Cancelled and increments the
	// client's cancellation counter in one transaction.
	CancelReservation(ctx context.Context, reservationID, clientID string) error
}
