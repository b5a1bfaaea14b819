package reservations

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vatosalfa/agenda-messaging/internal/intent"
	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

// Applier writes the status transition an intent asks for.
type Applier struct {
	store  Store
	logger *logging.Logger
}

// NewApplier builds an Applier over store.
func NewApplier(store Store, logger *logging.Logger) *Applier {
	if store == nil {
		panic("reservations: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Applier{store: store, logger: logger}
}

// TargetStatus maps an intent to the status it writes.
func TargetStatus(in intent.Intent) (Status, bool) {
	switch in {
	case intent.Confirm:
		return StatusConfirmed, true
	case intent.Reschedule:
		return StatusPending, true
	case intent.Cancel:
		return StatusCancelled, true
	default:
		return "", false
	}
}

// Apply writes the transition for in. The current status is not checked, so
// re-applying an intent rewrites the same value. Cancel updates the
// reservation and the client's cancellation counter atomically.
func (a *Applier) Apply(ctx context.Context, in intent.Intent, reservation Reservation, client Client) (Status, error) {
	status, ok := TargetStatus(in)
	if !ok {
		return "", fmt.Errorf("reservations: no transition for intent %q", in)
	}

	ctx, span := tracer.Start(ctx, "reservations.apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("vatosalfa.reservation_id", reservation.ID),
		attribute.String("vatosalfa.intent", in.String()),
	)

	var err error
	if status == StatusCancelled {
		clientID := client.ID
		if clientID == "" {
			clientID = reservation.ClientID
		}
		err = a.store.CancelReservation(ctx, reservation.ID, clientID)
	} else {
		err = a.store.UpdateStatus(ctx, reservation.ID, status)
	}
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("reservations: apply %s to %s: %w", in, reservation.ID, err)
	}

	a.logger.Info("reservation status updated",
		"reservation_id", reservation.ID,
		"client_id", client.ID,
		"previous_status", reservation.Status,
		"status", status,
	)
	return status, nil
}
