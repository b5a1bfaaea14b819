package reservations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

var tracer = otel.Tracer("vatosalfa.internal.reservations")

// Locator resolves an inbound sender to a client and their next reservation.
type Locator struct {
	store  Store
	loc    *time.Location
	now    func() time.Time
	logger *logging.Logger
}

// LocatorOption customizes a Locator.
type LocatorOption func(*Locator)

// WithLocation sets the zone used for "today" and for ordering start times.
func WithLocation(loc *time.Location) LocatorOption {
	return func(l *Locator) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) LocatorOption {
	return func(l *Locator) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLocator builds a Locator over store.
func NewLocator(store Store, logger *logging.Logger, opts ...LocatorOption) *Locator {
	if store == nil {
		panic("reservations: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	l := &Locator{
		store:  store,
		loc:    time.Local,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate finds the client owning sender's phone and their soonest upcoming,
// non-cancelled reservation. A missing client or an empty agenda is not an error.
func (l *Locator) Locate(ctx context.Context, sender string) (Location, error) {
	ctx, span := tracer.Start(ctx, "reservations.locate")
	defer span.End()

	phone := NormalizePhone(sender)
	if phone == "" {
		return Location{}, nil
	}
	span.SetAttributes(attribute.String("vatosalfa.phone", phone))

	client, ok, err := l.store.FindClientByPhone(ctx, phone)
	if err != nil {
		span.RecordError(err)
		return Location{}, fmt.Errorf("reservations: find client: %w", err)
	}
	if !ok {
		l.logger.Debug("no client for phone", "phone", phone)
		return Location{}, nil
	}
	span.SetAttributes(attribute.String("vatosalfa.client_id", client.ID))

	today := l.now().In(l.loc).Format(dateLayout)
	candidates, err := l.store.ListFromDate(ctx, client.ID, today)
	if err != nil {
		span.RecordError(err)
		return Location{Found: true, Client: client}, fmt.Errorf("reservations: list reservations: %w", err)
	}

	next := Earliest(candidates, l.loc)
	if next == nil {
		l.logger.Debug("client has no actionable reservation", "client_id", client.ID, "from", today)
	}
	return Location{Found: true, Client: client, Reservation: next}, nil
}

// Earliest drops cancelled reservations and returns the one that starts first.
// Reservations whose start time cannot be parsed sort after parseable ones on
// the same date; otherwise ties keep input order.
func Earliest(candidates []Reservation, loc *time.Location) *Reservation {
	active := make([]Reservation, 0, len(candidates))
	for _, r := range candidates {
		if r.Status == StatusCancelled {
			continue
		}
		active = append(active, r)
	}
	if len(active) == 0 {
		return nil
	}
	sort.SliceStable(active, func(i, j int) bool {
		return lessByStart(active[i], active[j], loc)
	})
	picked := active[0]
	return &picked
}

func lessByStart(a, b Reservation, loc *time.Location) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	at, aok := a.StartsAt(loc)
	bt, bok := b.StartsAt(loc)
	switch {
	case aok && bok:
		return at.Before(bt)
	case aok != bok:
		return aok
	default:
		return a.StartTime < b.StartTime
	}
}

// IsNotFound reports whether err is one of the store's not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrReservationNotFound) || errors.Is(err, ErrClientNotFound)
}
