package inbound

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vatosalfa/agenda-messaging/internal/archive"
	"github.com/vatosalfa/agenda-messaging/internal/conversations"
	"github.com/vatosalfa/agenda-messaging/internal/intent"
	"github.com/vatosalfa/agenda-messaging/internal/notify"
	"github.com/vatosalfa/agenda-messaging/internal/observability/metrics"
	"github.com/vatosalfa/agenda-messaging/internal/reservations"
	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

var tracer = otel.Tracer("vatosalfa.internal.inbound")

// Locator resolves a sender to a client and reservation.
type Locator interface {
	Locate(ctx context.Context, sender string) (reservations.Location, error)
}

// Applier writes a reservation transition.
type Applier interface {
	Apply(ctx context.Context, in intent.Intent, reservation reservations.Reservation, client reservations.Client) (reservations.Status, error)
}

// Recorder stores the inbound message in the inbox.
type Recorder interface {
	RecordInbound(ctx context.Context, in conversations.InboundRecord) (conversations.Message, error)
}

// MediaArchiver copies an attachment to long-term storage.
type MediaArchiver interface {
	Archive(ctx context.Context, req archive.Request) (string, error)
}

// CancellationNotifier alerts staff about a cancelled reservation.
type CancellationNotifier interface {
	NotifyCancellation(ctx context.Context, alert notify.CancellationAlert) error
}

// MessageProcessor handles one inbound message.
type MessageProcessor interface {
	Process(ctx context.Context, msg Message) (Outcome, error)
}

// LookupResult describes how far reservation lookup got.
type LookupResult string

const (
	LookupSkipped       LookupResult = "skipped"
	LookupNoClient      LookupResult = "no_client"
	LookupNoReservation LookupResult = "no_reservation"
	LookupFound         LookupResult = "found"
	LookupError         LookupResult = "error"
)

// Outcome summarizes what Process did.
type Outcome struct {
	Intent        intent.Intent
	Lookup        LookupResult
	ClientID      string
	ReservationID string
	Status        reservations.Status
	Applied       bool
	ArchiveKey    string
	MessageID     string
	Recorded      bool
}

// Processor classifies, applies and records inbound messages.
type Processor struct {
	locator  Locator
	applier  Applier
	recorder Recorder
	archiver MediaArchiver
	notifier CancellationNotifier
	metrics  *metrics.InboundMetrics
	now      func() time.Time
	logger   *logging.Logger
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

func WithMediaArchiver(a MediaArchiver) ProcessorOption {
	return func(p *Processor) { p.archiver = a }
}

func WithCancellationNotifier(n CancellationNotifier) ProcessorOption {
	return func(p *Processor) { p.notifier = n }
}

func WithMetrics(m *metrics.InboundMetrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// WithClock overrides time.Now for ReceivedAt defaults.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func NewProcessor(locator Locator, applier Applier, recorder Recorder, logger *logging.Logger, opts ...ProcessorOption) *Processor {
	if locator == nil {
		panic("inbound: locator cannot be nil")
	}
	if applier == nil {
		panic("inbound: applier cannot be nil")
	}
	if recorder == nil {
		panic("inbound: recorder cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	p := &Processor{
		locator:  locator,
		applier:  applier,
		recorder: recorder,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs classification, lookup and the status transition when the
// message carries both a phone number and an intent, then archives media and
// records the message. Recording always runs. Lookup misses are not errors;
// store failures are logged, counted and joined into the returned error.
func (p *Processor) Process(ctx context.Context, msg Message) (Outcome, error) {
	start := time.Now()
	defer func() { p.metrics.ObserveProcessing(time.Since(start).Seconds()) }()

	ctx, span := tracer.Start(ctx, "inbound.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("vatosalfa.message_sid", msg.MessageSID),
		attribute.String("vatosalfa.channel", msg.Channel()),
	)

	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = p.now()
	}
	logger := p.logger.With("message_sid", msg.MessageSID, "from", msg.From)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		logger = logger.With("trace_id", sc.TraceID().String())
	}

	var (
		errs []error
		out  = Outcome{Lookup: LookupSkipped}
	)

	in, ok := intent.Classify(msg.Body)
	out.Intent = in
	p.metrics.ObserveIntent(in.String())

	if ok && reservations.NormalizePhone(msg.From) != "" {
		if err := p.transition(ctx, logger, msg, in, &out); err != nil {
			errs = append(errs, err)
		}
	}

	var media *conversations.Media
	if msg.HasMedia() {
		m := conversations.NewMedia(msg.MediaURL, msg.MediaContentType)
		if p.archiver != nil {
			key, err := p.archiver.Archive(ctx, archive.Request{
				ConversationID: msg.From,
				MessageSID:     msg.MessageSID,
				URL:            msg.MediaURL,
				ContentType:    msg.MediaContentType,
				ReceivedAt:     msg.ReceivedAt,
			})
			if err != nil {
				logger.Warn("media archive failed", "error", err)
				p.metrics.ObservePersistFailure("archive")
				errs = append(errs, err)
			}
			m.ArchiveKey = key
			out.ArchiveKey = key
		}
		media = &m
	}

	recorded, err := p.recorder.RecordInbound(ctx, conversations.InboundRecord{
		From:              msg.From,
		Body:              msg.Body,
		Media:             media,
		ClientID:          out.ClientID,
		ProviderMessageID: msg.MessageSID,
		ReceivedAt:        msg.ReceivedAt,
	})
	if err != nil {
		logger.Error("failed to record inbound message", "error", err)
		p.metrics.ObservePersistFailure("recorder")
		errs = append(errs, err)
	} else {
		out.Recorded = true
		out.MessageID = recorded.ID
	}

	joined := errors.Join(errs...)
	if joined != nil {
		span.RecordError(joined)
	}
	logger.Info("inbound message processed",
		"intent", out.Intent.String(),
		"lookup", out.Lookup,
		"reservation_id", out.ReservationID,
		"status", out.Status,
		"recorded", out.Recorded,
	)
	return out, joined
}

func (p *Processor) transition(ctx context.Context, logger *logging.Logger, msg Message, in intent.Intent, out *Outcome) error {
	loc, err := p.locator.Locate(ctx, msg.From)
	if loc.Found {
		out.ClientID = loc.Client.ID
	}
	if err != nil {
		out.Lookup = LookupError
		p.metrics.ObserveLookup(string(LookupError))
		p.metrics.ObservePersistFailure("locator")
		logger.Error("reservation lookup failed", "error", err)
		return err
	}

	switch {
	case !loc.Found:
		out.Lookup = LookupNoClient
	case loc.Reservation == nil:
		out.Lookup = LookupNoReservation
	default:
		out.Lookup = LookupFound
	}
	p.metrics.ObserveLookup(string(out.Lookup))
	if out.Lookup != LookupFound {
		logger.Info("no reservation to update", "lookup", out.Lookup, "intent", in.String())
		return nil
	}

	res := *loc.Reservation
	out.ReservationID = res.ID
	status, err := p.applier.Apply(ctx, in, res, loc.Client)
	if err != nil {
		target, _ := reservations.TargetStatus(in)
		p.metrics.ObserveTransition(string(target), "error")
		p.metrics.ObservePersistFailure("applier")
		logger.Error("reservation transition failed", "error", err, "reservation_id", res.ID)
		return err
	}
	out.Status = status
	out.Applied = true
	p.metrics.ObserveTransition(string(status), "ok")

	if status == reservations.StatusCancelled && p.notifier != nil {
		alert := notify.CancellationAlert{
			ReservationID:  res.ID,
			ClientName:     loc.Client.DisplayName(),
			ClientPhone:    loc.Client.Phone,
			Date:           res.Date,
			StartTime:      res.StartTime,
			LocalID:        res.LocalID,
			CancelledCount: loc.Client.CancelledCount + 1,
			MessageBody:    msg.Body,
			ReceivedAt:     msg.ReceivedAt,
		}
		if err := p.notifier.NotifyCancellation(ctx, alert); err != nil {
			logger.Warn("cancellation alert failed", "error", err, "reservation_id", res.ID)
		}
	}
	return nil
}

