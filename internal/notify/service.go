// Package notify sends staff alerts by email.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

// CancellationAlert describes a reservation a client cancelled over chat.
type CancellationAlert struct {
	ReservationID  string
	ClientName     string
	ClientPhone    string
	Date           string
	StartTime      string
	LocalID        string
	CancelledCount int
	MessageBody    string
	ReceivedAt     time.Time
}

// CancellationNotifier emails the shop staff when a client cancels.
type CancellationNotifier struct {
	email     EmailSender
	recipient string
	logger    *logging.Logger
}

// NewCancellationNotifier returns nil when there is no sender or recipient.
func NewCancellationNotifier(email EmailSender, recipient string, logger *logging.Logger) *CancellationNotifier {
	recipient = strings.TrimSpace(recipient)
	if email == nil || recipient == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CancellationNotifier{email: email, recipient: recipient, logger: logger}
}

// NotifyCancellation sends the alert. A nil notifier is a no-op.
func (n *CancellationNotifier) NotifyCancellation(ctx context.Context, alert CancellationAlert) error {
	if n == nil {
		return nil
	}
	msg := EmailMessage{
		To:      n.recipient,
		Subject: cancellationSubject(alert),
		Body:    cancellationBody(alert),
	}
	if err := n.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: cancellation alert: %w", err)
	}
	n.logger.Info("cancellation alert sent", "reservation_id", alert.ReservationID, "to", n.recipient)
	return nil
}

func cancellationSubject(a CancellationAlert) string {
	name := a.ClientName
	if name == "" {
		name = a.ClientPhone
	}
	return fmt.Sprintf("Cita cancelada: %s %s %s", name, a.Date, a.StartTime)
}

func cancellationBody(a CancellationAlert) string {
	var b strings.Builder
	b.WriteString("Un cliente canceló su cita por WhatsApp.\n\n")
	fmt.Fprintf(&b, "Cliente: %s\n", a.ClientName)
	fmt.Fprintf(&b, "Teléfono: %s\n", a.ClientPhone)
	fmt.Fprintf(&b, "Fecha: %s %s\n", a.Date, a.StartTime)
	if a.LocalID != "" {
		fmt.Fprintf(&b, "Sucursal: %s\n", a.LocalID)
	}
	fmt.Fprintf(&b, "Reserva: %s\n", a.ReservationID)
	fmt.Fprintf(&b, "Cancelaciones acumuladas: %d\n", a.CancelledCount)
	if a.MessageBody != "" {
		fmt.Fprintf(&b, "\nMensaje: %q\n", a.MessageBody)
	}
	if !a.ReceivedAt.IsZero() {
		fmt.Fprintf(&b, "Recibido: %s\n", a.ReceivedAt.Format(time.RFC3339))
	}
	return b.String()
}
