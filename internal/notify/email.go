package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/dmarxie/smart-parking/internal/service"
)

// EmailSender delivers a rendered notification to a recipient.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes emails to the process log. Stands in for a real mail
// provider in development.
type LogSender struct{}

func (LogSender) Send(_ context.Context, to, subject, body string) error {
	log.Printf("EMAIL to=%s subject=%q body=%q", to, subject, body)
	return nil
}

func renderBody(msg service.NotificationMessage) string {
	return fmt.Sprintf("Reservation #%d: slot %s at %s, %s to %s.",
		msg.ReservationID, msg.SlotNumber, msg.LocationName,
		msg.StartTime.Format("Jan 2 15:04 MST"), msg.EndTime.Format("Jan 2 15:04 MST"))
}
