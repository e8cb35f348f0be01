package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/dmarxie/smart-parking/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
)

const (
	NotifyReservationCreated      = "reservation_created"
	NotifyReservationConfirmed    = "reservation_confirmed"
	NotifyReservationDeclined     = "reservation_declined"
	NotifyReservationCancellation = "reservation_cancellation"
	NotifyReservationExpiry       = "reservation_expiry"
)

// NotificationMessage is the payload placed on the notification queue; the
// worker turns it into an email.
type NotificationMessage struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	UserEmail     string    `json:"user_email"`
	ReservationID int       `json:"reservation_id"`
	LocationName  string    `json:"location_name"`
	SlotNumber    string    `json:"slot_number"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	SentAt        time.Time `json:"sent_at"`
}

// NotificationService publishes reservation events to SQS, honoring each
// user's notification preference. A nil client disables publishing (local
// development without AWS).
type NotificationService struct {
	sqsClient *sqs.Client
	queueURL  string
}

func NewNotificationService(sqsClient *sqs.Client, queueURL string) *NotificationService {
	return &NotificationService{sqsClient: sqsClient, queueURL: queueURL}
}

func (s *NotificationService) Publish(ctx context.Context, user *domain.User, notificationType string, res *domain.Reservation) {
	if user == nil || res == nil {
		return
	}
	if !user.ShouldReceiveNotification(notificationType) {
		return
	}
	if s.sqsClient == nil || s.queueURL == "" {
		log.Printf("Notification queue not configured, skipping %s for reservation %d", notificationType, res.ID)
		return
	}

	msg := NotificationMessage{
		ID:            uuid.NewString(),
		Type:          notificationType,
		UserEmail:     user.Email,
		ReservationID: res.ID,
		LocationName:  res.LocationName,
		SlotNumber:    res.SlotNumber,
		StartTime:     res.StartTime,
		EndTime:       res.EndTime,
		SentAt:        time.Now().UTC(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling notification %s for reservation %d: %v", notificationType, res.ID, err)
		return
	}

	_, err = s.sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &s.queueURL,
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		// Notifications are best-effort; the reservation change has already
		// been committed.
		log.Printf("Error publishing notification %s for reservation %d: %v", notificationType, res.ID, err)
	}
}

// Subject renders the email subject line for a notification type.
func (m NotificationMessage) Subject() string {
	switch m.Type {
	case NotifyReservationCreated:
		return fmt.Sprintf("Reservation received for slot %s at %s", m.SlotNumber, m.LocationName)
	case NotifyReservationConfirmed:
		return fmt.Sprintf("Reservation confirmed for slot %s at %s", m.SlotNumber, m.LocationName)
	case NotifyReservationDeclined:
		return fmt.Sprintf("Reservation declined for slot %s at %s", m.SlotNumber, m.LocationName)
	case NotifyReservationCancellation:
		return fmt.Sprintf("Reservation cancelled for slot %s at %s", m.SlotNumber, m.LocationName)
	case NotifyReservationExpiry:
		return fmt.Sprintf("Reservation expired for slot %s at %s", m.SlotNumber, m.LocationName)
	}
	return fmt.Sprintf("Reservation update for slot %s at %s", m.SlotNumber, m.LocationName)
}
