package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/dmarxie/smart-parking/internal/config"
	"github.com/dmarxie/smart-parking/internal/service"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Consumer drains the notification queue and hands each message to the
// email sender. Failed messages are left on the queue and retried after the
// visibility timeout.
type Consumer struct {
	sqsClient *sqs.Client
	queueURL  string
	sender    EmailSender
}

func NewConsumer(client *sqs.Client, cfg *config.Config, sender EmailSender) *Consumer {
	return &Consumer{
		sqsClient: client,
		queueURL:  cfg.SQSNotificationQueueURL,
		sender:    sender,
	}
}

func (c *Consumer) Start(ctx context.Context) {
	log.Printf("Notification worker listening on queue: %s", c.queueURL)
	for {
		select {
		case <-ctx.Done():
			log.Println("Notification worker: context cancelled, stopping.")
			return
		default:
			receiveInput := &sqs.ReceiveMessageInput{
				QueueUrl:            &c.queueURL,
				MaxNumberOfMessages: 10,
				WaitTimeSeconds:     20,
				VisibilityTimeout:   60,
			}

			result, err := c.sqsClient.ReceiveMessage(ctx, receiveInput)
			if err != nil {
				log.Printf("Notification worker: error receiving messages: %v", err)
				select {
				case <-time.After(5 * time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}

			for _, message := range result.Messages {
				if message.Body == nil {
					c.deleteMessage(ctx, message.ReceiptHandle)
					continue
				}

				if err := c.dispatch(ctx, *message.Body); err != nil {
					log.Printf("Notification worker: error dispatching message %s: %v; will retry after visibility timeout", *message.MessageId, err)
					continue
				}
				c.deleteMessage(ctx, message.ReceiptHandle)
			}
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, body string) error {
	var msg service.NotificationMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		// A payload that never parses would loop forever; log and drop.
		log.Printf("Notification worker: dropping malformed payload: %v", err)
		return nil
	}
	return c.sender.Send(ctx, msg.UserEmail, msg.Subject(), renderBody(msg))
}

func (c *Consumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		return
	}
	_, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		log.Printf("Notification worker: error deleting message: %v", err)
	}
}
