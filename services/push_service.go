package services

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// ErrPushTokenUnregistered means the device token is no longer valid and should be forgotten
var ErrPushTokenUnregistered = errors.New("push token is no longer registered")

// PushSender delivers a push notification to one device token
type PushSender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// messageClient is the part of *messaging.Client used for delivery
type messageClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMPushService sends notifications through Firebase Cloud Messaging
type FCMPushService struct {
	client messageClient
}

var _ PushSender = (*FCMPushService)(nil)

// NewFCMPushService builds a messaging client from a service-account key file or,
// when no file is given, from the service-account JSON itself
func NewFCMPushService(ctx context.Context, credentialsFile, credentialsJSON string) (*FCMPushService, error) {
	var credentials option.ClientOption
	switch {
	case credentialsFile != "":
		credentials = option.WithCredentialsFile(credentialsFile)
	case credentialsJSON != "":
		credentials = option.WithCredentialsJSON([]byte(credentialsJSON))
	default:
		return nil, errors.New("firebase service account is not configured")
	}

	app, err := firebase.NewApp(ctx, nil, credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return newFCMPushService(client), nil
}

func newFCMPushService(client messageClient) *FCMPushService {
	return &FCMPushService{client: client}
}

// Send delivers one message. A token FCM reports as unregistered yields ErrPushTokenUnregistered.
func (s *FCMPushService) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	_, err := s.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	})
	if err == nil {
		return nil
	}
	if messaging.IsUnregistered(err) {
		return fmt.Errorf("%w: %v", ErrPushTokenUnregistered, err)
	}
	return fmt.Errorf("push delivery failed: %w", err)
}
