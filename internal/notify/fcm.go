package notify

import (
	"context"
	"encoding/base64"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMPusher sends notifications through Firebase Cloud Messaging.
type FCMPusher struct {
	client *messaging.Client
}

// NewFCMPusher creates a pusher from a service account credentials file.
func NewFCMPusher(ctx context.Context, credentialsFile string) (*FCMPusher, error) {
	return newFCMPusher(ctx, option.WithCredentialsFile(credentialsFile))
}

// NewFCMPusherFromBase64 creates a pusher from base64-encoded service account JSON.
func NewFCMPusherFromBase64(ctx context.Context, credentialsBase64 string) (*FCMPusher, error) {
	credentialsJSON, err := base64.StdEncoding.DecodeString(credentialsBase64)
	if err != nil {
		return nil, fmt.Errorf("error decoding base64 credentials: %w", err)
	}
	return newFCMPusher(ctx, option.WithCredentialsJSON(credentialsJSON))
}

func newFCMPusher(ctx context.Context, opt option.ClientOption) (*FCMPusher, error) {
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMPusher{client: client}, nil
}

// Push sends one message with high priority so drivers see it while the app is backgrounded.
func (p *FCMPusher) Push(ctx context.Context, msg PushMessage) error {
	message := &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	if _, err := p.client.Send(ctx, message); err != nil {
		return fmt.Errorf("error sending FCM message: %w", err)
	}
	return nil
}
