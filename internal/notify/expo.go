package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ExpoPusher posts notifications to the Expo push service.
type ExpoPusher struct {
	Endpoint string
	Client   *http.Client
}

// NewExpoPusher creates a pusher for the given endpoint.
func NewExpoPusher(endpoint string) *ExpoPusher {
	return &ExpoPusher{Endpoint: endpoint, Client: &http.Client{Timeout: 5 * time.Second}}
}

type expoMessage struct {
	To    string            `json:"to"`
	Sound string            `json:"sound"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type expoResponse struct {
	Data []struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Push sends one message. Expo answers 200 with a per-message ticket; an error
// ticket is reported as a failure.
func (p *ExpoPusher) Push(ctx context.Context, msg PushMessage) error {
	body, err := json.Marshal([]expoMessage{{
		To:    msg.Token,
		Sound: "default",
		Title: msg.Title,
		Body:  msg.Body,
		Data:  msg.Data,
	}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("expo push: %w", err)
	}
	defer resp.Body.Close()

	var decoded expoResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && resp.StatusCode == http.StatusOK {
		return fmt.Errorf("expo push: decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if len(decoded.Errors) > 0 {
			return fmt.Errorf("expo push: status %d: %s", resp.StatusCode, decoded.Errors[0].Message)
		}
		return fmt.Errorf("expo push: status %d", resp.StatusCode)
	}

	for _, ticket := range decoded.Data {
		if ticket.Status == "error" {
			return fmt.Errorf("expo push: %s", ticket.Message)
		}
	}
	return nil
}
