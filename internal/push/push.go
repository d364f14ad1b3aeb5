// Package push delivers notifications to user devices through an external
// push gateway. Delivery is the second, best-effort phase of fan-out: the
// durable notification record is written first by the service layer, then a
// Message is enqueued here and sent asynchronously with retry. A failed send
// never affects the stored record or other recipients.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Message is one delivery addressed to a device token or a topic.
// Exactly one of Token and Topic is set.
type Message struct {
	Token string            `json:"token,omitempty"`
	Topic string            `json:"topic,omitempty"`
	Type  string            `json:"type"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Sender performs one push send attempt. Implementations must be safe for
// concurrent use by the dispatcher's workers.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// HTTPSender posts messages to an FCM-style HTTP gateway.
type HTTPSender struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPSender constructs a sender for the gateway at url, authenticating
// with apiKey as a bearer token.
func NewHTTPSender(url, apiKey string) *HTTPSender {
	return &HTTPSender{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// gatewayPayload is the wire shape the gateway accepts: a target plus a
// display notification and a data map.
type gatewayPayload struct {
	To           string            `json:"to"`
	Notification struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"notification"`
	Data map[string]string `json:"data,omitempty"`
}

// Send posts one message. Any non-2xx response is an error; the dispatcher
// decides whether to retry.
func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	var payload gatewayPayload
	payload.To = msg.Token
	if msg.Topic != "" {
		payload.To = "/topics/" + msg.Topic
	}
	payload.Notification.Title = msg.Title
	payload.Notification.Body = msg.Body

	// The type tag rides in the data map so client apps can route taps.
	payload.Data = make(map[string]string, len(msg.Data)+1)
	for k, v := range msg.Data {
		payload.Data[k] = v
	}
	payload.Data["type"] = msg.Type

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("push.HTTPSender.Send: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("push.HTTPSender.Send: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push.HTTPSender.Send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push.HTTPSender.Send: gateway returned %s", resp.Status)
	}
	return nil
}

// NopSender discards all messages. Used when no gateway is configured, so
// the rest of the pipeline behaves identically in development.
type NopSender struct{}

func (NopSender) Send(context.Context, Message) error { return nil }
