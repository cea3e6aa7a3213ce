// Package publisher turns scraped messages into NATS events.
package publisher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/blockedby/tchan/internal/models"
)

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(ctx context.Context, subject, msgID string, data any) error
}

// MessageEvent is the payload published for every scraped message.
type MessageEvent struct {
	Message   *models.ChannelMessage `json:"message"`
	Permalink string                 `json:"permalink"`
	ScrapedAt time.Time              `json:"scraped_at"`
}

// MessagePublisher publishes messages to <subject>.<channel>.
type MessagePublisher struct {
	js      NATSClient
	subject string
	now     func() time.Time
}

// NewMessagePublisher creates a new publisher
func NewMessagePublisher(js NATSClient, subject string) *MessagePublisher {
	return &MessagePublisher{js: js, subject: subject, now: time.Now}
}

// Subject returns the subject events of channel are published to.
func (p *MessagePublisher) Subject(channel string) string {
	return p.subject + "." + channel
}

// Write publishes a message event. The channel/id pair is the message id,
// so publishing a rescraped message again inside the dedup window is a no-op.
func (p *MessagePublisher) Write(ctx context.Context, msg *models.ChannelMessage) error {
	event := MessageEvent{
		Message:   msg,
		Permalink: msg.Permalink(),
		ScrapedAt: p.now().UTC(),
	}

	msgID := msg.Channel + "/" + strconv.FormatInt(msg.ID, 10)
	if err := p.js.Publish(ctx, p.Subject(msg.Channel), msgID, event); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}
