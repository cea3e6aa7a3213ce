package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blockedby/tchan/internal/models"
)

// MockNATSClient mocks the nats client operations we need
type MockNATSClient struct {
	PublishedSubject string
	PublishedID      string
	PublishedData    any
	PublishError     error
}

func (m *MockNATSClient) Publish(_ context.Context, subject, msgID string, data any) error {
	m.PublishedSubject = subject
	m.PublishedID = msgID
	m.PublishedData = data
	return m.PublishError
}

func TestMessagePublisher_Write(t *testing.T) {
	mock := &MockNATSClient{}
	pub := NewMessagePublisher(mock, "tchan.messages")
	scrapedAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	pub.now = func() time.Time { return scrapedAt }

	msg := &models.ChannelMessage{
		ID:        84,
		Channel:   "tchantest",
		CreatedAt: time.Date(2023, 2, 24, 11, 1, 46, 0, time.UTC),
		Type:      models.MessageTypeText,
		URLs:      []models.TaggedURL{},
	}

	err := pub.Write(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.PublishedSubject != "tchan.messages.tchantest" {
		t.Errorf("subject = %s, want tchan.messages.tchantest", mock.PublishedSubject)
	}

	if mock.PublishedID != "tchantest/84" {
		t.Errorf("msg id = %s, want tchantest/84", mock.PublishedID)
	}

	event, ok := mock.PublishedData.(MessageEvent)
	if !ok {
		t.Fatalf("payload type = %T, want MessageEvent", mock.PublishedData)
	}
	if event.Permalink != "https://t.me/tchantest/84" {
		t.Errorf("permalink = %s", event.Permalink)
	}
	if !event.ScrapedAt.Equal(scrapedAt) {
		t.Errorf("scraped_at = %v, want %v", event.ScrapedAt, scrapedAt)
	}
	if event.Message != msg {
		t.Error("event should carry the message")
	}
}

func TestMessagePublisher_WriteError(t *testing.T) {
	mock := &MockNATSClient{PublishError: errors.New("no responders")}
	pub := NewMessagePublisher(mock, "tchan.messages")

	err := pub.Write(context.Background(), &models.ChannelMessage{ID: 1, Channel: "c"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, mock.PublishError) {
		t.Errorf("error %v should wrap publish error", err)
	}
}
