// Package repository persists scraped channel messages.
package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blockedby/tchan/internal/logger"
	"github.com/blockedby/tchan/internal/models"
)

// MessageRecord is the stored form of a channel message. (Channel, ID) is
// the primary key, so scraping a channel again refreshes existing rows.
type MessageRecord struct {
	Channel string `gorm:"primaryKey;size:64"`
	ID      int64  `gorm:"primaryKey;autoIncrement:false"`

	// not named CreatedAt, gorm would treat it as its own timestamp
	PostedAt time.Time `gorm:"column:created_at;index"`
	Type     string    `gorm:"size:16"`
	Edited   bool

	Author *string
	Text   *string
	Views  *int64

	URLs []models.TaggedURL `gorm:"serializer:json"`

	ReplyToID *int64

	PreviewURL         *string
	PreviewImageURL    *string
	PreviewSiteName    *string
	PreviewTitle       *string
	PreviewDescription *string

	ForwardedAuthor    *string
	ForwardedAuthorURL *string

	ScrapedAt time.Time
}

// TableName overrides the gorm default.
func (MessageRecord) TableName() string {
	return "channel_messages"
}

func recordFromMessage(msg *models.ChannelMessage, scrapedAt time.Time) *MessageRecord {
	return &MessageRecord{
		Channel:            msg.Channel,
		ID:                 msg.ID,
		PostedAt:           msg.CreatedAt,
		Type:               string(msg.Type),
		Edited:             msg.Edited,
		Author:             msg.Author,
		Text:               msg.Text,
		Views:              msg.Views,
		URLs:               msg.URLs,
		ReplyToID:          msg.ReplyToID,
		PreviewURL:         msg.PreviewURL,
		PreviewImageURL:    msg.PreviewImageURL,
		PreviewSiteName:    msg.PreviewSiteName,
		PreviewTitle:       msg.PreviewTitle,
		PreviewDescription: msg.PreviewDescription,
		ForwardedAuthor:    msg.ForwardedAuthor,
		ForwardedAuthorURL: msg.ForwardedAuthorURL,
		ScrapedAt:          scrapedAt,
	}
}

// Message converts the row back to the domain type.
func (r *MessageRecord) Message() models.ChannelMessage {
	urls := r.URLs
	if urls == nil {
		urls = []models.TaggedURL{}
	}
	return models.ChannelMessage{
		ID:                 r.ID,
		Channel:            r.Channel,
		CreatedAt:          r.PostedAt,
		Type:               models.MessageType(r.Type),
		Edited:             r.Edited,
		Author:             r.Author,
		Text:               r.Text,
		Views:              r.Views,
		URLs:               urls,
		ReplyToID:          r.ReplyToID,
		PreviewURL:         r.PreviewURL,
		PreviewImageURL:    r.PreviewImageURL,
		PreviewSiteName:    r.PreviewSiteName,
		PreviewTitle:       r.PreviewTitle,
		PreviewDescription: r.PreviewDescription,
		ForwardedAuthor:    r.ForwardedAuthor,
		ForwardedAuthorURL: r.ForwardedAuthorURL,
	}
}

// MessagesRepository stores messages through gorm.
type MessagesRepository struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

// NewMessagesRepository creates a new messages repository
func NewMessagesRepository(db *gorm.DB, log *logger.Logger) *MessagesRepository {
	if log == nil {
		log = logger.Get()
	}
	return &MessagesRepository{db: db, log: log, now: time.Now}
}

// Migrate creates or updates the messages table.
func (r *MessagesRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&MessageRecord{}); err != nil {
		return fmt.Errorf("migrate channel_messages: %w", err)
	}
	r.log.Debug().Str("table", MessageRecord{}.TableName()).Msg("schema migrated")
	return nil
}

// Write upserts a message. Views, text and edit state of a known message
// are replaced with the new snapshot.
func (r *MessagesRepository) Write(ctx context.Context, msg *models.ChannelMessage) error {
	rec := recordFromMessage(msg, r.now())
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rec).Error
	if err != nil {
		return fmt.Errorf("save message %s/%d: %w", msg.Channel, msg.ID, err)
	}
	return nil
}

// Get returns a single message or nil when it is unknown.
func (r *MessagesRepository) Get(ctx context.Context, channel string, id int64) (*models.ChannelMessage, error) {
	var rec MessageRecord
	err := r.db.WithContext(ctx).
		Where("channel = ? AND id = ?", channel, id).
		Limit(1).
		Find(&rec).Error
	if err != nil {
		return nil, fmt.Errorf("get message %s/%d: %w", channel, id, err)
	}
	if rec.Channel == "" {
		return nil, nil
	}
	msg := rec.Message()
	return &msg, nil
}

// List returns the newest messages of a channel, at most limit of them
// (0 means all).
func (r *MessagesRepository) List(ctx context.Context, channel string, limit int) ([]models.ChannelMessage, error) {
	q := r.db.WithContext(ctx).
		Where("channel = ?", channel).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []MessageRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list messages of %s: %w", channel, err)
	}

	msgs := make([]models.ChannelMessage, 0, len(recs))
	for i := range recs {
		msgs = append(msgs, recs[i].Message())
	}
	return msgs, nil
}

// Count returns how many messages of a channel are stored.
func (r *MessagesRepository) Count(ctx context.Context, channel string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&MessageRecord{}).Where("channel = ?", channel).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count messages of %s: %w", channel, err)
	}
	return n, nil
}
