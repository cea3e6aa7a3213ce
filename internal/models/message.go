// Package models defines shared data types for the application.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// MessageType is the coarse kind of a rendered channel message.
type MessageType string

// MessageType constants define the closed set of message kinds.
const (
	MessageTypeService    MessageType = "service"
	MessageTypeText       MessageType = "text"
	MessageTypePhoto      MessageType = "photo"
	MessageTypeVideo      MessageType = "video"
	MessageTypeRoundVideo MessageType = "round-video"
	MessageTypeAudio      MessageType = "audio"
	MessageTypeSticker    MessageType = "sticker"
	MessageTypeLocation   MessageType = "location"
	MessageTypeDocument   MessageType = "document"
	MessageTypePoll       MessageType = "poll"
	MessageTypeMultimedia MessageType = "multimedia"
)

// URLTag says what a referenced resource is.
type URLTag string

// URLTag constants.
const (
	URLTagPhoto               URLTag = "photo"
	URLTagVideo               URLTag = "video"
	URLTagRoundVideo          URLTag = "round-video"
	URLTagAudio               URLTag = "audio"
	URLTagLink                URLTag = "link"
	URLTagThumbnailReply      URLTag = "thumbnail-reply"
	URLTagThumbnailVideo      URLTag = "thumbnail-video"
	URLTagThumbnailRoundVideo URLTag = "thumbnail-roundvideo"
)

// TaggedURL is an absolute resource url with its semantic tag.
// It encodes to JSON as a two element array: ["photo", "https://..."].
type TaggedURL struct {
	Tag URLTag
	URL string
}

// MarshalJSON implements json.Marshaler. HTML characters are left
// unescaped, the caller's encoder decides whether to escape them.
func (u TaggedURL) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([2]string{string(u.Tag), u.URL}); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *TaggedURL) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("tagged url: want 2 elements, got %d", len(pair))
	}
	u.Tag = URLTag(pair[0])
	u.URL = pair[1]
	return nil
}

// ChannelMessage is one message rendered on a channel preview page.
// ID and Channel identify it; everything else is a snapshot taken at fetch
// time (views grow, texts get edited).
type ChannelMessage struct {
	ID        int64       `json:"id"`
	Channel   string      `json:"channel"`
	CreatedAt time.Time   `json:"created_at"`
	Type      MessageType `json:"type"`
	Edited    bool        `json:"edited"`

	Author *string `json:"author"`
	Text   *string `json:"text"`
	Views  *int64  `json:"views"`

	// order and duplicates follow the page markup
	URLs []TaggedURL `json:"urls"`

	ReplyToID *int64 `json:"reply_to_id"`

	// link preview card, set together
	PreviewURL         *string `json:"preview_url"`
	PreviewImageURL    *string `json:"preview_image_url"`
	PreviewSiteName    *string `json:"preview_site_name"`
	PreviewTitle       *string `json:"preview_title"`
	PreviewDescription *string `json:"preview_description"`

	// forwarded-from block, set together
	ForwardedAuthor    *string `json:"forwarded_author"`
	ForwardedAuthorURL *string `json:"forwarded_author_url"`
}

// Permalink returns the public url of the message.
func (m *ChannelMessage) Permalink() string {
	return fmt.Sprintf("https://t.me/%s/%d", m.Channel, m.ID)
}
