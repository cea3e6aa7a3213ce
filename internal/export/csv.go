package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/blockedby/tchan/internal/models"
)

// CSVHeader lists the columns written by CSVWriter, in order.
var CSVHeader = []string{
	"id", "channel", "created_at", "type", "edited", "author", "text", "views",
	"urls", "reply_to_id",
	"preview_url", "preview_image_url", "preview_site_name", "preview_title", "preview_description",
	"forwarded_author", "forwarded_author_url",
}

// CSVWriter writes one row per message. Absent fields are empty cells, urls
// is a JSON list of [tag, url] pairs.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter writes the header and returns the writer.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return &CSVWriter{w: cw}, nil
}

func (c *CSVWriter) Write(_ context.Context, msg *models.ChannelMessage) error {
	urls := msg.URLs
	if urls == nil {
		urls = []models.TaggedURL{}
	}
	var encodedURLs strings.Builder
	enc := json.NewEncoder(&encodedURLs)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(urls); err != nil {
		return fmt.Errorf("encode urls of %s: %w", msg.Permalink(), err)
	}

	row := []string{
		strconv.FormatInt(msg.ID, 10),
		msg.Channel,
		msg.CreatedAt.Format(time.RFC3339),
		string(msg.Type),
		strconv.FormatBool(msg.Edited),
		optString(msg.Author),
		optString(msg.Text),
		optInt(msg.Views),
		strings.TrimSuffix(encodedURLs.String(), "\n"),
		optInt(msg.ReplyToID),
		optString(msg.PreviewURL),
		optString(msg.PreviewImageURL),
		optString(msg.PreviewSiteName),
		optString(msg.PreviewTitle),
		optString(msg.PreviewDescription),
		optString(msg.ForwardedAuthor),
		optString(msg.ForwardedAuthorURL),
	}
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

// Flush writes buffered rows to the underlying writer.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

func optString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
