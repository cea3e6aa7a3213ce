package collector

import (
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/blockedby/tchan/internal/parser"
)

// validation errors
var (
	ErrChannelRequired = errors.New("channel is required")
	ErrInvalidChannel  = errors.New("channel must be a username, @username or t.me url")
	ErrInvalidDate     = errors.New("until date must be in YYYY-MM-DD format")
	ErrFutureDate      = errors.New("until date cannot be in the future")
	ErrInvalidLimit    = errors.New("limit must be non-negative")
)

// public usernames: 4-32 chars, letters, digits and underscores
var handleRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{3,31}$`)

// ValidChannel reports whether ref normalizes to a plausible public
// channel handle.
func ValidChannel(ref string) bool {
	return handleRe.MatchString(parser.ChannelHandle(ref))
}

// ScrapeRequest represents a request to scrape a telegram channel
type ScrapeRequest struct {
	// Channel - username, @username or any t.me url of the channel.
	Channel string `json:"channel"`

	// Limit - maximum messages to scrape.
	// 0 means no limit.
	Limit int `json:"limit,omitempty"`

	// Until - date to scrape until (YYYY-MM-DD).
	// messages older than this are not exported.
	Until string `json:"until,omitempty"`
}

// Validate performs basic validation of the request.
// Does not check that the channel exists, that requires a fetch.
func (r *ScrapeRequest) Validate() error {
	if r.Channel == "" {
		return ErrChannelRequired
	}
	if !ValidChannel(r.Channel) {
		return ErrInvalidChannel
	}

	// normalize channel name
	r.Channel = parser.ChannelHandle(r.Channel)

	if r.Limit < 0 {
		return ErrInvalidLimit
	}

	if r.Until != "" {
		until, err := time.Parse("2006-01-02", r.Until)
		if err != nil {
			return ErrInvalidDate
		}
		if until.After(time.Now()) {
			return ErrFutureDate
		}
	}

	return nil
}

// UntilTime returns the Until date as *time.Time
// returns nil if Until is empty or invalid
func (r *ScrapeRequest) UntilTime() *time.Time {
	if r.Until == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", r.Until)
	if err != nil {
		return nil
	}
	return &t
}

// Options converts a validated request into scrape options.
func (r *ScrapeRequest) Options() ScrapeOptions {
	return ScrapeOptions{
		Channel: r.Channel,
		Limit:   r.Limit,
		Until:   r.UntilTime(),
	}
}

// ParseQuery builds a request from the limit and until query parameters
// of a streaming endpoint.
func ParseQuery(channel, limit, until string) (*ScrapeRequest, error) {
	req := &ScrapeRequest{Channel: channel, Until: until}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return nil, ErrInvalidLimit
		}
		req.Limit = n
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// ScrapeResponse represents response to scrape request
type ScrapeResponse struct {
	ScrapeID  uuid.UUID `json:"scrape_id"`
	Status    string    `json:"status"` // "running"
	Channel   string    `json:"channel"`
	StartedAt time.Time `json:"started_at"`
}
