package collector

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/blockedby/tchan/internal/models"
	"github.com/blockedby/tchan/internal/parser"
)

type streamState int

const (
	stateFetching streamState = iota
	stateExtracting
	stateAdvancing
	stateRetrying
	stateDone
)

func (s streamState) String() string {
	switch s {
	case stateFetching:
		return "FETCHING"
	case stateExtracting:
		return "EXTRACTING"
	case stateAdvancing:
		return "ADVANCING"
	case stateRetrying:
		return "RETRYING"
	default:
		return "DONE"
	}
}

// Stream is a pull cursor over the messages of one channel. Pages are
// fetched inside Next; cancel its context or stop calling it to abort.
//
// A Stream is not safe for concurrent use.
type Stream struct {
	scraper    *Scraper
	opts       ScrapeOptions
	channelURL string
	log        zerolog.Logger

	state      streamState
	currentURL string
	nextURL    string
	page       []models.ChannelMessage
	pos        int

	// id of the last yielded record, 0 until one is yielded
	lastSeenID int64

	// consecutive anomaly retries since the last yielded record
	retries int
	backoff retry.Backoff

	msg   *models.ChannelMessage
	err   error
	count int
}

// Next advances to the next message. It returns false once history is
// exhausted, a limit is hit or an error occurred; check Err afterwards.
func (s *Stream) Next(ctx context.Context) bool {
	s.msg = nil

	for {
		switch s.state {
		case stateDone:
			return false

		case stateFetching:
			if !s.fetch(ctx) {
				return false
			}

		case stateExtracting:
			if s.pos >= len(s.page) {
				s.state = stateAdvancing
				continue
			}
			if s.opts.Limit > 0 && s.count >= s.opts.Limit {
				s.finish("limit reached")
				return false
			}

			msg := s.page[s.pos]
			s.pos++
			if s.opts.Until != nil && msg.CreatedAt.Before(*s.opts.Until) {
				s.finish("until reached")
				return false
			}

			s.lastSeenID = msg.ID
			s.retries = 0
			s.backoff = nil
			s.count++
			s.msg = &msg
			return true

		case stateAdvancing:
			s.advance()

		case stateRetrying:
			if !s.retry(ctx) {
				return false
			}
		}
	}
}

// Message returns the record produced by the last successful Next.
func (s *Stream) Message() *models.ChannelMessage {
	return s.msg
}

// Err returns the error that stopped the stream, if any. Running out of
// history is not an error.
func (s *Stream) Err() error {
	return s.err
}

// Count returns how many records were yielded so far. Zero after the
// stream ended usually means the reference is not a public channel.
func (s *Stream) Count() int {
	return s.count
}

func (s *Stream) fetch(ctx context.Context) bool {
	s.log.Debug().Str("url", s.currentURL).Msg("fetching page")

	doc, err := s.scraper.fetcher.Fetch(ctx, s.currentURL)
	if err != nil {
		return s.fail(err)
	}

	page, err := parser.ParseMessages(doc, s.currentURL)
	if err != nil {
		return s.fail(err)
	}
	next, err := parser.NextPageURL(doc, s.currentURL)
	if err != nil {
		return s.fail(err)
	}

	if page.Truncated {
		s.log.Debug().Str("url", s.currentURL).Msg("page cut by no messages placeholder")
	}

	s.page = page.Messages
	s.pos = 0
	s.nextURL = next
	s.state = stateExtracting
	return true
}

func (s *Stream) advance() {
	switch {
	case s.nextURL != "":
		s.currentURL = s.nextURL
		s.state = stateFetching
	case s.lastSeenID > s.scraper.opts.AnomalyThreshold:
		// the page lost its navigation although older messages must
		// exist; Telegram does this when it throttles
		s.state = stateRetrying
	default:
		s.finish("history exhausted")
	}
}

func (s *Stream) retry(ctx context.Context) bool {
	if s.backoff == nil {
		s.backoff = retry.WithMaxRetries(
			uint64(s.scraper.opts.MaxAnomalyRetries),
			retry.NewExponential(s.scraper.opts.AnomalyBackoff),
		)
	}

	delay, stop := s.backoff.Next()
	if stop {
		s.log.Warn().
			Int64("last_seen_id", s.lastSeenID).
			Int("retries", s.retries).
			Msg("giving up on anomaly retries, older messages may be missing")
		s.finish("anomaly retries exhausted")
		return false
	}

	s.retries++
	s.currentURL = s.channelURL + "?before=" + strconv.FormatInt(s.lastSeenID, 10)
	s.log.Info().
		Int64("last_seen_id", s.lastSeenID).
		Int("retry", s.retries).
		Dur("delay", delay).
		Str("url", s.currentURL).
		Msg("page without navigation, retrying")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return s.fail(ctx.Err())
	}

	s.state = stateFetching
	return true
}

func (s *Stream) finish(reason string) {
	s.log.Debug().
		Str("reason", reason).
		Int("count", s.count).
		Int64("last_seen_id", s.lastSeenID).
		Msg("stream done")
	s.state = stateDone
}

func (s *Stream) fail(err error) bool {
	s.log.Error().Err(err).Str("url", s.currentURL).Msg("stream failed")
	s.err = err
	s.state = stateDone
	return false
}
