// Package export writes scraped channel messages to files, databases and
// message brokers.
package export

import (
	"context"
	"errors"

	"github.com/blockedby/tchan/internal/models"
)

// Sink receives messages one at a time, in scrape order.
type Sink interface {
	Write(ctx context.Context, msg *models.ChannelMessage) error
}

// Flusher is implemented by sinks that buffer output.
type Flusher interface {
	Flush() error
}

// MultiSink writes every message to each of its sinks in turn and stops at
// the first failure.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, msg *models.ChannelMessage) error {
	for _, s := range m {
		if err := s.Write(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes every sink that buffers and joins the failures.
func (m MultiSink) Flush() error {
	var errs []error
	for _, s := range m {
		if f, ok := s.(Flusher); ok {
			if err := f.Flush(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
