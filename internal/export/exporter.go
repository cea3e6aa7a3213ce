package export

import (
	"context"
	"fmt"

	"github.com/blockedby/tchan/internal/collector"
	"github.com/blockedby/tchan/internal/logger"
	"github.com/blockedby/tchan/internal/parser"
)

// progressEvery is how many records pass between progress log lines.
const progressEvery = 100

// Exporter drains channel message streams into a sink.
type Exporter struct {
	scraper *collector.Scraper
	sink    Sink
	log     *logger.Logger
}

// NewExporter creates a new exporter
func NewExporter(scraper *collector.Scraper, sink Sink, log *logger.Logger) *Exporter {
	if log == nil {
		log = logger.Get()
	}
	return &Exporter{scraper: scraper, sink: sink, log: log}
}

// Export writes every message of opts.Channel to the sink. A channel that
// yields no message at all is reported as collector.ErrNotPublicChannel.
// The result counts the records written even when an error is returned.
func (e *Exporter) Export(ctx context.Context, opts collector.ScrapeOptions) (result *collector.ScrapeResult, err error) {
	handle := parser.ChannelHandle(opts.Channel)
	log := e.log.With().Str("channel", handle).Logger()
	result = &collector.ScrapeResult{Channel: handle}

	if f, ok := e.sink.(Flusher); ok {
		defer func() {
			if ferr := f.Flush(); ferr != nil && err == nil {
				err = fmt.Errorf("flush %s: %w", handle, ferr)
			}
		}()
	}

	log.Info().Msg("export started")

	stream := e.scraper.Messages(opts)
	for stream.Next(ctx) {
		if err := e.sink.Write(ctx, stream.Message()); err != nil {
			return result, fmt.Errorf("export %s: %w", handle, err)
		}
		result.Messages++
		if result.Messages%progressEvery == 0 {
			log.Info().Int("messages", result.Messages).Msg("export progress")
		}
	}
	if err := stream.Err(); err != nil {
		return result, fmt.Errorf("export %s: %w", handle, err)
	}

	if result.Messages == 0 {
		log.Warn().Msg(collector.ErrNotPublicChannel.Error())
		return result, fmt.Errorf("export %s: %w", handle, collector.ErrNotPublicChannel)
	}

	log.Info().Int("messages", result.Messages).Msg("export finished")
	return result, nil
}
