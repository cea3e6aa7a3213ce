package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/blockedby/tchan/internal/collector"
	"github.com/blockedby/tchan/internal/config"
	"github.com/blockedby/tchan/internal/export"
	"github.com/blockedby/tchan/internal/logger"
	"github.com/blockedby/tchan/internal/telegram"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: tchan [flags] <output> <channel>...\n\n")
	fmt.Fprintf(os.Stderr, "Exports every message of public telegram channels. A channel is a\n")
	fmt.Fprintf(os.Stderr, "username, @username or t.me url. Output is a file (\"-\" for stdout),\n")
	fmt.Fprintf(os.Stderr, "a postgres:// url or a nats:// url depending on -format.\n\n")
	flag.PrintDefaults()
}

func main() {
	format := flag.String("format", export.FormatCSV, "output format: "+strings.Join(export.Formats, ", "))
	channelsFile := flag.String("channels", "", "YAML file with more channels")
	infoOnly := flag.Bool("info", false, "write channel info as JSON lines instead of messages")
	limit := flag.Int("limit", 0, "maximum messages per channel, 0 for all")
	until := flag.String("until", "", "skip messages older than this date (YYYY-MM-DD)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	output := flag.Arg(0)
	channels := flag.Args()[1:]

	if *channelsFile != "" {
		list, err := config.LoadChannelList(*channelsFile)
		if err != nil {
			logger.Fatal("failed to load channel list", err)
		}
		channels = append(channels, list...)
	}
	if len(channels) == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		logger.Fatal("failed to init logger", err)
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher, release := telegram.NewFetcher(cfg, log)
	defer release()

	scraper := collector.NewScraper(fetcher, collector.Options{
		AnomalyThreshold:  cfg.AnomalyThreshold,
		MaxAnomalyRetries: cfg.MaxAnomalyRetries,
		AnomalyBackoff:    cfg.AnomalyBackoff,
	}, log)

	var scraped int
	if *infoOnly {
		scraped, err = writeInfo(ctx, scraper, output, channels, log)
	} else {
		scraped, err = exportMessages(ctx, scraper, cfg, *format, output, channels, *limit, *until, log)
	}
	if err != nil {
		release()
		logger.Fatal("export failed", err)
	}

	log.Info().Int("channels", scraped).Msgf("scraped %d channel(s)", scraped)
}

func exportMessages(ctx context.Context, scraper *collector.Scraper, cfg *config.Config,
	format, output string, channels []string, limit int, until string, log *logger.Logger) (int, error) {
	target, err := export.Open(ctx, format, output, cfg.NatsSubject, log)
	if err != nil {
		return 0, err
	}

	exporter := export.NewExporter(scraper, target.Sink, log)

	scraped := 0
	for _, ref := range channels {
		req, err := collector.ParseQuery(ref, strconv.Itoa(limit), until)
		if err != nil {
			log.Warn().Err(err).Str("channel", ref).Msg("skipping channel")
			continue
		}

		_, err = exporter.Export(ctx, req.Options())
		switch {
		case err == nil:
			scraped++
		case ctx.Err() != nil:
			_ = target.Close()
			return scraped, ctx.Err()
		case errors.Is(err, collector.ErrNotPublicChannel):
			// logged by the exporter
		default:
			log.Error().Err(err).Str("channel", req.Channel).Msg("channel export failed")
		}
	}

	if err := target.Close(); err != nil {
		return scraped, err
	}
	return scraped, nil
}

func writeInfo(ctx context.Context, scraper *collector.Scraper, output string, channels []string, log *logger.Logger) (int, error) {
	out := os.Stdout
	if output != "-" {
		if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
			return 0, fmt.Errorf("create output directory: %w", err)
		}
		f, err := os.Create(output)
		if err != nil {
			return 0, fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	scraped := 0
	for _, ref := range channels {
		if !collector.ValidChannel(ref) {
			log.Warn().Str("channel", ref).Msg("skipping channel")
			continue
		}

		info, err := scraper.Info(ctx, ref)
		if err != nil {
			if ctx.Err() != nil {
				return scraped, ctx.Err()
			}
			log.Warn().Err(err).Str("channel", ref).Msg(collector.ErrNotPublicChannel.Error())
			continue
		}
		if err := enc.Encode(info); err != nil {
			return scraped, fmt.Errorf("write info: %w", err)
		}
		scraped++
	}
	return scraped, nil
}
