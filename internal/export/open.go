package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blockedby/tchan/internal/database"
	"github.com/blockedby/tchan/internal/logger"
	"github.com/blockedby/tchan/internal/nats"
	"github.com/blockedby/tchan/internal/publisher"
	"github.com/blockedby/tchan/internal/repository"
)

// Output formats.
const (
	FormatCSV      = "csv"
	FormatJSONL    = "jsonl"
	FormatSQLite   = "sqlite"
	FormatPostgres = "postgres"
	FormatNATS     = "nats"
)

// ErrNATSDisconnected is reported by Check while the NATS connection is down.
var ErrNATSDisconnected = errors.New("nats disconnected")

// Formats lists the accepted output formats.
var Formats = []string{FormatCSV, FormatJSONL, FormatSQLite, FormatPostgres, FormatNATS}

// Target is an opened output. Close flushes and releases it.
type Target struct {
	Sink Sink
	// Store is set for database outputs.
	Store *repository.MessagesRepository

	close func() error
	check func(ctx context.Context) error
}

// Close flushes buffered output and releases the destination.
func (t *Target) Close() error {
	return t.close()
}

// Check reports whether the destination is still reachable. File outputs
// always are.
func (t *Target) Check(ctx context.Context) error {
	if t.check == nil {
		return nil
	}
	return t.check(ctx)
}

// Open opens an output of the given format. output is a file path for csv,
// jsonl and sqlite ("-" is stdout for the file formats), a database url for
// postgres and a server url for nats. subject is the NATS subject prefix.
func Open(ctx context.Context, format, output, subject string, log *logger.Logger) (*Target, error) {
	if log == nil {
		log = logger.Get()
	}

	switch format {
	case FormatCSV, FormatJSONL:
		return openFile(format, output)
	case FormatSQLite, FormatPostgres:
		if format == FormatSQLite && output != ":memory:" {
			if err := makeParent(output); err != nil {
				return nil, err
			}
		}
		if format == FormatPostgres && !database.IsPostgres(output) {
			return nil, fmt.Errorf("postgres output must be a postgres:// url, got %q", output)
		}
		return OpenStore(ctx, output, log)
	case FormatNATS:
		return OpenNATS(ctx, output, subject)
	default:
		return nil, fmt.Errorf("unknown format %q, want one of %s", format, strings.Join(Formats, ", "))
	}
}

// OpenStore opens the message table of a sqlite or postgresql database,
// creating it when needed.
func OpenStore(ctx context.Context, databaseURL string, log *logger.Logger) (*Target, error) {
	db, err := database.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	repo := repository.NewMessagesRepository(db.GORM, log)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &Target{
		Sink:  repo,
		Store: repo,
		close: func() error {
			db.Close()
			return nil
		},
		check: db.Ping,
	}, nil
}

// OpenNATS connects to natsURL and publishes message events under subject.
func OpenNATS(ctx context.Context, natsURL, subject string) (*Target, error) {
	client, err := nats.New(ctx, natsURL)
	if err != nil {
		return nil, err
	}
	if err := client.EnsureStream(ctx, subject); err != nil {
		client.Close()
		return nil, err
	}

	return &Target{
		Sink: publisher.NewMessagePublisher(client, subject),
		close: func() error {
			client.Close()
			return nil
		},
		check: func(context.Context) error {
			if !client.IsConnected() {
				return ErrNATSDisconnected
			}
			return nil
		},
	}, nil
}

func openFile(format, output string) (*Target, error) {
	var w io.Writer = os.Stdout
	closeFile := func() error { return nil }

	if output != "-" {
		if err := makeParent(output); err != nil {
			return nil, err
		}
		f, err := os.Create(output)
		if err != nil {
			return nil, fmt.Errorf("create output: %w", err)
		}
		w, closeFile = f, f.Close
	}

	var sink interface {
		Sink
		Flusher
	}
	if format == FormatCSV {
		cw, err := NewCSVWriter(w)
		if err != nil {
			_ = closeFile()
			return nil, err
		}
		sink = cw
	} else {
		sink = NewJSONLWriter(w)
	}

	return &Target{Sink: sink, close: func() error {
		if err := sink.Flush(); err != nil {
			_ = closeFile()
			return fmt.Errorf("flush output: %w", err)
		}
		return closeFile()
	}}, nil
}

func makeParent(path string) error {
	path = strings.TrimPrefix(path, "sqlite://")
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	return nil
}
