package collector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blockedby/tchan/internal/logger"
)

// errors
var (
	ErrAlreadyRunning = errors.New("a scrape job is already running")
)

// ScrapeResult summarizes a finished export.
type ScrapeResult struct {
	Channel  string `json:"channel"`
	Messages int    `json:"messages"`
}

// Exporter writes every message of a channel to the configured sinks.
type Exporter interface {
	Export(ctx context.Context, opts ScrapeOptions) (*ScrapeResult, error)
}

// ScrapeJob represents an active scrape job
type ScrapeJob struct {
	ID        uuid.UUID
	StartedAt time.Time
	Options   ScrapeOptions
}

// JobReport describes the last finished job.
type JobReport struct {
	ID         uuid.UUID     `json:"scrape_id"`
	Channel    string        `json:"channel"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Result     *ScrapeResult `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// ScrapeManager manages export jobs.
// Only one job runs at a time. Safe for concurrent use.
type ScrapeManager struct {
	mu       sync.Mutex
	current  *ScrapeJob
	last     *JobReport
	cancelFn context.CancelFunc
	done     chan struct{} // closed when the current job has finished
	exporter Exporter
	log      *logger.Logger
}

// NewScrapeManager creates a new scrape manager
func NewScrapeManager(exporter Exporter, log *logger.Logger) *ScrapeManager {
	if log == nil {
		log = logger.Get()
	}
	return &ScrapeManager{
		exporter: exporter,
		log:      log,
	}
}

// Start starts a new scrape job in the background.
// Returns ErrAlreadyRunning if a job is already running.
func (m *ScrapeManager) Start(_ context.Context, opts ScrapeOptions) (*ScrapeJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, ErrAlreadyRunning
	}

	// detached from the request context, the job outlives the response
	scrapeCtx, cancel := context.WithCancel(context.Background())
	m.cancelFn = cancel

	job := &ScrapeJob{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		Options:   opts,
	}
	m.current = job
	m.done = make(chan struct{})

	go m.run(scrapeCtx, job, m.done)

	return job, nil
}

// Stop cancels the current job and waits until it has finished, so its
// sinks are flushed before Stop returns.
// Safe to call when no job is running.
func (m *ScrapeManager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancelFn, m.done
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Current returns the running job or nil.
func (m *ScrapeManager) Current() *ScrapeJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Last returns the report of the last finished job or nil.
func (m *ScrapeManager) Last() *JobReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *ScrapeManager) run(ctx context.Context, job *ScrapeJob, done chan struct{}) {
	defer close(done)

	report := &JobReport{
		ID:        job.ID,
		Channel:   job.Options.Channel,
		StartedAt: job.StartedAt,
	}

	if m.exporter != nil {
		result, err := m.exporter.Export(ctx, job.Options)
		report.Result = result
		if err != nil {
			report.Error = err.Error()
			m.log.Error().Err(err).Str("scrape_id", job.ID.String()).Str("channel", job.Options.Channel).Msg("scrape job failed")
		}
	}
	report.FinishedAt = time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = report
	m.cancelFn()
	m.current = nil
	m.cancelFn = nil
	m.done = nil
}
