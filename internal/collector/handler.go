package collector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/blockedby/tchan/internal/logger"
	"github.com/blockedby/tchan/internal/models"
	"github.com/blockedby/tchan/internal/parser"
	"github.com/blockedby/tchan/internal/telegram"
)

// errors
var (
	// ErrNotPublicChannel is reported when a reference yields no channel page.
	ErrNotPublicChannel   = errors.New("invalid username or not a public channel")
	ErrStoreNotConfigured = errors.New("message store not configured")
	ErrMessageNotFound    = errors.New("message not found")
)

// MessageStore reads exported messages back.
type MessageStore interface {
	Get(ctx context.Context, channel string, id int64) (*models.ChannelMessage, error)
	List(ctx context.Context, channel string, limit int) ([]models.ChannelMessage, error)
	Count(ctx context.Context, channel string) (int64, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type namedCheck struct {
	name  string
	check HealthCheck
}

// Handler handles HTTP requests for collector service
type Handler struct {
	manager *ScrapeManager
	scraper *Scraper
	store   MessageStore
	checks  []namedCheck
	log     *logger.Logger
}

// NewHandler creates a new handler
func NewHandler(manager *ScrapeManager, scraper *Scraper, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Get()
	}
	return &Handler{
		manager: manager,
		scraper: scraper,
		log:     log,
	}
}

// SetStore enables the stored message endpoints.
func (h *Handler) SetStore(store MessageStore) {
	h.store = store
}

// AddHealthCheck registers a dependency reported by /health.
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.checks = append(h.checks, namedCheck{name: name, check: check})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.check(ctx); err != nil {
			h.log.Warn().Err(err).Str("check", c.name).Msg("health check failed")
			checks[c.name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[c.name] = "ok"
	}

	respondJSON(w, code, map[string]interface{}{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
		"checks": checks,
	})
}

// StoredMessages handles GET /api/v1/channels/{ref}/stored
func (h *Handler) StoredMessages(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, ErrStoreNotConfigured.Error())
		return
	}

	req, err := ParseQuery(chi.URLParam(r, "ref"), r.URL.Query().Get("limit"), "")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	channel := parser.ChannelHandle(req.Channel)
	total, err := h.store.Count(r.Context(), channel)
	if err != nil {
		h.log.Error().Err(err).Str("channel", channel).Msg("count stored messages")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	msgs, err := h.store.List(r.Context(), channel, req.Limit)
	if err != nil {
		h.log.Error().Err(err).Str("channel", channel).Msg("list stored messages")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"channel":  channel,
		"total":    total,
		"messages": msgs,
	})
}

// StoredMessage handles GET /api/v1/channels/{ref}/stored/{id}
func (h *Handler) StoredMessage(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, ErrStoreNotConfigured.Error())
		return
	}

	ref := chi.URLParam(r, "ref")
	if !ValidChannel(ref) {
		respondError(w, http.StatusBadRequest, ErrInvalidChannel.Error())
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}

	channel := parser.ChannelHandle(ref)
	msg, err := h.store.Get(r.Context(), channel, id)
	if err != nil {
		h.log.Error().Err(err).Str("channel", channel).Int64("id", id).Msg("get stored message")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msg == nil {
		respondError(w, http.StatusNotFound, ErrMessageNotFound.Error())
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

// ChannelInfo handles GET /api/v1/channels/{ref}/info
func (h *Handler) ChannelInfo(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	if !ValidChannel(ref) {
		respondError(w, http.StatusBadRequest, ErrInvalidChannel.Error())
		return
	}

	info, err := h.scraper.Info(r.Context(), ref)
	if err != nil {
		h.respondScrapeError(w, ref, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// ChannelMessages handles GET /api/v1/channels/{ref}/messages and streams
// one JSON record per line, newest first.
func (h *Handler) ChannelMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := ParseQuery(chi.URLParam(r, "ref"), q.Get("limit"), q.Get("until"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	written := 0

	for msg, err := range h.scraper.All(r.Context(), req.Options()) {
		if err != nil {
			if written == 0 {
				h.respondScrapeError(w, req.Channel, err)
				return
			}
			// headers are gone, the truncated body is all we can signal
			h.log.Error().Err(err).Str("channel", req.Channel).Int("written", written).Msg("message stream aborted")
			return
		}

		if written == 0 {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.WriteHeader(http.StatusOK)
		}
		if err := enc.Encode(msg); err != nil {
			h.log.Debug().Err(err).Str("channel", req.Channel).Msg("client went away")
			return
		}
		written++
		if flusher != nil {
			flusher.Flush()
		}
	}

	if written == 0 {
		respondError(w, http.StatusNotFound, ErrNotPublicChannel.Error())
	}
}

// StartScrape handles POST /api/v1/scrape
func (h *Handler) StartScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.manager.Start(r.Context(), req.Options())
	if err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.Info().Str("scrape_id", job.ID.String()).Str("channel", req.Channel).Msg("scrape job started")

	respondJSON(w, http.StatusAccepted, ScrapeResponse{
		ScrapeID:  job.ID,
		Status:    "running",
		Channel:   job.Options.Channel,
		StartedAt: job.StartedAt,
	})
}

// StopScrape handles DELETE /api/v1/scrape/current
func (h *Handler) StopScrape(w http.ResponseWriter, r *http.Request) {
	h.manager.Stop()
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "scrape job stopped",
	})
}

// Status handles GET /api/v1/scrape/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	current := h.manager.Current()
	if current == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status": "idle",
			"last":   h.manager.Last(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "running",
		"scrape_id":  current.ID.String(),
		"started_at": current.StartedAt.Format(time.RFC3339),
		"channel":    current.Options.Channel,
	})
}

func (h *Handler) respondScrapeError(w http.ResponseWriter, channel string, err error) {
	var structErr *parser.StructureError
	var netErr *telegram.NetworkError

	switch {
	case errors.As(err, &structErr):
		respondError(w, http.StatusNotFound, ErrNotPublicChannel.Error())
	case errors.As(err, &netErr):
		h.log.Warn().Err(err).Str("channel", channel).Msg("upstream fetch failed")
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		h.log.Error().Err(err).Str("channel", channel).Msg("scrape failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
