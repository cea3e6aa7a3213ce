package collector

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new chi router with all collector endpoints
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()

	// middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// basic cors
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS", "DELETE"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	// health check
	r.Get("/health", handler.Health)

	// api v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// read-through channel endpoints
		r.Get("/channels/{ref}/info", handler.ChannelInfo)
		r.Get("/channels/{ref}/messages", handler.ChannelMessages)

		// messages kept by the database sink
		r.Get("/channels/{ref}/stored", handler.StoredMessages)
		r.Get("/channels/{ref}/stored/{id}", handler.StoredMessage)

		// export jobs
		r.Post("/scrape", handler.StartScrape)
		r.Delete("/scrape/current", handler.StopScrape)
		r.Get("/scrape/status", handler.Status)
	})

	return r
}
