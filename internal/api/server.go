// Package api serves the scrape-and-publish flow over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chitechevents/eventsync/internal/logger"
	"github.com/chitechevents/eventsync/internal/metrics"
	"github.com/chitechevents/eventsync/internal/pipeline"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	runner     *pipeline.Runner
	delivery   *pipeline.Delivery
	metrics    *metrics.Metrics
	log        *logger.Logger
	router     http.Handler
	httpServer *http.Server
}

// NewServer creates a server. delivery may be nil, in which case events are
// scraped and returned but not published or saved.
func NewServer(runner *pipeline.Runner, delivery *pipeline.Delivery, m *metrics.Metrics, log *logger.Logger) *Server {
	if delivery == nil {
		delivery = &pipeline.Delivery{}
	}
	if log == nil {
		log = logger.Default()
	}
	s := &Server{
		runner:   runner,
		delivery: delivery,
		metrics:  m,
		log:      log,
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on port until Shutdown is called.
func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// Scraping and publishing one event can take a while
		WriteTimeout: 2 * time.Minute,
	}
	s.log.Info("Starting API server", logger.Fields{"port": port})
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
