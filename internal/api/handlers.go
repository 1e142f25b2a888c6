package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/chitechevents/eventsync/internal/calendar"
	"github.com/chitechevents/eventsync/internal/event"
	"github.com/chitechevents/eventsync/internal/fetch"
	"github.com/chitechevents/eventsync/internal/logger"
	"github.com/chitechevents/eventsync/internal/reconcile"
	"github.com/chitechevents/eventsync/internal/scraper"
)

type addEventRequest struct {
	EventURL string `json:"event_url"`
}

type addEventResponse struct {
	Status       string       `json:"status"`
	EventDetails event.Record `json:"event_details"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Event Scraper API",
		"endpoints": map[string]interface{}{
			"add_event":         "/add_event",
			"health":            "/api/health",
			"metrics":           "/metrics",
			"supported_sources": s.runner.Registry.Sources(),
		},
	})
}

// handleAddEvent scrapes event_url (JSON or form body), publishes and saves
// the record and returns it.
func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	eventURL, err := readEventURL(r)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if eventURL == "" {
		s.respondWithError(w, http.StatusBadRequest, "No event URL provided", nil)
		return
	}

	rec, err := s.runner.ScrapeURL(r.Context(), eventURL)
	if err != nil {
		s.log.Warn("Could not scrape event", logger.Fields{"url": eventURL, "error": err.Error()})
		switch {
		case errors.Is(err, scraper.ErrUnsupportedSource):
			s.respondWithError(w, http.StatusUnprocessableEntity, "Unsupported event source", map[string]string{"url": eventURL})
		case errors.Is(err, fetch.ErrFetch):
			s.respondWithError(w, http.StatusBadGateway, "Could not fetch event page", map[string]string{"url": eventURL})
		default:
			s.respondWithError(w, http.StatusUnprocessableEntity, "Could not process event", map[string]string{"url": eventURL})
		}
		return
	}

	if err := s.delivery.PublishRecord(r.Context(), rec); err != nil {
		s.log.Error("Failed to publish event", logger.Fields{"url": eventURL}, err)
		var ve *calendar.ValidationError
		if errors.As(err, &ve) {
			s.respondWithError(w, http.StatusUnprocessableEntity, "Event failed validation", map[string]string{"url": eventURL, "details": ve.Error()})
			return
		}
		s.respondWithError(w, http.StatusBadGateway, "Could not publish event", map[string]string{"url": eventURL})
		return
	}

	if s.delivery.Store != nil {
		if _, err := s.delivery.Store.UpsertEvents(r.Context(), []reconcile.Row{reconcile.RowFromRecord(rec)}); err != nil {
			s.log.Error("Failed to save event", logger.Fields{"url": eventURL}, err)
			s.respondWithError(w, http.StatusInternalServerError, "Internal server error", nil)
			return
		}
	}

	s.respondWithJSON(w, http.StatusOK, addEventResponse{Status: "success", EventDetails: rec})
}

func readEventURL(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req addEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", err
		}
		return strings.TrimSpace(req.EventURL), nil
	}
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return strings.TrimSpace(r.PostForm.Get("event_url")), nil
}

// pinger is implemented by stores backed by a server.
type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := map[string]string{"status": "healthy"}
	if p, ok := s.delivery.Store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			s.log.Error("Health check failed for store", nil, err)
			healthStatus["status"] = "unhealthy"
			healthStatus["store"] = "unhealthy"
			s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
			return
		}
		healthStatus["store"] = "healthy"
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, extra map[string]string) {
	payload := map[string]string{"error": message}
	for k, v := range extra {
		payload[k] = v
	}
	s.respondWithJSON(w, code, payload)
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("Failed to encode response", nil, err)
		code = http.StatusInternalServerError
		response = []byte(`{"error":"Internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response) // nolint:errcheck
}
