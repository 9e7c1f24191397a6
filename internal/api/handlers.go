package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/sectional/internal/airports"
	"github.com/yegors/sectional/internal/config"
	"github.com/yegors/sectional/internal/display"
	"github.com/yegors/sectional/internal/metar"
	"github.com/yegors/sectional/internal/websocket"
	"github.com/yegors/sectional/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	metarService *metar.Service
	catalog      *airports.Catalog
	palette      *display.Palette
	config       *config.Config
	logger       *logger.Logger
	wsServer     *websocket.Server

	// Snapshot restored from storage at startup, served until the first
	// live cycle completes.
	restoredRecords map[string]metar.RatingRecord
	restoredAt      time.Time
}

// NewHandler creates a new API handler
func NewHandler(metarService *metar.Service, catalog *airports.Catalog, palette *display.Palette, config *config.Config, logger *logger.Logger, wsServer *websocket.Server) *Handler {
	return &Handler{
		metarService: metarService,
		catalog:      catalog,
		palette:      palette,
		config:       config,
		logger:       logger.Named("api-handler"),
		wsServer:     wsServer,
	}
}

// SetRestoredSnapshot installs the persisted ratings served before the first
// live cycle completes.
func (h *Handler) SetRestoredSnapshot(records map[string]metar.RatingRecord, at time.Time) {
	h.restoredRecords = records
	h.restoredAt = at
}

// RatingEntry is the API shape of one airport's rating.
type RatingEntry struct {
	Airport     string            `json:"airport"`
	Category    string            `json:"category"`
	Source      string            `json:"source,omitempty"`
	Color       display.Color     `json:"color"`
	Name        string            `json:"name,omitempty"`
	Diagnostics map[string]string `json:"diagnostics,omitempty"`
}

// RatingsResponse is the payload of GET /api/ratings.
type RatingsResponse struct {
	Ratings   []RatingEntry  `json:"ratings"`
	Counts    map[string]int `json:"counts"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
	Restored  bool           `json:"restored,omitempty"`
}

// currentRecords returns the ratings to serve: the latest live cycle when one
// has completed, the restored snapshot otherwise.
func (h *Handler) currentRecords() (map[string]metar.RatingRecord, time.Time, bool) {
	if cycle := h.metarService.LatestNoWait(); cycle != nil {
		return cycle.Records, cycle.StartedAt, false
	}
	if h.restoredRecords != nil {
		return h.restoredRecords, h.restoredAt, true
	}
	return nil, time.Time{}, false
}

// GetRatings returns the rating for every configured airport in display order.
func (h *Handler) GetRatings(w http.ResponseWriter, r *http.Request) {
	records, updatedAt, restored := h.currentRecords()

	response := RatingsResponse{
		Ratings:  make([]RatingEntry, 0, len(h.catalog.IDs())),
		Counts:   make(map[string]int),
		Restored: restored,
	}
	if !updatedAt.IsZero() {
		response.UpdatedAt = &updatedAt
	}

	for _, id := range h.catalog.Fetchable() {
		entry := RatingEntry{Airport: id, Category: string(metar.CategoryNoWx)}
		if record, ok := records[id]; ok {
			entry.Category = string(record.Category)
			entry.Source = string(record.Source)
			entry.Diagnostics = record.Diagnostics
		}
		entry.Color = h.palette.ColorFor(metar.Category(entry.Category))
		if info, ok := h.catalog.Info(id); ok {
			entry.Name = info.Name
		}
		response.Ratings = append(response.Ratings, entry)
		response.Counts[entry.Category]++
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetRating returns the rating for a single airport.
func (h *Handler) GetRating(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Airport identifier is required", http.StatusBadRequest)
		return
	}

	records, _, _ := h.currentRecords()
	record, ok := records[id]
	if !ok {
		http.Error(w, "Airport not found", http.StatusNotFound)
		return
	}

	entry := RatingEntry{
		Airport:     record.Airport,
		Category:    string(record.Category),
		Source:      string(record.Source),
		Color:       h.palette.ColorFor(record.Category),
		Diagnostics: record.Diagnostics,
	}
	if info, ok := h.catalog.Info(id); ok {
		entry.Name = info.Name
	}

	WriteJSON(w, http.StatusOK, entry)
}

// GetColors returns the category-to-color palette.
func (h *Handler) GetColors(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.palette.All())
}

// GetStatus returns service health and the latest cycle summary.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"started":    h.metarService.IsStarted(),
		"ws_clients": h.wsServer.ClientCount(),
		"airports":   len(h.catalog.Fetchable()),
	}

	if cycle := h.metarService.LatestNoWait(); cycle != nil {
		status["last_cycle"] = map[string]any{
			"started_at":  cycle.StartedAt,
			"duration_ms": cycle.Duration.Milliseconds(),
			"counts":      cycle.CountByCategory(),
		}
	} else if h.restoredRecords != nil {
		status["restored_snapshot_at"] = h.restoredAt
	}

	WriteJSON(w, http.StatusOK, status)
}

// PostRefresh triggers an immediate rating cycle outside the regular interval.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	h.metarService.RefreshNow()
	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "refresh triggered",
	})
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
