package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mobitrack/fleet-monitor/internal/fleet"
	"github.com/mobitrack/fleet-monitor/internal/panels"
	"github.com/mobitrack/fleet-monitor/internal/retrans"
	"github.com/mobitrack/fleet-monitor/internal/routes"
	"github.com/mobitrack/fleet-monitor/internal/stats"
	"github.com/mobitrack/fleet-monitor/internal/types"
)

// RouteSource supplies recorded route samples for the playback endpoints.
type RouteSource interface {
	RoutePoints(ctx context.Context, q types.RouteQuery) ([]types.RoutePoint, error)
}

// Server is the HTTP/WebSocket read surface for the dashboard.
type Server struct {
	store    *fleet.Store
	monitor  *retrans.Monitor
	routeSrc RouteSource
	panels   *panels.Manager
	stats    *stats.Stats
	hub      *Hub
}

// NewServer creates the API server over its collaborators. Any collaborator
// may be nil; its endpoints then answer 503.
func NewServer(store *fleet.Store, monitor *retrans.Monitor, routeSrc RouteSource, panelMgr *panels.Manager, st *stats.Stats, hub *Hub) *Server {
	return &Server{
		store:    store,
		monitor:  monitor,
		routeSrc: routeSrc,
		panels:   panelMgr,
		stats:    st,
		hub:      hub,
	}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/vehicles", s.handleVehicles)
		r.Get("/vehicles/{id}", s.handleVehicle)
		r.Get("/retransmissions", s.handleRetransmissions)
		r.Get("/retransmissions/stats", s.handleRetransmissionStats)
		r.Put("/retransmissions/{id}/comment", s.handleUpdateComment)
		r.Get("/routes", s.handleRoutes)
		r.Get("/stats", s.handleStats)

		r.Route("/panels", func(r chi.Router) {
			r.Get("/", s.handlePanels)
			r.Post("/", s.handleAddPanel)
			r.Put("/order", s.handleReorderPanels)
			r.Delete("/{id}", s.handleRemovePanel)
		})
	})
	if s.hub != nil {
		r.Get("/ws", s.hub.ServeWS)
	}

	return r
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "vehicle store not available")
		return
	}
	writeJSON(w, http.StatusOK, s.store.List())
}

func (s *Server) handleVehicle(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "vehicle store not available")
		return
	}
	id := chi.URLParam(r, "id")
	vehicle, ok := s.store.Vehicle(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("vehicle %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

func (s *Server) handleRetransmissions(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "retransmission monitor not available")
		return
	}
	writeJSON(w, http.StatusOK, s.monitor.Records())
}

func (s *Server) handleRetransmissionStats(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "retransmission monitor not available")
		return
	}
	writeJSON(w, http.StatusOK, s.monitor.Stats())
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "retransmission monitor not available")
		return
	}

	var body struct {
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	record, err := s.monitor.UpdateComment(r.Context(), id, body.Comment)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	if s.routeSrc == nil {
		writeError(w, http.StatusServiceUnavailable, "route source not available")
		return
	}

	query := types.RouteQuery{Plate: r.URL.Query().Get("plate")}
	var parseErrs []routes.FieldError
	if v := r.URL.Query().Get("start_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			parseErrs = append(parseErrs, routes.FieldError{Field: "StartDate", Message: "invalid date format"})
		} else {
			query.StartDate = t
		}
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			parseErrs = append(parseErrs, routes.FieldError{Field: "EndDate", Message: "invalid date format"})
		} else {
			query.EndDate = t
		}
	}

	if errs := append(parseErrs, routes.ValidateRouteParams(query)...); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": errs})
		return
	}

	points, err := s.routeSrc.RoutePoints(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to load route")
		return
	}

	route := types.HistoricalRoute{
		VehiclePlate: query.Plate,
		StartDate:    query.StartDate,
		Points:       points,
		Stats:        routes.ComputeStats(points),
	}

	format := r.URL.Query().Get("format")
	if format == "" || format == routes.FormatJSON {
		writeJSON(w, http.StatusOK, route)
		return
	}

	data, err := routes.Export(route, format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch format {
	case routes.FormatGPX:
		w.Header().Set("Content-Type", "application/gpx+xml")
	case routes.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s_route.%s", query.Plate, format))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("Warning: failed to write export response: %v", err)
	}
}

func (s *Server) handlePanels(w http.ResponseWriter, r *http.Request) {
	if s.panels == nil {
		writeError(w, http.StatusServiceUnavailable, "panel manager not available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"panels": s.panels.Panels(),
		"grid":   s.panels.Grid(),
	})
}

func (s *Server) handleAddPanel(w http.ResponseWriter, r *http.Request) {
	if s.panels == nil {
		writeError(w, http.StatusServiceUnavailable, "panel manager not available")
		return
	}

	var body struct {
		VehicleID string `json:"vehicle_id"`
		Label     string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.VehicleID == "" {
		writeError(w, http.StatusBadRequest, "vehicle_id is required")
		return
	}

	panel, ok := s.panels.AddPanel(r.Context(), body.VehicleID, body.Label)
	if !ok {
		writeError(w, http.StatusConflict, "panel rejected: duplicate vehicle or grid full")
		return
	}
	writeJSON(w, http.StatusCreated, panel)
}

func (s *Server) handleReorderPanels(w http.ResponseWriter, r *http.Request) {
	if s.panels == nil {
		writeError(w, http.StatusServiceUnavailable, "panel manager not available")
		return
	}

	var body struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !s.panels.Reorder(r.Context(), body.From, body.To) {
		writeError(w, http.StatusBadRequest, "reorder indexes out of range")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"panels": s.panels.Panels(),
		"grid":   s.panels.Grid(),
	})
}

func (s *Server) handleRemovePanel(w http.ResponseWriter, r *http.Request) {
	if s.panels == nil {
		writeError(w, http.StatusServiceUnavailable, "panel manager not available")
		return
	}

	id := chi.URLParam(r, "id")
	if !s.panels.RemovePanel(r.Context(), id) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("panel %s not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "stats not available")
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
