package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/judev34/parking-montpellier-app/internal/catalog"
	"github.com/judev34/parking-montpellier-app/internal/model"
	"github.com/judev34/parking-montpellier-app/internal/observability"
	"github.com/judev34/parking-montpellier-app/internal/opendata"
)

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument wraps a handler with the per-route metrics the dashboards key on.
func instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

type listResponse struct {
	Data        []model.RankedRecord `json:"data"`
	LastUpdated time.Time            `json:"lastUpdated"`
	Error       string               `json:"error,omitempty"`
}

func handleList(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := store.Snapshot()
		writeJSON(w, http.StatusOK, listResponse{
			Data:        store.SortedView(),
			LastUpdated: snap.LastUpdated,
			Error:       snap.ErrorMessage,
		})
	}
}

type detailsResponse struct {
	Parking *model.ParkingRecord `json:"parking"`
	History *model.TimeSeries    `json:"history,omitempty"`
}

func handleDetails(logger *slog.Logger, store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := store.LoadDetails(r.Context(), id); err != nil {
			switch {
			case errors.Is(err, opendata.ErrNotFound):
				writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown parking: " + id})
			case errors.Is(err, opendata.ErrTransport):
				writeJSON(w, http.StatusBadGateway, errorResponse{Error: "open-data platform unreachable"})
			default:
				logger.ErrorContext(r.Context(), "details load failed", "id", id, "err", err)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			}
			return
		}
		snap := store.Snapshot()
		writeJSON(w, http.StatusOK, detailsResponse{Parking: snap.Selected, History: snap.History})
	}
}

func handleHistory(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period, err := model.ParsePeriod(r.URL.Query().Get("period"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		id := chi.URLParam(r, "id")
		interval := r.URL.Query().Get("interval")
		writeJSON(w, http.StatusOK, store.LoadHistory(r.Context(), id, period, interval))
	}
}

func handleFilters(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update model.FilterUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed filter update: " + err.Error()})
			return
		}
		store.SetFilters(update)
		writeJSON(w, http.StatusOK, store.Snapshot().Filters)
	}
}

type positionRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func handlePosition(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var pos positionRequest
		if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed position: " + err.Error()})
			return
		}
		if pos.Latitude < -90 || pos.Latitude > 90 || pos.Longitude < -180 || pos.Longitude > 180 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "position out of range"})
			return
		}
		store.UpdateUserPosition(pos.Latitude, pos.Longitude)
		w.WriteHeader(http.StatusNoContent)
	}
}
