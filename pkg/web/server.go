// Package web serves the read model and the manual meter reading endpoint.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/vgmeter/controller/pkg/meter"
)

type Server struct {
	coordinator *meter.Coordinator
	mux         *http.ServeMux
}

func New(coordinator *meter.Coordinator) *Server {
	s := &Server{
		coordinator: coordinator,
		mux:         http.NewServeMux(),
	}
	s.mux.HandleFunc("/api/v1/meter", s.handleMeter)
	s.mux.HandleFunc("/api/v1/reading", s.handleReading)
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.Handle("/metrics", promhttp.Handler())
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleMeter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.coordinator.CurrentReading())
}

type readingRequest struct {
	MeterReading           *float64   `json:"meter_reading"`
	Timestamp              *time.Time `json:"timestamp,omitempty"`
	RecalculateAverageRate *bool      `json:"recalculate_average_rate,omitempty"`
}

func (s *Server) handleReading(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req := readingRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	if req.MeterReading == nil {
		writeError(w, http.StatusBadRequest, "meter_reading is required")
		return
	}
	if *req.MeterReading < 0 {
		writeError(w, http.StatusBadRequest, "meter_reading must be >= 0")
		return
	}

	ts := time.Now()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	recalculate := true
	if req.RecalculateAverageRate != nil {
		recalculate = *req.RecalculateAverageRate
	}

	err := s.coordinator.ApplyReading(r.Context(), *req.MeterReading, ts, recalculate)
	if errors.Is(err, meter.ErrReadingDecreased) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

type errorJSON struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	if err := writeJSON(w, status, errorJSON{Error: msg}); err != nil {
		logrus.Errorf("error writing response: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
