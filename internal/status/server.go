// Package status exposes quota usage over HTTP for external reporting.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/sheetsync/internal/infra/quota"
)

// Snapshotter returns the current quota status.
type Snapshotter interface {
	Status() quota.Status
}

// Server provides HTTP endpoints for quota reporting.
type Server struct {
	tracker Snapshotter
	server  *http.Server
}

// NewServer creates a new status server.
func NewServer(tracker Snapshotter, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		tracker: tracker,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type windowReport struct {
	Requests       int     `json:"requests"`
	Queries        *int    `json:"queries,omitempty"`
	Limit          int     `json:"limit"`
	WindowSeconds  float64 `json:"window_seconds"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

type dailyReport struct {
	Units        int64     `json:"units"`
	Limit        int64     `json:"limit"`
	UsagePercent float64   `json:"usage_percent"`
	LastReset    time.Time `json:"last_reset"`
}

type statusResponse struct {
	Drive  windowReport `json:"drive"`
	Sheets windowReport `json:"sheets"`
	Daily  dailyReport  `json:"daily"`
}

func newStatusResponse(st quota.Status) statusResponse {
	queries := st.DriveQueries
	return statusResponse{
		Drive: windowReport{
			Requests:       st.DriveRequests,
			Queries:        &queries,
			Limit:          st.Limits.DriveLimit,
			WindowSeconds:  st.Limits.DriveWindow.Seconds(),
			ElapsedSeconds: st.DriveWindowElapsed.Seconds(),
		},
		Sheets: windowReport{
			Requests:       st.SheetsRequests,
			Limit:          st.Limits.SheetsLimit,
			WindowSeconds:  st.Limits.SheetsWindow.Seconds(),
			ElapsedSeconds: st.SheetsWindowElapsed.Seconds(),
		},
		Daily: dailyReport{
			Units:        st.DailyUnits,
			Limit:        st.Limits.DailyLimit,
			UsagePercent: st.DailyUsagePercent,
			LastReset:    st.LastReset,
		},
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newStatusResponse(s.tracker.Status()))
}
