package webhook

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"statuspage-monitor/internal/config"
	"statuspage-monitor/internal/detect"
	"statuspage-monitor/internal/model"
)

// ProcessFunc runs an incident through the dedup/sink pipeline and
// reports whether a record was logged.
type ProcessFunc func(ctx context.Context, in model.Incident) (bool, error)

// Server is the event-driven counterpart of the feed poller: it
// accepts Statuspage webhook payloads and feeds them into the same
// pipeline.
type Server struct {
	det     *detect.Detector
	process ProcessFunc
	srv     *http.Server
}

type statuspagePayload struct {
	Page struct {
		ID                string `json:"id"`
		StatusIndicator   string `json:"status_indicator"`
		StatusDescription string `json:"status_description"`
	} `json:"page"`
	Incident *struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Status          string `json:"status"`
		Impact          string `json:"impact"`
		Shortlink       string `json:"shortlink"`
		IncidentUpdates []struct {
			Body      string `json:"body"`
			Status    string `json:"status"`
			CreatedAt string `json:"created_at"`
		} `json:"incident_updates"`
	} `json:"incident"`
}

func New(cfg config.WebhookConfig, det *detect.Detector, process ProcessFunc) *Server {
	s := &Server{det: det, process: process}
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc(cfg.Path, s.handleIncident).Methods(http.MethodPost)
	s.srv = &http.Server{
		Addr:         cfg.Listen,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Serve() error                       { return s.srv.ListenAndServe() }
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "status monitor is running"})
}

func (s *Server) handleIncident(w http.ResponseWriter, r *http.Request) {
	var p statuspagePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "invalid JSON"})
		return
	}
	if p.Incident == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "no incident object in payload"})
		return
	}
	in := p.Incident

	// Most recent update body; the updates arrive in chronological order.
	latestBody := ""
	ts := time.Now().UTC()
	if n := len(in.IncidentUpdates); n > 0 {
		latestBody = in.IncidentUpdates[n-1].Body
		if t, err := dateparse.ParseAny(in.IncidentUpdates[n-1].CreatedAt); err == nil {
			ts = t.UTC()
		}
	}
	if latestBody == "" {
		status := in.Status
		if status == "" {
			status = "unknown"
		}
		latestBody = "Incident status: " + status
	}

	combined := in.Name + " " + latestBody
	product, _ := s.det.Detect(combined)

	statusDesc := p.Page.StatusDescription
	if statusDesc == "" && in.Impact != "" {
		statusDesc = capitalize(in.Impact) + " impact"
	}
	if statusDesc == "" {
		statusDesc = capitalize(in.Status)
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	rec := model.Incident{
		ID:       id,
		Source:   "webhook",
		Product:  product,
		Title:    in.Name,
		Status:   statusDesc + " - " + latestBody,
		URL:      in.Shortlink,
		Detected: ts,
		Labels: map[string]string{
			"severity": detect.Severity(combined + " " + statusDesc),
		},
	}
	if in.Impact != "" {
		rec.Labels["impact"] = in.Impact
	}

	logged, err := s.process(r.Context(), rec)
	if err != nil {
		log.Printf("webhook: process incident %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "failed to record incident"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "logged": logged, "product": product})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
