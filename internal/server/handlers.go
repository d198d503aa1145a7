package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/doughall/hostpulse/internal/export"
	"github.com/doughall/hostpulse/internal/snapshot"
)

// defaultLogLines is how many journal lines /api/logs returns when the
// client does not ask for a specific count.
const defaultLogLines = 200

// writeJSON writes v as a JSON response body.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", slog.String("error", err.Error()))
	}
}

// writeError writes a JSON error body.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// handleStats serves the current reading with the live (top-5)
// process view.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.source.Build(r.Context())
	if err != nil {
		s.logger.Error("stats build failed", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "failed to collect metrics")
		return
	}
	s.writeJSON(w, http.StatusOK, stats.LiveView())
}

// handleProcesses serves a fresh top-consumer process list.
func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	procs, err := s.source.TopProcesses(r.Context(), snapshot.LiveTopK)
	if err != nil {
		s.logger.Error("process query failed", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "failed to query processes")
		return
	}
	s.writeJSON(w, http.StatusOK, procs)
}

// handleLogs tails the metrics journal. The n parameter is parsed
// permissively: absent, unparsable, or non-positive values fall back
// to the default.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	n := defaultLogLines
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}

	lines, err := s.journal.Tail(n)
	if err != nil {
		s.logger.Error("journal tail failed", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	s.writeJSON(w, http.StatusOK, lines)
}

// handleSnapshot builds one reading and streams it as a CSV or PDF
// attachment. The fmt parameter selects the format; anything other
// than pdf gets the csv default.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("fmt")
	if format != "pdf" {
		format = "csv"
	}

	stats, err := s.source.Build(r.Context())
	if err != nil {
		s.logger.Error("snapshot build failed", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "failed to collect metrics")
		return
	}

	// Render to a buffer first so a mid-render failure can still
	// produce a clean error response.
	var buf bytes.Buffer
	switch format {
	case "csv":
		err = export.WriteCSV(&buf, stats)
		w.Header().Set("Content-Type", "text/csv")
	case "pdf":
		err = export.WritePDF(&buf, stats)
		w.Header().Set("Content-Type", "application/pdf")
	}
	if err != nil {
		s.logger.Error("snapshot render failed",
			slog.String("format", format),
			slog.String("error", err.Error()),
		)
		s.writeError(w, http.StatusInternalServerError, "failed to render snapshot")
		return
	}

	filename := fmt.Sprintf("hostpulse-%s.%s",
		stats.Timestamp.UTC().Format("20060102-150405"), format)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("snapshot write failed", slog.String("error", err.Error()))
	}
}

// handleGetThresholds serves the current alert thresholds.
func (s *Server) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Get())
}

// handleUpdateThresholds merges a partial threshold update and returns
// the resulting configuration. Unknown and non-numeric fields are
// ignored rather than rejected.
func (s *Server) handleUpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cfg, err := s.store.Update(patch)
	if err != nil {
		s.logger.Error("threshold update failed", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "failed to persist thresholds")
		return
	}
	s.logger.Info("thresholds updated",
		slog.Float64("cpu", cfg.CPU),
		slog.Float64("ram", cfg.RAM),
		slog.Float64("battery", cfg.Battery),
	)
	s.writeJSON(w, http.StatusOK, cfg)
}

// handleIndex serves the embedded dashboard page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, "index.html", time.Time{}, bytes.NewReader(indexPage))
}
