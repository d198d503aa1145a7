// HTTP surface tests against httptest with a scripted snapshot source.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/doughall/hostpulse/internal/alerts"
	"github.com/doughall/hostpulse/internal/journal"
	"github.com/doughall/hostpulse/internal/snapshot"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	stats   *snapshot.Stats
	err     error
	procs   []snapshot.ProcessSample
	procErr error
}

func (f *fakeSource) Build(ctx context.Context) (*snapshot.Stats, error) {
	return f.stats, f.err
}

func (f *fakeSource) TopProcesses(ctx context.Context, n int) ([]snapshot.ProcessSample, error) {
	if f.procErr != nil {
		return nil, f.procErr
	}
	if n > len(f.procs) {
		n = len(f.procs)
	}
	return f.procs[:n], nil
}

func sampleStats() *snapshot.Stats {
	battery := 81.0
	charging := true
	procs := make([]snapshot.ProcessSample, 0, snapshot.ExportTopK)
	for i := 0; i < snapshot.ExportTopK; i++ {
		procs = append(procs, snapshot.ProcessSample{
			PID:        int32(100 + i),
			Name:       "proc",
			CPUPercent: float64(50 - i),
			MemPercent: 1,
		})
	}
	return &snapshot.Stats{
		Timestamp:      time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC),
		CPUPercent:     12.34,
		RAMPercent:     56.78,
		BatteryPercent: &battery,
		Charging:       &charging,
		TopProcesses:   procs,
	}
}

// newTestServer wires a server over temp-dir state and serves its mux
// from httptest.
func newTestServer(t *testing.T, source SnapshotSource) (*Server, *httptest.Server) {
	t.Helper()

	dir := t.TempDir()
	store, err := alerts.NewStore(filepath.Join(dir, "thresholds.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	j := journal.New(filepath.Join(dir, "metrics.log"), nopLogger())
	s := New("127.0.0.1:0", source, j, store, NewHub(nopLogger()), nopLogger())

	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestStatsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, &fakeSource{stats: sampleStats()})

	var got snapshot.Stats
	resp := getJSON(t, ts.URL+"/api/stats", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if got.CPUPercent != 12.34 || got.RAMPercent != 56.78 {
		t.Errorf("stats payload: %+v", got)
	}
	if got.BatteryPercent == nil || *got.BatteryPercent != 81 {
		t.Errorf("battery: %v", got.BatteryPercent)
	}
	// The live view trims the process list.
	if len(got.TopProcesses) != snapshot.LiveTopK {
		t.Errorf("live processes: got %d, want %d", len(got.TopProcesses), snapshot.LiveTopK)
	}
}

func TestStatsEndpointBuildFailure(t *testing.T) {
	_, ts := newTestServer(t, &fakeSource{err: errors.New("sensors down")})

	var body map[string]string
	resp := getJSON(t, ts.URL+"/api/stats", &body)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if body["error"] == "" {
		t.Errorf("expected error body, got %v", body)
	}
}

func TestProcessesEndpoint(t *testing.T) {
	src := &fakeSource{procs: sampleStats().TopProcesses}
	_, ts := newTestServer(t, src)

	var got []snapshot.ProcessSample
	resp := getJSON(t, ts.URL+"/api/processes", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if len(got) != snapshot.LiveTopK {
		t.Errorf("processes: got %d, want %d", len(got), snapshot.LiveTopK)
	}
}

func TestLogsEndpoint(t *testing.T) {
	s, ts := newTestServer(t, &fakeSource{stats: sampleStats()})

	t.Run("empty journal returns empty array", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/logs")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if strings.TrimSpace(string(body)) != "[]" {
			t.Errorf("empty journal body: %q", body)
		}
	})

	for i := 0; i < 5; i++ {
		if err := s.journal.Append(sampleStats()); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("n limits the tail", func(t *testing.T) {
		var lines []string
		getJSON(t, ts.URL+"/api/logs?n=3", &lines)
		if len(lines) != 3 {
			t.Errorf("lines: got %d, want 3", len(lines))
		}
	})

	t.Run("bad n falls back to default", func(t *testing.T) {
		var lines []string
		resp := getJSON(t, ts.URL+"/api/logs?n=banana", &lines)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status: %d", resp.StatusCode)
		}
		if len(lines) != 5 {
			t.Errorf("lines: got %d, want 5", len(lines))
		}
	})
}

func TestSnapshotExportEndpoint(t *testing.T) {
	_, ts := newTestServer(t, &fakeSource{stats: sampleStats()})

	t.Run("csv is the default", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/snapshot")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
			t.Errorf("content type: %q", ct)
		}
		if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, ".csv") {
			t.Errorf("disposition: %q", cd)
		}
		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), "cpuPercent") {
			t.Errorf("csv body missing header: %q", body)
		}
	})

	t.Run("pdf", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/snapshot?fmt=pdf")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("content type: %q", ct)
		}
		body, _ := io.ReadAll(resp.Body)
		if !bytes.HasPrefix(body, []byte("%PDF-")) {
			t.Errorf("pdf body prefix: %q", body[:min(8, len(body))])
		}
	})

	t.Run("unknown format falls back to csv", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/snapshot?fmt=xml")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status: %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
			t.Errorf("content type: %q", ct)
		}
	})
}

func TestThresholdEndpoints(t *testing.T) {
	_, ts := newTestServer(t, &fakeSource{stats: sampleStats()})

	var cfg alerts.Config
	getJSON(t, ts.URL+"/api/thresholds", &cfg)
	if cfg != alerts.DefaultConfig {
		t.Fatalf("initial thresholds: %+v", cfg)
	}

	// Partial update: only cpu changes, junk fields are ignored.
	patch := `{"cpu": 75, "battery": "low", "bogus": 1}`
	resp, err := http.Post(ts.URL+"/api/thresholds", "application/json", strings.NewReader(patch))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.CPU != 75 || cfg.RAM != alerts.DefaultConfig.RAM || cfg.Battery != alerts.DefaultConfig.Battery {
		t.Errorf("merged thresholds: %+v", cfg)
	}

	t.Run("invalid body rejected", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/thresholds", "application/json", strings.NewReader("{nope"))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status: %d", resp.StatusCode)
		}
	})
}

func TestIndexPage(t *testing.T) {
	_, ts := newTestServer(t, &fakeSource{stats: sampleStats()})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "HostPulse") {
		t.Error("index page missing title")
	}
}

func TestWebsocketBroadcast(t *testing.T) {
	s, ts := newTestServer(t, &fakeSource{stats: sampleStats()})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Registration happens in the handler just after the handshake;
	// wait for it before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("clients: got %d, want 1", s.hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.hub.Broadcast(sampleStats().LiveView())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got snapshot.Stats
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("broadcast payload: %v", err)
	}
	if got.CPUPercent != 12.34 || len(got.TopProcesses) != snapshot.LiveTopK {
		t.Errorf("broadcast stats: %+v", got)
	}
}
