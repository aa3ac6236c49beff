package api

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"pos-terminal-session/internal/terminal"
)

var serviceStartTime = time.Now() // Track service uptime

// resultPayload is the wire shape for every controller-backed endpoint. It
// mirrors the Result union: exactly one of data or error is set.
type resultPayload struct {
	Success bool                    `json:"success"`
	Data    interface{}             `json:"data,omitempty"`
	Error   *terminal.TerminalError `json:"error,omitempty"`
}

func writeOK(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resultPayload{Success: true, Data: data})
}

func writeErr(w http.ResponseWriter, terr *terminal.TerminalError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = json.NewEncoder(w).Encode(resultPayload{Success: false, Error: terr})
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Only GET method is allowed", http.StatusMethodNotAllowed)
		return
	}
	writeOK(w, s.Session.Store.Snapshot())
}

// connectHandler runs the full connect composition. When a reader_id is
// supplied it connects to that reader from the discovered set instead of the
// first one.
func (s *Server) connectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ReaderID string `json:"reader_id"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // empty body is fine
	}

	if req.ReaderID == "" {
		res := s.Session.Connection.ConnectAndInitialize(r.Context())
		if !res.Success {
			writeErr(w, res.Err)
			return
		}
		writeOK(w, res.Data)
		return
	}

	if init := s.Session.Connection.Initialize(r.Context()); !init.Success {
		writeErr(w, init.Err)
		return
	}
	discovered := s.Session.Connection.DiscoverReaders(r.Context())
	if !discovered.Success {
		writeErr(w, discovered.Err)
		return
	}
	for _, reader := range discovered.Data {
		if reader.ID == req.ReaderID {
			res := s.Session.Connection.ConnectReader(r.Context(), reader)
			if !res.Success {
				writeErr(w, res.Err)
				return
			}
			writeOK(w, res.Data)
			return
		}
	}
	writeErr(w, terminal.NewError(terminal.CodeNoReadersFound, "reader "+req.ReaderID+" not found"))
}

func (s *Server) discoverHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	if init := s.Session.Connection.Initialize(r.Context()); !init.Success {
		writeErr(w, init.Err)
		return
	}
	res := s.Session.Connection.DiscoverReaders(r.Context())
	if !res.Success {
		writeErr(w, res.Err)
		return
	}
	writeOK(w, res.Data)
}

func (s *Server) disconnectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	res := s.Session.Connection.Disconnect(r.Context())
	if !res.Success {
		writeErr(w, res.Err)
		return
	}
	writeOK(w, res.Data)
}

// paymentHandler runs the whole charge flow and blocks until it resolves.
// The collection window is bounded by the configured collect timeout, so the
// request cannot hang past that.
func (s *Server) paymentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		writeErr(w, terminal.NewError(terminal.CodePaymentIntentFailed, "amount must be positive"))
		return
	}

	res := s.Session.Payment.Charge(r.Context(), req.Amount, req.Currency, s.Options.CollectTimeout())
	if !res.Success {
		writeErr(w, res.Err)
		return
	}
	writeOK(w, res.Data)
}

func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	cancelled := s.Session.Payment.CancelCollection()
	writeOK(w, map[string]bool{"cancelled": cancelled})
}

func (s *Server) recentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Only GET method is allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Records == nil {
		writeErr(w, terminal.NewError(terminal.CodeConfigInvalid, "attempt records are not enabled"))
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var err error
	var attempts interface{}
	if readerID := r.URL.Query().Get("reader"); readerID != "" {
		attempts, err = s.Records.RecentForReader(readerID, limit)
	} else {
		attempts, err = s.Records.Recent(limit)
	}
	if err != nil {
		s.Logger.Errorf("Failed to read payment attempts: %v", err)
		http.Error(w, "Failed to retrieve attempts", http.StatusInternalServerError)
		return
	}
	writeOK(w, attempts)
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	var dbMetrics map[string]interface{}
	if s.Records != nil {
		keys, size := s.Records.Stats()
		dbMetrics = map[string]interface{}{
			"total_attempts": keys,
			"size_mb":        size / 1024 / 1024,
			"status":         "ok",
		}
		if j := s.Records.Journal(); j != nil {
			dbMetrics["journal"] = j.Stats()
		}
	} else {
		dbMetrics = map[string]interface{}{
			"status": "not_initialized",
		}
	}

	snap := s.Session.Store.Snapshot()
	sessionMetrics := map[string]interface{}{
		"initialized":       snap.Initialized,
		"connected":         snap.Connected,
		"available_readers": len(snap.AvailableReaders),
	}
	if snap.CurrentReader != nil {
		sessionMetrics["current_reader"] = snap.CurrentReader.ID
	}

	hostname, _ := os.Hostname()

	response := map[string]interface{}{
		"service": map[string]interface{}{
			"uptime_seconds": time.Since(serviceStartTime).Seconds(),
			"pid":            os.Getpid(),
			"hostname":       hostname,
		},
		"session":   sessionMetrics,
		"database":  dbMetrics,
		"timestamp": time.Now(),
	}

	_ = json.NewEncoder(w).Encode(response)
	s.Logger.Info("Served metrics")
}

// configHandler exposes the resolved options for debugging. The backend URL
// is included; nothing here is a secret.
func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"base_url":           s.Options.BaseURL,
		"currency":           s.Options.Currency,
		"http_timeout_ms":    s.Options.HTTPTimeoutMS,
		"collect_timeout_ms": s.Options.CollectTimeoutMS,
		"reader_adapter":     s.Options.ReaderAdapter,
	})
}
