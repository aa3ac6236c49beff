// Package api is the HTTP surface the UI layer talks to. Handlers translate
// controller Results into JSON verbatim, so the UI sees the same
// success/error union the controllers return.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/eencloud/goeen/log"

	"pos-terminal-session/internal/records"
	"pos-terminal-session/internal/session"
	"pos-terminal-session/internal/settings"
)

// Server handles HTTP communication from the UI layer.
type Server struct {
	*http.Server
	Logger  *log.Logger
	Session *session.Session
	Records *records.Store
	Options settings.Options
}

// NewServer creates and configures a new server for the UI layer.
func NewServer(logger *log.Logger, sess *session.Session, recs *records.Store, opts settings.Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: &http.Server{
			Addr:    opts.ListenAddr,
			Handler: mux,
			// The payment handler blocks for the whole collection window,
			// so the write timeout must outlast it.
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   opts.CollectTimeout() + 30*time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		Logger:  logger,
		Session: sess,
		Records: recs,
		Options: opts,
	}

	mux.HandleFunc("/session/state", s.stateHandler)
	mux.HandleFunc("/session/connect", s.connectHandler)
	mux.HandleFunc("/session/discover", s.discoverHandler)
	mux.HandleFunc("/session/disconnect", s.disconnectHandler)
	mux.HandleFunc("/payment", s.paymentHandler)
	mux.HandleFunc("/payment/cancel", s.cancelHandler)
	mux.HandleFunc("/payments/recent", s.recentHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.HandleFunc("/config", s.configHandler)

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.Logger.Infof("Starting API Server on %s", s.Addr)
	return s.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.Logger.Info("Shutting down API Server...")
	return s.Shutdown(ctx)
}
