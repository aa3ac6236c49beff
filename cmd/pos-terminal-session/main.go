package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goeen_log "github.com/eencloud/goeen/log"

	"pos-terminal-session/internal/api"
	"pos-terminal-session/internal/gateway"
	"pos-terminal-session/internal/records"
	"pos-terminal-session/internal/session"
	"pos-terminal-session/internal/settings"
	"pos-terminal-session/internal/simreader"
	"pos-terminal-session/internal/terminal"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML configuration file")
	flag.Parse()

	logger := goeen_log.NewContext(os.Stdout, "", goeen_log.LevelInfo).GetLogger("pos-terminal-session", goeen_log.LevelInfo)
	logger.Info("Starting POS terminal session service...")

	opts, err := settings.Load(*configPath, logger)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if terr := opts.Validate(); terr != nil {
		logger.Fatalf("Invalid configuration: %v", terr)
	}

	dataDir := settings.ResolveDataDir(opts.DataDir, logger)
	recs, err := records.NewStore(filepath.Join(dataDir, "badger_db"), opts.MaxStoreSizeGB, logger)
	if err != nil {
		logger.Fatalf("Failed to create attempt record store: %v", err)
	}
	recs.AttachJournal(records.NewJournal(filepath.Join(dataDir, "journal"), 64, logger))
	defer func() {
		if err := recs.Close(); err != nil {
			logger.Errorf("Failed to close attempt record store: %v", err)
		}
	}()

	terminal.RegisterAdapter(simreader.AdapterName, simreader.NewFactory(logger, simreader.Options{
		ReaderCount: opts.SimReaderCount,
	}))

	factory, err := terminal.GetAdapter(opts.ReaderAdapter)
	if err != nil {
		logger.Fatalf("Unknown reader adapter %q: %v", opts.ReaderAdapter, err)
	}

	gw := gateway.NewClient(logger, gateway.Config{
		BaseURL:      opts.BaseURL,
		TokenPath:    opts.TokenPath,
		LocationPath: opts.LocationPath,
		IntentPath:   opts.IntentPath,
		HTTPTimeout:  opts.HTTPTimeout(),
	})

	sess := session.New(logger, gw, factory, recs, opts.Currency)

	server := api.NewServer(logger, sess, recs, opts)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("API Server failed: %v", err)
		}
	}()

	// Log state transitions as they happen so the journal shows the session
	// history without polling /session/state.
	go func() {
		for range sess.Store.Changes() {
			snap := sess.Store.Snapshot()
			reader := "none"
			if snap.CurrentReader != nil {
				reader = snap.CurrentReader.ID
			}
			logger.Debugf("Session state: initialized=%t connected=%t reader=%s loading=%t",
				snap.Initialized, snap.Connected, reader, snap.Loading)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := server.Stop(ctx); err != nil {
		logger.Errorf("API Server stop failed: %v", err)
	}
	if res := sess.Connection.Disconnect(ctx); !res.Success {
		logger.Errorf("Reader disconnect on shutdown failed: %v", res.Err)
	}
	cancel()
	logger.Info("POS terminal session service stopped")
}
