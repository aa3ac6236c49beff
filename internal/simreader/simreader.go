// Package simreader is the development adapter for the reader SDK capability.
// It behaves like a small fleet of network card readers: discovery returns a
// fixed set, collection takes a configurable amount of "cardholder" time, and
// an outstanding collection can be cancelled with the SDK's own cancel command.
package simreader

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goeen_log "github.com/eencloud/goeen/log"
	"github.com/google/uuid"

	"pos-terminal-session/internal/terminal"
)

const AdapterName = "simulated"

// Options controls the simulated fleet.
type Options struct {
	ReaderCount  int           // how many readers discovery reports
	CollectDelay time.Duration // how long the simulated cardholder takes to tap
}

// NewFactory returns a terminal.Factory for the simulated adapter. Register it
// under AdapterName so the session can select it by configuration.
func NewFactory(logger *goeen_log.Logger, opts Options) terminal.Factory {
	return func(cb terminal.Callbacks) (terminal.DeviceSDK, error) {
		if cb.Tokens == nil {
			return nil, fmt.Errorf("simulated adapter requires a token provider")
		}
		count := opts.ReaderCount
		if count <= 0 {
			count = 2
		}
		delay := opts.CollectDelay
		if delay <= 0 {
			delay = 2 * time.Second
		}
		sdk := &SDK{
			logger:       logger,
			cb:           cb,
			serial:       uuid.NewString()[:8],
			readerCount:  count,
			collectDelay: delay,
		}
		lastMu.Lock()
		lastSDK = sdk
		lastMu.Unlock()
		return sdk, nil
	}
}

var (
	lastMu  sync.Mutex
	lastSDK *SDK
)

// LastSDK returns the most recently constructed simulated SDK. QA hook so
// test drivers can reach past the session and fault-inject on the device.
func LastSDK() *SDK {
	lastMu.Lock()
	defer lastMu.Unlock()
	return lastSDK
}

type SDK struct {
	logger       *goeen_log.Logger
	cb           terminal.Callbacks
	serial       string
	readerCount  int
	collectDelay time.Duration

	mu          sync.Mutex
	connected   *terminal.Reader
	collectStop chan struct{} // non-nil while a collection is outstanding
}

func (s *SDK) DiscoverReaders(ctx context.Context, locationID string) ([]terminal.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	readers := make([]terminal.Reader, 0, s.readerCount)
	for i := 1; i <= s.readerCount; i++ {
		readers = append(readers, terminal.Reader{
			ID:           fmt.Sprintf("sim_reader_%s_%d", s.serial, i),
			SerialNumber: fmt.Sprintf("SIM%s%04d", strings.ToUpper(s.serial), i),
			IPAddress:    fmt.Sprintf("192.168.1.%d", 100+i),
			Version:      "2.11.0-sim",
			Simulated:    true,
			LastSeen:     now,
			LocationID:   locationID,
		})
	}

	// Mirror event-driven SDKs: the same list also arrives via the update
	// callback so callers that ignore the return value still see readers.
	if s.cb.OnReadersUpdate != nil {
		s.cb.OnReadersUpdate(readers)
	}

	s.logger.Debugf("Simulated discovery returned %d readers at location %s", len(readers), locationID)
	return readers, nil
}

func (s *SDK) ConnectReader(ctx context.Context, reader terminal.Reader) (terminal.Reader, error) {
	// Real SDKs authenticate with the cloud relay on connect. Fetch a token
	// so a broken token endpoint fails here, not mid-payment.
	token, err := s.cb.Tokens(ctx)
	if err != nil {
		return terminal.Reader{}, fmt.Errorf("connection token fetch failed: %w", err)
	}
	if token == "" {
		return terminal.Reader{}, fmt.Errorf("connection token fetch returned empty token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected != nil && s.connected.ID != reader.ID {
		return terminal.Reader{}, fmt.Errorf("already connected to reader %s", s.connected.ID)
	}

	reader.LastSeen = time.Now()
	s.connected = &reader
	s.logger.Infof("Simulated reader connected: %s (%s)", reader.ID, reader.IPAddress)
	return reader, nil
}

func (s *SDK) DisconnectReader(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected == nil {
		return nil
	}
	s.logger.Infof("Simulated reader disconnected: %s", s.connected.ID)
	s.connected = nil
	return nil
}

func (s *SDK) CollectPaymentMethod(ctx context.Context, clientSecret string) (*terminal.PaymentIntent, error) {
	s.mu.Lock()
	if s.connected == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("no reader connected")
	}
	if s.collectStop != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("collection already in progress")
	}
	stop := make(chan struct{})
	s.collectStop = stop
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.collectStop = nil
		s.mu.Unlock()
	}()

	select {
	case <-time.After(s.collectDelay):
		return &terminal.PaymentIntent{
			ID:           intentIDFromSecret(clientSecret),
			Status:       terminal.IntentStatusRequiresConfirmation,
			ClientSecret: clientSecret,
		}, nil
	case <-stop:
		return nil, fmt.Errorf("collection canceled")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *SDK) CancelCollectPaymentMethod(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collectStop == nil {
		return fmt.Errorf("no collection in progress")
	}
	close(s.collectStop)
	s.collectStop = nil
	s.logger.Debug("Simulated collection cancelled")
	return nil
}

func (s *SDK) ProcessPayment(ctx context.Context, intent *terminal.PaymentIntent) (*terminal.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected == nil {
		return nil, fmt.Errorf("no reader connected")
	}
	if intent == nil {
		return nil, fmt.Errorf("nil payment intent")
	}

	processed := intent.Clone()
	processed.Status = terminal.IntentStatusSucceeded
	s.logger.Infof("Simulated payment processed: %s (%d %s)", processed.ID, processed.Amount, processed.Currency)
	return processed, nil
}

// TriggerUnexpectedDisconnect drops the connection the way a reader losing
// power would, firing the session's disconnect callback. QA hook.
func (s *SDK) TriggerUnexpectedDisconnect(reason error) {
	s.mu.Lock()
	dropped := s.connected
	s.connected = nil
	s.mu.Unlock()

	if dropped == nil {
		return
	}
	s.logger.Warningf("Simulated unexpected disconnect: %s", dropped.ID)
	if s.cb.OnUnexpectedDisconnect != nil {
		s.cb.OnUnexpectedDisconnect(reason)
	}
}

// intentIDFromSecret recovers the intent id from a "pi_xxx_secret_yyy" style
// client secret. Unknown shapes get a generated id.
func intentIDFromSecret(clientSecret string) string {
	if idx := strings.Index(clientSecret, "_secret_"); idx > 0 {
		return clientSecret[:idx]
	}
	return "pi_sim_" + uuid.NewString()[:8]
}
