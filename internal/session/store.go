// Package session holds the terminal session core: the state store, the
// connection controller, and the payment flow controller. One Session is
// constructed per application session and passed by reference to the UI
// layer; there is no shared global instance.
package session

import (
	"sync"

	goeen_log "github.com/eencloud/goeen/log"

	"pos-terminal-session/internal/terminal"
)

// State is the single source of truth the UI layer reads. Consumers only
// ever see copies; the mutable record stays inside the Store.
type State struct {
	Initialized       bool                    `json:"is_initialized"`
	Loading           bool                    `json:"is_loading"`
	Connected         bool                    `json:"is_connected"`
	CurrentReader     *terminal.Reader        `json:"current_reader,omitempty"`
	AvailableReaders  []terminal.Reader       `json:"available_readers"`
	LastPaymentIntent *terminal.PaymentIntent `json:"last_payment_intent,omitempty"`
	LastError         *terminal.TerminalError `json:"last_error,omitempty"`
}

// Store owns the mutable session state. Controllers in this package are the
// only writers; everyone else reads snapshots and watches the change channel.
type Store struct {
	mu         sync.RWMutex
	logger     *goeen_log.Logger
	state      State
	changeChan chan struct{}
}

func NewStore(logger *goeen_log.Logger) *Store {
	return &Store{
		logger:     logger,
		changeChan: make(chan struct{}, 1),
		state:      State{AvailableReaders: []terminal.Reader{}},
	}
}

// Snapshot returns an independent copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Changes signals after every state mutation. The channel is coalescing: a
// slow reader sees at least one signal, not one per write.
func (s *Store) Changes() <-chan struct{} {
	return s.changeChan
}

func (s *Store) copyLocked() State {
	cp := s.state
	cp.AvailableReaders = make([]terminal.Reader, len(s.state.AvailableReaders))
	copy(cp.AvailableReaders, s.state.AvailableReaders)
	if s.state.CurrentReader != nil {
		r := *s.state.CurrentReader
		cp.CurrentReader = &r
	}
	cp.LastPaymentIntent = s.state.LastPaymentIntent.Clone()
	if s.state.LastError != nil {
		e := *s.state.LastError
		cp.LastError = &e
	}
	return cp
}

func (s *Store) notifyChange() {
	select {
	case s.changeChan <- struct{}{}:
	default:
	}
}

func (s *Store) setLoading(loading bool) {
	s.mu.Lock()
	s.state.Loading = loading
	s.mu.Unlock()
	s.notifyChange()
}

func (s *Store) setInitialized(initialized bool) {
	s.mu.Lock()
	s.state.Initialized = initialized
	s.mu.Unlock()
	s.notifyChange()
}

// setConnected records a confirmed connection. Connected is never true
// without a current reader; this is the only place that sets it.
func (s *Store) setConnected(reader terminal.Reader) {
	s.mu.Lock()
	r := reader
	s.state.Connected = true
	s.state.CurrentReader = &r
	s.mu.Unlock()
	s.notifyChange()
}

// forceDisconnected clears connectivity unconditionally. Used for both
// controller-initiated disconnects and unsolicited device drops; a non-nil
// err additionally lands in LastError.
func (s *Store) forceDisconnected(err *terminal.TerminalError) {
	s.mu.Lock()
	s.state.Connected = false
	s.state.CurrentReader = nil
	if err != nil {
		s.state.LastError = err
	}
	s.mu.Unlock()
	s.notifyChange()
}

// setAvailableReaders replaces the advisory reader list wholesale.
func (s *Store) setAvailableReaders(readers []terminal.Reader) {
	cp := make([]terminal.Reader, len(readers))
	copy(cp, readers)
	s.mu.Lock()
	s.state.AvailableReaders = cp
	s.mu.Unlock()
	s.notifyChange()
}

func (s *Store) setLastPaymentIntent(intent *terminal.PaymentIntent) {
	s.mu.Lock()
	s.state.LastPaymentIntent = intent.Clone()
	s.mu.Unlock()
	s.notifyChange()
}

func (s *Store) setLastError(err *terminal.TerminalError) {
	s.mu.Lock()
	s.state.LastError = err
	s.mu.Unlock()
	s.notifyChange()
}
