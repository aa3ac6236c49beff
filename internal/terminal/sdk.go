package terminal

import (
	"context"
	"fmt"
	"sync"
)

// TokenProvider supplies a fresh connection token when the device SDK needs
// to authenticate with the vendor's cloud relay.
type TokenProvider func(ctx context.Context) (string, error)

// Callbacks are handed to the adapter at construction time. OnReadersUpdate
// exists for platforms whose discovery is event-driven: the adapter may report
// readers out of band instead of (or in addition to) returning them from
// DiscoverReaders. Any callback may be nil.
type Callbacks struct {
	Tokens                 TokenProvider
	OnUnexpectedDisconnect func(reason error)
	OnReadersUpdate        func(readers []Reader)
}

// DeviceSDK is the narrow capability surface the session core depends on.
// The wire protocol behind it is the adapter's business; the core only sees
// these six operations and plain errors.
type DeviceSDK interface {
	DiscoverReaders(ctx context.Context, locationID string) ([]Reader, error)
	ConnectReader(ctx context.Context, reader Reader) (Reader, error)
	DisconnectReader(ctx context.Context) error
	CollectPaymentMethod(ctx context.Context, clientSecret string) (*PaymentIntent, error)
	CancelCollectPaymentMethod(ctx context.Context) error
	ProcessPayment(ctx context.Context, intent *PaymentIntent) (*PaymentIntent, error)
}

// Factory constructs a DeviceSDK adapter wired with the session's callbacks.
type Factory func(cb Callbacks) (DeviceSDK, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// RegisterAdapter adds an adapter constructor to the registry.
// This is typically called from the adapter's package init() function.
func RegisterAdapter(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		return
	}
	registry[name] = factory
}

// GetAdapter returns the factory for the adapter with the given name.
func GetAdapter(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, exists := registry[name]
	if !exists {
		return nil, fmt.Errorf("no reader adapter registered with name: %s", name)
	}
	return factory, nil
}
