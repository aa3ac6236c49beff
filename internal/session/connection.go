package session

import (
	"context"
	"sync"

	goeen_log "github.com/eencloud/goeen/log"

	"pos-terminal-session/internal/terminal"
)

// Gateway is the slice of the backend client the session depends on.
type Gateway interface {
	GetConnectionToken(ctx context.Context) terminal.Result[string]
	GetLocationID(ctx context.Context) terminal.Result[string]
	CreatePaymentIntent(ctx context.Context, amountMajor float64, currency string) terminal.Result[terminal.PaymentIntent]
}

// ConnectionController owns reader discovery and connect/disconnect state
// against the device SDK. All public operations are serialized on one mutex;
// the SDK handle is a session-wide resource and only one discover/connect/
// disconnect may be outstanding against it.
type ConnectionController struct {
	logger  *goeen_log.Logger
	store   *Store
	gateway Gateway
	factory terminal.Factory

	mu         sync.Mutex
	sdk        terminal.DeviceSDK
	locationID string
}

func NewConnectionController(logger *goeen_log.Logger, store *Store, gw Gateway, factory terminal.Factory) *ConnectionController {
	return &ConnectionController{
		logger:  logger,
		store:   store,
		gateway: gw,
		factory: factory,
	}
}

// Initialize constructs the device SDK handle. Idempotent: a second call on
// an initialized session is a no-op success. A failure leaves the session
// uninitialized and is safe to retry.
func (c *ConnectionController) Initialize(ctx context.Context) terminal.Result[bool] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initializeLocked(ctx)
}

func (c *ConnectionController) initializeLocked(ctx context.Context) terminal.Result[bool] {
	if c.sdk != nil {
		return terminal.Ok(true)
	}

	c.store.setLoading(true)
	defer c.store.setLoading(false)

	sdk, err := c.factory(terminal.Callbacks{
		Tokens:                 c.tokenProvider,
		OnUnexpectedDisconnect: c.onUnexpectedDisconnect,
		OnReadersUpdate:        c.onReadersUpdate,
	})
	if err != nil {
		terr := terminal.WrapError(terminal.CodeReaderConnectionFailed, "terminal initialization failed", err)
		c.store.setLastError(terr)
		c.logger.Errorf("Terminal initialization failed: %v", err)
		return terminal.Fail[bool](terr)
	}

	c.sdk = sdk
	c.store.setInitialized(true)
	c.logger.Info("Terminal session initialized")
	return terminal.Ok(true)
}

// tokenProvider bridges the SDK's connection-token callback to the gateway.
func (c *ConnectionController) tokenProvider(ctx context.Context) (string, error) {
	res := c.gateway.GetConnectionToken(ctx)
	if !res.Success {
		return "", res.Err
	}
	return res.Data, nil
}

// onUnexpectedDisconnect handles unsolicited device drops. Treated the same
// as a controller-initiated disconnect except the error is recorded.
func (c *ConnectionController) onUnexpectedDisconnect(reason error) {
	c.logger.Warningf("Reader disconnected unexpectedly: %v", reason)
	c.store.forceDisconnected(terminal.WrapError(terminal.CodeReaderConnectionFailed, "reader disconnected unexpectedly", reason))
}

// onReadersUpdate absorbs event-driven discovery results. Some SDKs report
// readers out of band after the discovery call has already returned.
func (c *ConnectionController) onReadersUpdate(readers []terminal.Reader) {
	c.store.setAvailableReaders(readers)
}

// DiscoverReaders resolves the location id (cached after the first fetch)
// and enumerates readers there. The available-reader list is replaced
// wholesale, including with an empty result.
func (c *ConnectionController) DiscoverReaders(ctx context.Context) terminal.Result[[]terminal.Reader] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discoverLocked(ctx)
}

func (c *ConnectionController) discoverLocked(ctx context.Context) terminal.Result[[]terminal.Reader] {
	if c.sdk == nil {
		return terminal.FailCode[[]terminal.Reader](terminal.CodeReaderConnectionFailed, "terminal not initialized")
	}

	c.store.setLoading(true)
	defer c.store.setLoading(false)

	if c.locationID == "" {
		res := c.gateway.GetLocationID(ctx)
		if !res.Success {
			c.store.setLastError(res.Err)
			return terminal.Fail[[]terminal.Reader](res.Err)
		}
		c.locationID = res.Data
	}

	readers, err := c.sdk.DiscoverReaders(ctx, c.locationID)
	if err != nil {
		terr := terminal.WrapError(terminal.CodeNoReadersFound, "reader discovery failed", err)
		c.store.setLastError(terr)
		c.logger.Errorf("Reader discovery failed: %v", err)
		return terminal.Fail[[]terminal.Reader](terr)
	}

	c.store.setAvailableReaders(readers)
	c.logger.Infof("Discovered %d readers at location %s", len(readers), c.locationID)
	return terminal.Ok(readers)
}

// ConnectReader connects to the given reader. Connecting to the reader the
// session already holds is a no-op returning it; connecting to a different
// reader disconnects the current one first.
func (c *ConnectionController) ConnectReader(ctx context.Context, reader terminal.Reader) terminal.Result[terminal.Reader] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx, reader)
}

func (c *ConnectionController) connectLocked(ctx context.Context, reader terminal.Reader) terminal.Result[terminal.Reader] {
	if c.sdk == nil {
		return terminal.FailCode[terminal.Reader](terminal.CodeReaderConnectionFailed, "terminal not initialized")
	}

	snap := c.store.Snapshot()
	if snap.Connected && snap.CurrentReader != nil {
		if snap.CurrentReader.ID == reader.ID {
			return terminal.Ok(*snap.CurrentReader)
		}
		c.disconnectLocked(ctx)
	}

	c.store.setLoading(true)
	defer c.store.setLoading(false)

	connected, err := c.sdk.ConnectReader(ctx, reader)
	if err != nil {
		terr := terminal.WrapError(terminal.CodeReaderConnectionFailed, "reader connection failed", err)
		c.store.setLastError(terr)
		c.logger.Errorf("Reader connection failed for %s: %v", reader.ID, err)
		return terminal.Fail[terminal.Reader](terr)
	}

	c.store.setConnected(connected)
	c.logger.Infof("Connected to reader %s (%s)", connected.ID, connected.IPAddress)
	return terminal.Ok(connected)
}

// ConnectAndInitialize is the convenience composition: initialize if needed,
// discover, connect to the first available reader.
func (c *ConnectionController) ConnectAndInitialize(ctx context.Context) terminal.Result[terminal.Reader] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if init := c.initializeLocked(ctx); !init.Success {
		return terminal.Fail[terminal.Reader](init.Err)
	}

	discovered := c.discoverLocked(ctx)
	if !discovered.Success {
		return terminal.Fail[terminal.Reader](discovered.Err)
	}
	if len(discovered.Data) == 0 {
		terr := terminal.NewError(terminal.CodeNoReadersFound, "no readers found at location")
		c.store.setLastError(terr)
		return terminal.Fail[terminal.Reader](terr)
	}

	return c.connectLocked(ctx, discovered.Data[0])
}

// Disconnect clears the connection. Local state is forced clean even when the
// underlying device call fails; a failed disconnect must never block a
// reconnect attempt. Idempotent.
func (c *ConnectionController) Disconnect(ctx context.Context) terminal.Result[bool] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnectLocked(ctx)
}

func (c *ConnectionController) disconnectLocked(ctx context.Context) terminal.Result[bool] {
	if c.sdk == nil {
		c.store.forceDisconnected(nil)
		return terminal.Ok(true)
	}

	c.store.setLoading(true)
	defer c.store.setLoading(false)

	err := c.sdk.DisconnectReader(ctx)
	c.store.forceDisconnected(nil)
	if err != nil {
		terr := terminal.WrapError(terminal.CodeReaderDisconnectionFailed, "reader disconnect failed", err)
		c.store.setLastError(terr)
		c.logger.Errorf("Reader disconnect failed (state forced clean): %v", err)
		return terminal.Fail[bool](terr)
	}
	return terminal.Ok(true)
}

// deviceSDK hands the live handle to the payment flow controller.
func (c *ConnectionController) deviceSDK() terminal.DeviceSDK {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sdk
}
