package session

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/eencloud/goeen/log"

	"pos-terminal-session/internal/terminal"
)

func testLogger() *log.Logger {
	customFormat := "{{eenTimeStamp .Now}}[{{.Level}}]: {{.Message}}"
	return log.NewContext(os.Stderr, customFormat, log.LevelError).GetLogger("test", log.LevelError)
}

// fakeGateway returns canned results and counts calls.
type fakeGateway struct {
	mu          sync.Mutex
	token       terminal.Result[string]
	location    terminal.Result[string]
	intent      terminal.Result[terminal.PaymentIntent]
	tokenCalls  int
	locCalls    int
	intentCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		token:    terminal.Ok("tok_fake"),
		location: terminal.Ok("loc_fake"),
		intent: terminal.Ok(terminal.PaymentIntent{
			ID:           "pi_fake",
			Amount:       2000,
			Currency:     "usd",
			Status:       terminal.IntentStatusRequiresPaymentMethod,
			ClientSecret: "pi_fake_secret_x",
		}),
	}
}

func (g *fakeGateway) GetConnectionToken(ctx context.Context) terminal.Result[string] {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tokenCalls++
	return g.token
}

func (g *fakeGateway) GetLocationID(ctx context.Context) terminal.Result[string] {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.locCalls++
	return g.location
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, amountMajor float64, currency string) terminal.Result[terminal.PaymentIntent] {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intentCalls++
	return g.intent
}

// fakeSDK is a hand-controlled device. Collection blocks on collectRelease
// when one is set, so tests decide exactly when the "cardholder" acts.
type fakeSDK struct {
	mu sync.Mutex

	readers       []terminal.Reader
	discoverErr   error
	connectErr    error
	disconnectErr error

	collectRelease chan struct{}
	collectIntent  *terminal.PaymentIntent
	collectErr     error

	processErr error
	cancelErr  error

	connected    *terminal.Reader
	cancelCalls  int
	collectCalls int
	processCalls int
}

func (f *fakeSDK) DiscoverReaders(ctx context.Context, locationID string) ([]terminal.Reader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	return f.readers, nil
}

func (f *fakeSDK) ConnectReader(ctx context.Context, reader terminal.Reader) (terminal.Reader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return terminal.Reader{}, f.connectErr
	}
	f.connected = &reader
	return reader, nil
}

func (f *fakeSDK) DisconnectReader(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = nil
	return f.disconnectErr
}

func (f *fakeSDK) CollectPaymentMethod(ctx context.Context, clientSecret string) (*terminal.PaymentIntent, error) {
	f.mu.Lock()
	f.collectCalls++
	release := f.collectRelease
	intent := f.collectIntent
	err := f.collectErr
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if intent == nil {
		intent = &terminal.PaymentIntent{
			ID:           "pi_fake",
			Status:       terminal.IntentStatusRequiresConfirmation,
			ClientSecret: clientSecret,
		}
	}
	return intent, nil
}

func (f *fakeSDK) CancelCollectPaymentMethod(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return f.cancelErr
}

func (f *fakeSDK) ProcessPayment(ctx context.Context, intent *terminal.PaymentIntent) (*terminal.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processCalls++
	if f.processErr != nil {
		return nil, f.processErr
	}
	processed := intent.Clone()
	processed.Status = terminal.IntentStatusSucceeded
	return processed, nil
}

func (f *fakeSDK) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelCalls
}

func (f *fakeSDK) collectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collectCalls
}

// fakeFactory hands out the given SDK and captures the session callbacks so
// tests can drive unsolicited events.
type fakeFactory struct {
	sdk        *fakeSDK
	failWith   error
	callbacks  terminal.Callbacks
	buildCalls int
}

func (ff *fakeFactory) factory(cb terminal.Callbacks) (terminal.DeviceSDK, error) {
	ff.buildCalls++
	if ff.failWith != nil {
		return nil, ff.failWith
	}
	ff.callbacks = cb
	return ff.sdk, nil
}

func defaultReaders() []terminal.Reader {
	return []terminal.Reader{
		{ID: "r1", SerialNumber: "SN1", IPAddress: "10.0.0.1"},
		{ID: "r2", SerialNumber: "SN2", IPAddress: "10.0.0.2"},
	}
}

// newTestSession wires a session against the fakes.
func newTestSession() (*Session, *fakeGateway, *fakeSDK, *fakeFactory) {
	gw := newFakeGateway()
	sdk := &fakeSDK{readers: defaultReaders()}
	ff := &fakeFactory{sdk: sdk}
	sess := New(testLogger(), gw, ff.factory, nil, "usd")
	return sess, gw, sdk, ff
}

var errDevice = fmt.Errorf("device error")
