package session

import (
	"context"
	"strings"
	"sync"
	"time"

	goeen_log "github.com/eencloud/goeen/log"
	"github.com/google/uuid"

	"pos-terminal-session/internal/records"
	"pos-terminal-session/internal/terminal"
)

// PaymentFlowController owns one payment attempt at a time:
// intent creation, method collection (cancelable, time-boxed), processing.
// Collection is the dangerous part: the SDK call blocks until a card is
// presented and offers no cancellation primitive beyond an explicit cancel
// command, so the controller races it against a deadline waiter and treats
// the waiter's first signal as authoritative.
type PaymentFlowController struct {
	logger   *goeen_log.Logger
	store    *Store
	gateway  Gateway
	conn     *ConnectionController
	recorder *records.Store // optional; nil disables attempt records
	currency string

	mu     sync.Mutex
	waiter *deadlineWaiter // non-nil while a collection is outstanding
}

func NewPaymentFlowController(logger *goeen_log.Logger, store *Store, gw Gateway, conn *ConnectionController, recorder *records.Store, currency string) *PaymentFlowController {
	return &PaymentFlowController{
		logger:   logger,
		store:    store,
		gateway:  gw,
		conn:     conn,
		recorder: recorder,
		currency: currency,
	}
}

// CreatePaymentIntent asks the backend for a fresh intent. Starting a new
// intent while a collection is outstanding is rejected: the previous attempt
// must resolve or be cancelled first.
func (p *PaymentFlowController) CreatePaymentIntent(ctx context.Context, amountMajor float64, currency string) terminal.Result[terminal.PaymentIntent] {
	p.mu.Lock()
	collecting := p.waiter != nil
	p.mu.Unlock()
	if collecting {
		return terminal.FailCode[terminal.PaymentIntent](terminal.CodePaymentIntentFailed, "a payment collection is still outstanding")
	}

	snap := p.store.Snapshot()
	if !snap.Connected {
		return terminal.FailCode[terminal.PaymentIntent](terminal.CodeReaderConnectionFailed, "no reader connected")
	}

	p.store.setLoading(true)
	defer p.store.setLoading(false)

	if currency == "" {
		currency = p.currency
	}

	res := p.gateway.CreatePaymentIntent(ctx, amountMajor, currency)
	if !res.Success {
		p.store.setLastError(res.Err)
		return res
	}

	p.store.setLastPaymentIntent(&res.Data)
	p.logger.Infof("Payment intent created: %s (%d %s)", res.Data.ID, res.Data.Amount, res.Data.Currency)
	return res
}

// CollectPaymentMethod runs the device-side collection step under the given
// timeout. The SDK call, the deadline, and CancelCollection all race; the
// first to settle the waiter decides the outcome and late signals are
// dropped. On timeout or cancel a best-effort cancel command is sent to the
// device exactly once; its own failure is logged and swallowed since the
// caller's result has already been decided.
func (p *PaymentFlowController) CollectPaymentMethod(ctx context.Context, clientSecret string, timeout time.Duration) terminal.Result[terminal.PaymentIntent] {
	sdk := p.conn.deviceSDK()
	if sdk == nil {
		return terminal.FailCode[terminal.PaymentIntent](terminal.CodeReaderConnectionFailed, "terminal not initialized")
	}
	if !p.store.Snapshot().Connected {
		return terminal.FailCode[terminal.PaymentIntent](terminal.CodeReaderConnectionFailed, "no reader connected")
	}

	p.mu.Lock()
	if p.waiter != nil {
		p.mu.Unlock()
		return terminal.FailCode[terminal.PaymentIntent](terminal.CodePaymentCollectionFailed, "a collection is already in progress")
	}
	w := newDeadlineWaiter(timeout)
	p.waiter = w
	p.mu.Unlock()

	p.store.setLoading(true)
	defer func() {
		p.mu.Lock()
		p.waiter = nil
		p.mu.Unlock()
		p.store.setLoading(false)
	}()

	go func() {
		intent, err := sdk.CollectPaymentMethod(ctx, clientSecret)
		if err != nil {
			w.resolveFailed(err)
			return
		}
		w.resolveCollected(intent)
	}()

	res := w.wait()
	switch res.outcome {
	case outcomeCollected:
		p.store.setLastPaymentIntent(res.intent)
		p.logger.Infof("Payment method collected for intent %s", res.intent.ID)
		return terminal.Ok(*res.intent)

	case outcomeFailed:
		terr := terminal.WrapError(terminal.CodePaymentCollectionFailed, "payment collection failed", res.err)
		p.store.setLastError(terr)
		p.logger.Errorf("Payment collection failed: %v", res.err)
		return terminal.Fail[terminal.PaymentIntent](terr)

	case outcomeTimedOut:
		p.cancelDeviceCollection(sdk)
		terr := terminal.NewError(terminal.CodeOperationTimeout, "payment collection timed out")
		p.store.setLastError(terr)
		p.logger.Warningf("Payment collection timed out after %s", timeout)
		return terminal.Fail[terminal.PaymentIntent](terr)

	default: // outcomeCancelled
		p.cancelDeviceCollection(sdk)
		terr := terminal.NewError(terminal.CodePaymentCollectionFailed, "payment collection cancelled")
		p.store.setLastError(terr)
		p.logger.Infof("Payment collection cancelled by caller")
		return terminal.Fail[terminal.PaymentIntent](terr)
	}
}

// cancelDeviceCollection tells the device to stop waiting for a card.
// Best-effort: the caller's operation already resolved, so an error here is
// only worth a log line.
func (p *PaymentFlowController) cancelDeviceCollection(sdk terminal.DeviceSDK) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sdk.CancelCollectPaymentMethod(ctx); err != nil {
		p.logger.Warningf("Best-effort collection cancel failed: %v", err)
	}
}

// CancelCollection is the user-triggered cancellation path. Idempotent:
// with no collection outstanding it reports false instead of erroring. On
// success the waiting CollectPaymentMethod call resolves promptly without
// waiting for the underlying SDK call to unblock.
func (p *PaymentFlowController) CancelCollection() bool {
	p.mu.Lock()
	w := p.waiter
	p.mu.Unlock()
	if w == nil {
		return false
	}
	w.cancel()
	return true
}

// ProcessPayment captures the collected intent on the device.
func (p *PaymentFlowController) ProcessPayment(ctx context.Context, intent *terminal.PaymentIntent) terminal.Result[terminal.PaymentIntent] {
	sdk := p.conn.deviceSDK()
	if sdk == nil {
		return terminal.FailCode[terminal.PaymentIntent](terminal.CodeReaderConnectionFailed, "terminal not initialized")
	}
	if intent == nil {
		return terminal.FailCode[terminal.PaymentIntent](terminal.CodePaymentProcessingFailed, "no payment intent to process")
	}

	p.store.setLoading(true)
	defer p.store.setLoading(false)

	processed, err := sdk.ProcessPayment(ctx, intent)
	if err != nil {
		terr := terminal.WrapError(terminal.CodePaymentProcessingFailed, "payment processing failed", err)
		p.store.setLastError(terr)
		p.logger.Errorf("Payment processing failed for %s: %v", intent.ID, err)
		return terminal.Fail[terminal.PaymentIntent](terr)
	}

	p.store.setLastPaymentIntent(processed)
	p.logger.Infof("Payment processed: %s (%s)", processed.ID, processed.Status)
	return terminal.Ok(*processed)
}

// Charge runs the full flow for one attempt: create intent, collect under
// the timeout, process. A cancelled or timed-out collection stops the flow
// before processing; a card the user believes was cancelled is never charged.
// Terminal outcomes land in the attempt record store when one is wired.
func (p *PaymentFlowController) Charge(ctx context.Context, amountMajor float64, currency string, collectTimeout time.Duration) terminal.Result[terminal.PaymentIntent] {
	created := p.CreatePaymentIntent(ctx, amountMajor, currency)
	if !created.Success {
		return created
	}

	collected := p.CollectPaymentMethod(ctx, created.Data.ClientSecret, collectTimeout)
	if !collected.Success {
		outcome := "failed"
		switch {
		case collected.Err.Code == terminal.CodeOperationTimeout:
			outcome = "timed_out"
		case strings.Contains(collected.Err.Message, "cancelled"):
			outcome = "cancelled"
		}
		p.recordAttempt(created.Data, outcome, collected.Err)
		return collected
	}

	// Carry amount and currency forward: the simulated SDK echoes only what
	// it knows from the client secret.
	collectedIntent := collected.Data
	if collectedIntent.Amount == 0 {
		collectedIntent.Amount = created.Data.Amount
		collectedIntent.Currency = created.Data.Currency
	}

	processed := p.ProcessPayment(ctx, &collectedIntent)
	if !processed.Success {
		p.recordAttempt(collectedIntent, "failed", processed.Err)
		return processed
	}

	p.recordAttempt(processed.Data, "completed", nil)
	return processed
}

func (p *PaymentFlowController) recordAttempt(intent terminal.PaymentIntent, outcome string, terr *terminal.TerminalError) {
	if p.recorder == nil {
		return
	}

	attempt := records.Attempt{
		ID:        uuid.NewString(),
		IntentID:  intent.ID,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		Outcome:   outcome,
		CreatedAt: time.Now(),
	}
	if snap := p.store.Snapshot(); snap.CurrentReader != nil {
		attempt.ReaderID = snap.CurrentReader.ID
	}
	if terr != nil {
		attempt.ErrorCode = string(terr.Code)
	}

	if err := p.recorder.Record(attempt); err != nil {
		p.logger.Errorf("Failed to record payment attempt %s: %v", attempt.ID, err)
	}
}
