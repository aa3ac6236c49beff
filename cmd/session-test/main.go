package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/eencloud/goeen/log"
	"github.com/google/uuid"

	"pos-terminal-session/internal/session"
	"pos-terminal-session/internal/simreader"
	"pos-terminal-session/internal/terminal"
)

// stubGateway stands in for the payment backend so the scenarios run without
// network access.
type stubGateway struct {
	intents atomic.Int64
}

func (g *stubGateway) GetConnectionToken(ctx context.Context) terminal.Result[string] {
	return terminal.Ok("tok_" + uuid.NewString())
}

func (g *stubGateway) GetLocationID(ctx context.Context) terminal.Result[string] {
	return terminal.Ok("loc_local_test")
}

func (g *stubGateway) CreatePaymentIntent(ctx context.Context, amountMajor float64, currency string) terminal.Result[terminal.PaymentIntent] {
	n := g.intents.Add(1)
	id := fmt.Sprintf("pi_test_%d", n)
	return terminal.Ok(terminal.PaymentIntent{
		ID:           id,
		Amount:       int64(amountMajor*100 + 0.5),
		Currency:     currency,
		Status:       terminal.IntentStatusRequiresPaymentMethod,
		ClientSecret: id + "_secret_" + uuid.NewString(),
	})
}

func main() {
	fmt.Println("=== Terminal Session Edge Case Testing ===")

	logger := log.NewContext(os.Stderr, "", log.LevelInfo).GetLogger("session-test", log.LevelInfo)

	factory := simreader.NewFactory(logger, simreader.Options{
		ReaderCount:  2,
		CollectDelay: 500 * time.Millisecond,
	})

	sess := session.New(logger, &stubGateway{}, factory, nil, "usd")

	fmt.Println("\n1. Testing Connect Composition...")
	testConnect(sess)

	fmt.Println("\n2. Testing Happy-Path Charge...")
	testCharge(sess)

	fmt.Println("\n3. Testing Collection Timeout...")
	testTimeout(sess)

	fmt.Println("\n4. Testing User Cancellation...")
	testCancel(sess)

	fmt.Println("\n5. Testing Unexpected Disconnect...")
	testUnexpectedDisconnect(sess)

	fmt.Println("\n=== Terminal Session Testing Complete ===")
}

func testConnect(sess *session.Session) {
	ctx := context.Background()

	res := sess.Connection.ConnectAndInitialize(ctx)
	if !res.Success {
		fmt.Printf("  FAIL: connect: %v\n", res.Err)
		return
	}
	fmt.Printf("  Connected to %s (%s)\n", res.Data.ID, res.Data.SerialNumber)

	again := sess.Connection.ConnectReader(ctx, res.Data)
	fmt.Printf("  Reconnect to same reader no-op: success=%t\n", again.Success)

	snap := sess.Store.Snapshot()
	fmt.Printf("  State: connected=%t readers=%d\n", snap.Connected, len(snap.AvailableReaders))
}

func testCharge(sess *session.Session) {
	res := sess.Payment.Charge(context.Background(), 19.99, "usd", 10*time.Second)
	if !res.Success {
		fmt.Printf("  FAIL: charge: %v\n", res.Err)
		return
	}
	fmt.Printf("  Charged %d %s, intent %s status=%s\n", res.Data.Amount, res.Data.Currency, res.Data.ID, res.Data.Status)
}

func testTimeout(sess *session.Session) {
	// Timeout shorter than the simulator's card-presentation delay.
	res := sess.Payment.Charge(context.Background(), 5.00, "usd", 50*time.Millisecond)
	if res.Success {
		fmt.Println("  FAIL: charge should have timed out")
		return
	}
	fmt.Printf("  Got expected failure: %s\n", res.Err.Code)
}

func testCancel(sess *session.Session) {
	done := make(chan terminal.Result[terminal.PaymentIntent], 1)
	go func() {
		done <- sess.Payment.Charge(context.Background(), 7.50, "usd", 10*time.Second)
	}()

	time.Sleep(100 * time.Millisecond)
	if !sess.Payment.CancelCollection() {
		fmt.Println("  FAIL: no collection to cancel")
		return
	}

	res := <-done
	if res.Success {
		fmt.Println("  FAIL: cancelled charge should not succeed")
		return
	}
	fmt.Printf("  Got expected failure: %s (%s)\n", res.Err.Code, res.Err.Message)

	fmt.Printf("  Cancel with nothing outstanding: %t\n", sess.Payment.CancelCollection())
}

func testUnexpectedDisconnect(sess *session.Session) {
	sdk := simreader.LastSDK()
	if sdk == nil {
		fmt.Println("  SKIP: no simulated SDK instance")
		return
	}

	sdk.TriggerUnexpectedDisconnect(fmt.Errorf("simulated network drop"))
	time.Sleep(50 * time.Millisecond)

	snap := sess.Store.Snapshot()
	fmt.Printf("  State after drop: connected=%t reader-nil=%t lastError=%v\n",
		snap.Connected, snap.CurrentReader == nil, snap.LastError)

	res := sess.Connection.ConnectAndInitialize(context.Background())
	fmt.Printf("  Reconnect after drop: success=%t\n", res.Success)
}
