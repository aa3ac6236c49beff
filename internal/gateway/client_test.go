package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/eencloud/goeen/log"
	"github.com/stretchr/testify/require"

	"pos-terminal-session/internal/terminal"
)

func testLogger() *log.Logger {
	customFormat := "{{eenTimeStamp .Now}}[{{.Level}}]: {{.Message}}"
	return log.NewContext(os.Stderr, customFormat, log.LevelError).GetLogger("test", log.LevelError)
}

func newTestClient(baseURL string) *Client {
	return NewClient(testLogger(), Config{
		BaseURL:      baseURL,
		TokenPath:    "/connection-token",
		LocationPath: "/location",
		IntentPath:   "/payment-intent",
		HTTPTimeout:  2 * time.Second,
	})
}

func TestGetConnectionToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/connection-token", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"secret":"pst_test_123"}}`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL).GetConnectionToken(context.Background())
	require.True(t, res.Success)
	require.Equal(t, "pst_test_123", res.Data)
}

func TestGetConnectionTokenMissingSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL).GetConnectionToken(context.Background())
	require.False(t, res.Success)
	require.Equal(t, terminal.CodeConnectionTokenFailed, res.Err.Code)
}

func TestGetConnectionTokenServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := newTestClient(srv.URL).GetConnectionToken(context.Background())
	require.False(t, res.Success)
	require.Equal(t, terminal.CodeConnectionTokenFailed, res.Err.Code)
	require.NotNil(t, res.Err.Cause)
}

func TestGetConnectionTokenMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL).GetConnectionToken(context.Background())
	require.False(t, res.Success)
	require.Equal(t, terminal.CodeConnectionTokenFailed, res.Err.Code)
}

func TestGetConnectionTokenUnreachable(t *testing.T) {
	res := newTestClient("http://127.0.0.1:1").GetConnectionToken(context.Background())
	require.False(t, res.Success)
	require.Equal(t, terminal.CodeConnectionTokenFailed, res.Err.Code)
}

func TestGetLocationID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/location", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"location_id":"loc_42"}}`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL).GetLocationID(context.Background())
	require.True(t, res.Success)
	require.Equal(t, "loc_42", res.Data)
}

func TestGetLocationIDMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL).GetLocationID(context.Background())
	require.False(t, res.Success)
	require.Equal(t, terminal.CodeLocationIDFetchFailed, res.Err.Code)
}

func TestCreatePaymentIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payment-intent", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, float64(2000), req["amount_minor"])
		require.Equal(t, "usd", req["currency"])

		_, _ = w.Write([]byte(`{"data":{"id":"pi_1","amount":2000,"currency":"usd","status":"requires_payment_method","client_secret":"pi_1_secret_x"}}`))
	}))
	defer srv.Close()

	// 19.999 must round half up to 2000 minor units, never truncate to 1999.
	res := newTestClient(srv.URL).CreatePaymentIntent(context.Background(), 19.999, "USD")
	require.True(t, res.Success)
	require.Equal(t, "pi_1", res.Data.ID)
	require.Equal(t, int64(2000), res.Data.Amount)
	require.Equal(t, terminal.IntentStatusRequiresPaymentMethod, res.Data.Status)
}

func TestCreatePaymentIntentMissingClientSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"pi_1","amount":2000}}`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL).CreatePaymentIntent(context.Background(), 20, "usd")
	require.False(t, res.Success)
	require.Equal(t, terminal.CodePaymentIntentFailed, res.Err.Code)
}

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		major float64
		want  int64
	}{
		{19.99, 1999},
		{19.999, 2000},
		{0.01, 1},
		{0.005, 1},
		{100, 10000},
		{0, 0},
	}
	for _, tc := range cases {
		if got := MinorUnits(tc.major); got != tc.want {
			t.Errorf("MinorUnits(%v) = %d, want %d", tc.major, got, tc.want)
		}
	}
}

func TestHTTPTimeoutEnforced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte(`{"data":{"secret":"late"}}`))
	}))
	defer srv.Close()

	client := NewClient(testLogger(), Config{
		BaseURL:     srv.URL,
		TokenPath:   "/connection-token",
		HTTPTimeout: 50 * time.Millisecond,
	})

	start := time.Now()
	res := client.GetConnectionToken(context.Background())
	require.False(t, res.Success)
	require.Less(t, time.Since(start), 400*time.Millisecond)
}
