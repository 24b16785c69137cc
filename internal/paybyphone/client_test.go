package paybyphone

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

const (
	testPlate   = "AB-123-CD"
	testAccount = "acct-1"
)

var (
	testStart  = time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	testExpiry = testStart.Add(15 * time.Minute)
)

// upstream simulates the PayByPhone endpoints behind one httptest server.
type upstream struct {
	mu           sync.Mutex
	script       string
	tokenStatus  int
	accounts     string
	rateOptions  string
	bookStatus   int
	bookBody     string
	bookRequests []map[string]interface{}
	sessions     string
	lastHeaders  http.Header
}

func newUpstream() *upstream {
	return &upstream{
		script:      `!function(){var cfg={paymentService:{env:"prod",apiKey:"test-api-key"},other:1};}()`,
		tokenStatus: http.StatusOK,
		accounts:    `[{"id":"acct-1"},{"id":"acct-2"}]`,
		rateOptions: `[{"rateOptionId":"rate-1","type":"FlatRate"},{"rateOptionId":"rate-2","type":"Other"}]`,
		bookStatus:  http.StatusAccepted,
		sessions: `[{
			"parkingSessionId": "sess-1",
			"locationId": "75001",
			"startTime": "2026-08-30T10:00:00Z",
			"expireTime": "2026-08-30T10:15:00Z",
			"totalCost": {"amount": 1.2, "currency": "EUR"},
			"vehicle": {"licensePlate": "AB-123-CD"}
		}]`,
	}
}

func (u *upstream) serve(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(u.handler(t))
	t.Cleanup(server.Close)
	return server
}

func (u *upstream) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/bundle.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(u.script))
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "password" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("client_id"); got != "paybyphone_webapp" {
			t.Errorf("client_id = %q", got)
		}
		if u.tokenStatus != http.StatusOK {
			w.WriteHeader(u.tokenStatus)
			return
		}
		w.Write([]byte(`{"token_type":"Bearer","access_token":"test-token","expires_in":3600}`))
	})
	mux.HandleFunc("/parking/accounts", func(w http.ResponseWriter, r *http.Request) {
		u.recordHeaders(r)
		w.Write([]byte(u.accounts))
	})
	mux.HandleFunc("/parking/locations/75001/rateOptions", func(w http.ResponseWriter, r *http.Request) {
		u.recordHeaders(r)
		if got := r.URL.Query().Get("licensePlate"); got != testPlate {
			t.Errorf("rate options licensePlate = %q", got)
		}
		if got := r.URL.Query().Get("parkingAccountId"); got != testAccount {
			t.Errorf("rate options parkingAccountId = %q", got)
		}
		w.Write([]byte(u.rateOptions))
	})
	mux.HandleFunc("/parking/accounts/acct-1/quote", func(w http.ResponseWriter, r *http.Request) {
		u.recordHeaders(r)
		if got := r.URL.Query().Get("durationTimeUnit"); got != "Minutes" {
			t.Errorf("quote durationTimeUnit = %q", got)
		}
		quote := map[string]interface{}{
			"quoteId":           "quote-1",
			"locationId":        "75001",
			"parkingStartTime":  testStart.Format(time.RFC3339),
			"parkingExpiryTime": testExpiry.Format(time.RFC3339),
			"licensePlate":      testPlate,
			"totalCost":         map[string]interface{}{"amount": 1.2, "currency": "EUR"},
		}
		json.NewEncoder(w).Encode(quote)
	})
	mux.HandleFunc("/parking/accounts/acct-1/sessions/", func(w http.ResponseWriter, r *http.Request) {
		u.recordHeaders(r)
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode booking payload: %v", err)
		}
		u.mu.Lock()
		u.bookRequests = append(u.bookRequests, payload)
		u.mu.Unlock()
		if u.bookStatus != http.StatusAccepted {
			w.WriteHeader(u.bookStatus)
			w.Write([]byte(u.bookBody))
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/parking/accounts/acct-1/sessions", func(w http.ResponseWriter, r *http.Request) {
		u.recordHeaders(r)
		if got := r.URL.Query().Get("periodType"); got != "Current" {
			t.Errorf("sessions periodType = %q", got)
		}
		w.Write([]byte(u.sessions))
	})

	return mux
}

func (u *upstream) recordHeaders(r *http.Request) {
	u.mu.Lock()
	u.lastHeaders = r.Header.Clone()
	u.mu.Unlock()
}

func (u *upstream) bookings() []map[string]interface{} {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]map[string]interface{}(nil), u.bookRequests...)
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	return NewClient(
		Credentials{
			Plate:            testPlate,
			Lot:              75001,
			Login:            "user@example.com",
			Password:         "hunter2",
			PaymentAccountID: "pay-1",
		},
		Options{Endpoints: Endpoints{
			ScriptURL: server.URL + "/bundle.js",
			AuthURL:   server.URL,
			APIURL:    server.URL,
		}},
		zap.NewNop(),
	)
}

func bootstrappedClient(t *testing.T, u *upstream) (*Client, *upstream) {
	t.Helper()
	client := newTestClient(t, u.serve(t))
	if err := client.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return client, u
}

func TestBootstrap(t *testing.T) {
	client, _ := bootstrappedClient(t, newUpstream())

	if !client.Ready() {
		t.Fatalf("client not ready after bootstrap")
	}
	if client.AccountID() != testAccount {
		t.Fatalf("account id = %q, want first account", client.AccountID())
	}
}

func TestBootstrapAPIKeyNotFound(t *testing.T) {
	u := newUpstream()
	u.script = `!function(){var cfg={something:"else"};}()`
	client := newTestClient(t, u.serve(t))

	err := client.Bootstrap(context.Background())
	if !errors.Is(err, ErrAPIKeyNotFound) {
		t.Fatalf("expected ErrAPIKeyNotFound, got %v", err)
	}
	var bootstrapErr *BootstrapError
	if !errors.As(err, &bootstrapErr) || bootstrapErr.Step != "api-key" {
		t.Fatalf("expected api-key bootstrap error, got %v", err)
	}
}

func TestBootstrapAuthRejected(t *testing.T) {
	u := newUpstream()
	u.tokenStatus = http.StatusBadRequest
	client := newTestClient(t, u.serve(t))

	if err := client.Bootstrap(context.Background()); !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("expected ErrAuthRejected, got %v", err)
	}
}

func TestBootstrapNoAccount(t *testing.T) {
	u := newUpstream()
	u.accounts = `[]`
	client := newTestClient(t, u.serve(t))

	if err := client.Bootstrap(context.Background()); !errors.Is(err, ErrNoAccount) {
		t.Fatalf("expected ErrNoAccount, got %v", err)
	}
}

func TestParkBooksProbeWindowAndVerifies(t *testing.T) {
	client, u := bootstrappedClient(t, newUpstream())

	session, quote, err := client.Park(context.Background())
	if err != nil {
		t.Fatalf("park: %v", err)
	}

	if quote.QuoteID != "quote-1" {
		t.Fatalf("quote id = %q", quote.QuoteID)
	}
	if session.ParkingSessionID != "sess-1" {
		t.Fatalf("session must come from the verified read-back, got %q", session.ParkingSessionID)
	}
	if !session.StartTime.Equal(testStart) || !session.ExpireTime.Equal(testExpiry) {
		t.Fatalf("session window [%v, %v)", session.StartTime, session.ExpireTime)
	}

	bookings := u.bookings()
	if len(bookings) != 1 {
		t.Fatalf("expected 1 booking request, got %d", len(bookings))
	}
	payload := bookings[0]
	if payload["quoteId"] != "quote-1" {
		t.Errorf("booking quoteId = %v", payload["quoteId"])
	}
	if payload["rateOptionId"] != "rate-1" {
		t.Errorf("booking must use the first rate option, got %v", payload["rateOptionId"])
	}
	duration, _ := payload["duration"].(map[string]interface{})
	if duration["quantity"] != float64(15) || duration["timeUnit"] != "Minutes" {
		t.Errorf("booking duration = %v", duration)
	}
	payment, _ := payload["paymentMethod"].(map[string]interface{})
	if payment["type"] != "PaymentAccount" {
		t.Errorf("payment method type = %v", payment["type"])
	}
	inner, _ := payment["payload"].(map[string]interface{})
	if inner["paymentAccountId"] != "pay-1" {
		t.Errorf("payment account = %v", inner["paymentAccountId"])
	}
	if inner["cvv"] != nil {
		t.Errorf("cvv must never be sent, got %v", inner["cvv"])
	}

	u.mu.Lock()
	headers := u.lastHeaders
	u.mu.Unlock()
	if got := headers.Get("x-api-key"); got != "test-api-key" {
		t.Errorf("x-api-key = %q", got)
	}
	if got := headers.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("authorization = %q", got)
	}
	if got := headers.Get("x-pbp-version"); got != "2" {
		t.Errorf("x-pbp-version = %q", got)
	}
}

func TestParkNoRateOptions(t *testing.T) {
	u := newUpstream()
	u.rateOptions = `[]`
	client, _ := bootstrappedClient(t, u)

	_, _, err := client.Park(context.Background())
	if !errors.Is(err, ErrNoRateOptions) {
		t.Fatalf("expected ErrNoRateOptions, got %v", err)
	}
	if len(u.bookings()) != 0 {
		t.Fatalf("no booking may be attempted without a rate option")
	}
}

func TestParkBookingRejected(t *testing.T) {
	u := newUpstream()
	u.bookStatus = http.StatusBadRequest
	u.bookBody = `{"reason":"quote expired"}`
	client, _ := bootstrappedClient(t, u)

	_, _, err := client.Park(context.Background())
	var bookingErr *BookingError
	if !errors.As(err, &bookingErr) {
		t.Fatalf("expected BookingError, got %v", err)
	}
	if bookingErr.Status != http.StatusBadRequest {
		t.Fatalf("booking error status = %d", bookingErr.Status)
	}
	if !strings.Contains(bookingErr.Body, "quote expired") {
		t.Fatalf("booking error must carry the raw body, got %q", bookingErr.Body)
	}
}

func TestCheckMatchesPlate(t *testing.T) {
	client, _ := bootstrappedClient(t, newUpstream())

	session, err := client.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if session.Vehicle.LicensePlate != testPlate {
		t.Fatalf("check returned session for plate %q", session.Vehicle.LicensePlate)
	}
}

func TestCheckNoActiveSession(t *testing.T) {
	u := newUpstream()
	u.sessions = `[{"parkingSessionId":"sess-9","vehicle":{"licensePlate":"ZZ-999-ZZ"}}]`
	client, _ := bootstrappedClient(t, u)

	if _, err := client.Check(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestQuoteUsesRequestedDuration(t *testing.T) {
	client, _ := bootstrappedClient(t, newUpstream())

	quote, err := client.Quote(context.Background(), 45)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.QuoteID != "quote-1" {
		t.Fatalf("quote id = %q", quote.QuoteID)
	}
}

type gzipResponseWriter struct {
	http.ResponseWriter
	writer io.Writer
}

func (w gzipResponseWriter) Write(p []byte) (int, error) { return w.writer.Write(p) }

// gzipEncode compresses every response whose request advertised gzip support,
// the way any CDN-fronted production endpoint does.
func gzipEncode(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		next.ServeHTTP(gzipResponseWriter{ResponseWriter: w, writer: gz}, r)
	})
}

func TestClientAgainstGzipUpstream(t *testing.T) {
	u := newUpstream()
	server := httptest.NewServer(gzipEncode(u.handler(t)))
	t.Cleanup(server.Close)

	client := newTestClient(t, server)
	if err := client.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap against gzip upstream: %v", err)
	}

	session, quote, err := client.Park(context.Background())
	if err != nil {
		t.Fatalf("park against gzip upstream: %v", err)
	}
	if quote.QuoteID != "quote-1" {
		t.Fatalf("quote id = %q", quote.QuoteID)
	}
	if session.ParkingSessionID != "sess-1" {
		t.Fatalf("session id = %q", session.ParkingSessionID)
	}
}

func TestRequestBeforeBootstrapPanics(t *testing.T) {
	u := newUpstream()
	client := newTestClient(t, u.serve(t))

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on request before bootstrap")
		}
	}()
	client.RateOptions(context.Background())
}
