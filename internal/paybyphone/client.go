package paybyphone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Production endpoints. Tests point these at httptest servers.
const (
	DefaultScriptURL = "https://m2.paybyphone.fr/static/js/main.0aec44c0.chunk.js"
	DefaultAuthURL   = "https://auth.paybyphoneapis.com"
	DefaultAPIURL    = "https://consumer.paybyphoneapis.com"
)

const (
	oauthClientID       = "paybyphone_webapp"
	minutesTimeUnit     = "Minutes"
	defaultProbeMinutes = 15
)

// apiKeyPattern extracts the payment service api key from the public webapp bundle.
// A miss means PayByPhone changed their bundle and the scrape needs updating.
var apiKeyPattern = regexp.MustCompile(`paymentService:\{[^}]*apiKey:"(.*?)"`)

// Browser-identity headers sent on every request so the traffic matches the
// webapp. Accept-Encoding is deliberately absent: setting it by hand disables
// the transport's transparent gzip handling and bodies would arrive compressed.
var baseHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3",
	"Accept-Language": "en-US,en;q=0.5",
	"Referer":         "https://paybyphone.com/",
	"Origin":          "https://paybyphone.com",
	"DNT":             "1",
	"Connection":      "keep-alive",
	"Accept":          "application/json, text/plain, */*",
}

// Credentials identify one vehicle account. Immutable once loaded.
type Credentials struct {
	Plate            string
	Lot              int
	Login            string
	Password         string
	PaymentAccountID string
}

// Endpoints holds the upstream base URLs.
type Endpoints struct {
	ScriptURL string
	AuthURL   string
	APIURL    string
}

func (e Endpoints) withDefaults() Endpoints {
	if e.ScriptURL == "" {
		e.ScriptURL = DefaultScriptURL
	}
	if e.AuthURL == "" {
		e.AuthURL = DefaultAuthURL
	}
	if e.APIURL == "" {
		e.APIURL = DefaultAPIURL
	}
	return e
}

// Options tunes a Client beyond its credentials.
type Options struct {
	Endpoints    Endpoints
	ProbeMinutes int
}

// Client talks to PayByPhone on behalf of a single vehicle account.
// Bootstrap must succeed before any other call; the api key, token and
// account id are cached for the client's lifetime. Not safe for concurrent
// Bootstrap; callers serialize per account.
type Client struct {
	creds        Credentials
	endpoints    Endpoints
	probeMinutes int
	client       *http.Client
	logger       *zap.Logger

	apiKey    string
	auth      *Auth
	accountID string
}

// NewClient builds an unauthenticated client for one account.
func NewClient(creds Credentials, opts Options, logger *zap.Logger) *Client {
	probe := opts.ProbeMinutes
	if probe <= 0 {
		probe = defaultProbeMinutes
	}
	return &Client{
		creds:        creds,
		endpoints:    opts.Endpoints.withDefaults(),
		probeMinutes: probe,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Plate returns the account's license plate.
func (c *Client) Plate() string { return c.creds.Plate }

// AccountID returns the resolved parking account id, empty before Bootstrap.
func (c *Client) AccountID() string { return c.accountID }

// Ready reports whether Bootstrap has completed.
func (c *Client) Ready() bool {
	return c.apiKey != "" && c.auth != nil && c.accountID != ""
}

// Bootstrap scrapes the api key, exchanges credentials for an access token and
// resolves the parking account id. Idempotent but not cheap; the result is
// cached in-process. There is no token refresh: an expired token surfaces as
// ErrUnauthorized on a later call and requires a fresh Bootstrap.
func (c *Client) Bootstrap(ctx context.Context) error {
	c.logger.Info("fetching api key", zap.String("plate", c.creds.Plate))
	if err := c.fetchAPIKey(ctx); err != nil {
		return &BootstrapError{Step: "api-key", Err: err}
	}

	c.logger.Info("requesting access token", zap.String("login", c.creds.Login))
	if err := c.fetchToken(ctx); err != nil {
		return &BootstrapError{Step: "token", Err: err}
	}

	c.logger.Info("resolving parking account id")
	if err := c.fetchAccountID(ctx); err != nil {
		return &BootstrapError{Step: "account", Err: err}
	}
	return nil
}

func (c *Client) fetchAPIKey(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.ScriptURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch script resource: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read script resource: %w", err)
	}

	match := apiKeyPattern.FindSubmatch(body)
	if match == nil {
		return ErrAPIKeyNotFound
	}
	c.apiKey = string(match[1])
	return nil
}

func (c *Client) fetchToken(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.creds.Login)
	form.Set("password", c.creds.Password)
	form.Set("client_id", oauthClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.AuthURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	for k, v := range baseHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Pbp-ClientType", "WebApp")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ErrAuthRejected
	}

	var auth Auth
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return fmt.Errorf("%w: decode token response: %v", ErrAuthRejected, err)
	}
	if auth.AccessToken == "" {
		return ErrAuthRejected
	}
	c.auth = &auth
	return nil
}

func (c *Client) fetchAccountID(ctx context.Context) error {
	resp, err := c.get(ctx, "/parking/accounts", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("list accounts failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var accounts []Account
	if err := json.NewDecoder(resp.Body).Decode(&accounts); err != nil {
		return fmt.Errorf("decode accounts: %w", err)
	}
	if len(accounts) == 0 {
		return ErrNoAccount
	}
	// First account, always. No ranking criteria are documented upstream.
	c.accountID = accounts[0].ID
	return nil
}

// request builds and executes an authenticated call. GET params go to the query
// string, POST params to a JSON body. Status interpretation is left to callers.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	if c.apiKey == "" || c.auth == nil {
		// Reaching here without Bootstrap is a programmer error.
		panic("paybyphone: request issued before bootstrap")
	}

	target := c.endpoints.APIURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	for k, v := range baseHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("x-pbp-version", "2")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Authorization", c.auth.TokenType+" "+c.auth.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paybyphone request %s %s: %w", method, path, err)
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	return c.request(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	return c.request(ctx, http.MethodPost, path, nil, body)
}

// RateOptions lists pricing options for the account's lot and plate.
func (c *Client) RateOptions(ctx context.Context) ([]RateOption, error) {
	query := url.Values{}
	query.Set("licensePlate", c.creds.Plate)
	query.Set("parkingAccountId", c.accountID)

	resp, err := c.get(ctx, fmt.Sprintf("/parking/locations/%d/rateOptions", c.creds.Lot), query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rate options failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var options []RateOption
	if err := json.NewDecoder(resp.Body).Decode(&options); err != nil {
		return nil, fmt.Errorf("decode rate options: %w", err)
	}
	return options, nil
}

// GetQuote prices a parking window of the given length against a rate option.
func (c *Client) GetQuote(ctx context.Context, minutes int, rateOptionID string) (*Quote, error) {
	query := url.Values{}
	query.Set("locationId", strconv.Itoa(c.creds.Lot))
	query.Set("rateOptionId", rateOptionID)
	query.Set("durationQuantity", strconv.Itoa(minutes))
	query.Set("durationTimeUnit", minutesTimeUnit)
	query.Set("licensePlate", c.creds.Plate)

	resp, err := c.get(ctx, fmt.Sprintf("/parking/accounts/%s/quote", c.accountID), query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("quote failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	return &quote, nil
}

// BookQuote submits a quote to create a session. Only a 202 is success; the
// POST body is not trusted, the session is re-fetched through Check instead.
func (c *Client) BookQuote(ctx context.Context, quote *Quote, minutes int, rateOptionID string) (*ParkingSession, error) {
	payload := bookingRequest{
		LicensePlate: c.creds.Plate,
		LocationID:   strconv.Itoa(c.creds.Lot),
		RateOptionID: rateOptionID,
		StartTime:    quote.ParkingStartTime,
		QuoteID:      quote.QuoteID,
		Duration: bookingDuration{
			Quantity: minutes,
			TimeUnit: minutesTimeUnit,
		},
		PaymentMethod: paymentMethod{
			Type: "PaymentAccount",
			Payload: paymentPayload{
				PaymentAccountID: c.creds.PaymentAccountID,
			},
		},
	}

	resp, err := c.post(ctx, fmt.Sprintf("/parking/accounts/%s/sessions/", c.accountID), payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return nil, &BookingError{Status: resp.StatusCode, Body: string(body)}
	}

	c.logger.Info("parking accepted, verifying session", zap.String("plate", c.creds.Plate))
	return c.Check(ctx)
}

func (c *Client) sessions(ctx context.Context) ([]ParkingSession, error) {
	query := url.Values{}
	query.Set("periodType", "Current")

	resp, err := c.get(ctx, fmt.Sprintf("/parking/accounts/%s/sessions", c.accountID), query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list sessions failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var sessions []ParkingSession
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return sessions, nil
}

// Check returns the current session whose plate matches the account's vehicle.
func (c *Client) Check(ctx context.Context) (*ParkingSession, error) {
	sessions, err := c.sessions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].Vehicle.LicensePlate == c.creds.Plate {
			return &sessions[i], nil
		}
	}
	return nil, ErrNoActiveSession
}

// Vehicles lists the vehicles registered on the PayByPhone profile.
func (c *Client) Vehicles(ctx context.Context) ([]Vehicle, error) {
	resp, err := c.get(ctx, "/identity/profileservice/v1/members/vehicles/paybyphone", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list vehicles failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var vehicles []Vehicle
	if err := json.NewDecoder(resp.Body).Decode(&vehicles); err != nil {
		return nil, fmt.Errorf("decode vehicles: %w", err)
	}
	return vehicles, nil
}

// Quote prices the full requested duration against the first rate option.
func (c *Client) Quote(ctx context.Context, minutes int) (*Quote, error) {
	options, err := c.RateOptions(ctx)
	if err != nil {
		return nil, err
	}
	if len(options) == 0 {
		return nil, ErrNoRateOptions
	}
	return c.GetQuote(ctx, minutes, options[0].RateOptionID)
}

// Park books one probe-sized increment: rate options, quote, booking, verified
// read-back. The service may quote a shorter window than requested; reaching
// the full duration is the renewal scheduler's job, not this call's.
func (c *Client) Park(ctx context.Context) (*ParkingSession, *Quote, error) {
	options, err := c.RateOptions(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(options) == 0 {
		return nil, nil, ErrNoRateOptions
	}
	rate := options[0].RateOptionID

	// Always quote the fixed probe window, never the full requested duration:
	// the upstream cannot guarantee quotes far in the future at booking time.
	probe := c.probeMinutes

	quote, err := c.GetQuote(ctx, probe, rate)
	if err != nil {
		return nil, nil, err
	}

	session, err := c.BookQuote(ctx, quote, probe, rate)
	if err != nil {
		return nil, nil, err
	}

	c.logger.Info("parked",
		zap.String("plate", c.creds.Plate),
		zap.Time("start", session.StartTime),
		zap.Time("expire", session.ExpireTime),
	)
	return session, quote, nil
}
