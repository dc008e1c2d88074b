package payments

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	paymentDetailsPathPrefix = "/v2/codes/payments/"
	authHeaderScheme         = "hmac OPA-Auth"
	emptyBodyHash            = "empty"
	emptyContentType         = "empty"
	nonceLength              = 8
)

// ClientConfig carries the credentials and transport settings for the
// provider client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	MerchantID string
	Timeout    time.Duration

	// HTTPClient overrides the transport, primarily for tests. When nil a
	// client bounded by Timeout is constructed.
	HTTPClient *http.Client

	// Clock supplies signature timestamps. Defaults to time.Now.
	Clock func() time.Time
}

// Client queries the payment provider over HTTPS with signed requests.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	apiSecret  string
	merchantID string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient validates the configuration and builds a provider client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("payments: base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("payments: invalid base url %q", base)
	}
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.APISecret) == "" {
		return nil, errors.New("payments: api key and secret are required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:    parsed,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		apiSecret:  strings.TrimSpace(cfg.APISecret),
		merchantID: strings.TrimSpace(cfg.MerchantID),
		httpClient: httpClient,
		now:        now,
	}, nil
}

// rawEnvelope defers decoding of the data field: the provider returns it as an
// object in production and as an array of attempts in some environments.
type rawEnvelope struct {
	ResultInfo ResultInfo      `json:"resultInfo"`
	Data       json.RawMessage `json:"data"`
}

// GetPaymentDetails implements Gateway. It issues a single GET to the payment
// details endpoint and folds both data shapes into RawBody.
func (c *Client) GetPaymentDetails(ctx context.Context, merchantPaymentID string) (RawBody, error) {
	id := strings.TrimSpace(merchantPaymentID)
	if id == "" {
		return RawBody{}, fmt.Errorf("%w: merchant payment id is empty", ErrMalformedResponse)
	}

	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + paymentDetailsPathPrefix + url.PathEscape(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return RawBody{}, fmt.Errorf("payments: build request: %w", err)
	}
	if err := c.sign(req); err != nil {
		return RawBody{}, fmt.Errorf("payments: sign request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RawBody{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return RawBody{}, fmt.Errorf("%w: read body: %v", ErrGatewayUnavailable, err)
	}
	if len(strings.TrimSpace(string(payload))) == 0 {
		return RawBody{}, fmt.Errorf("%w: empty body (http %d)", ErrMalformedResponse, resp.StatusCode)
	}

	var envelope rawEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return RawBody{}, fmt.Errorf("%w: decode body (http %d): %v", ErrMalformedResponse, resp.StatusCode, err)
	}

	return RawBody{
		ResultInfo: envelope.ResultInfo,
		Data:       canonicalizeData(envelope.Data),
	}, nil
}

// canonicalizeData folds the provider's object-or-array data field into a
// slice. Anything that is neither shape yields nil, which downstream
// classification treats as inconclusive rather than an error.
func canonicalizeData(raw json.RawMessage) []PaymentData {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	switch trimmed[0] {
	case '{':
		var one PaymentData
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil
		}
		return []PaymentData{one}
	case '[':
		var many []PaymentData
		if err := json.Unmarshal(raw, &many); err != nil {
			return nil
		}
		return many
	default:
		return nil
	}
}

// sign attaches the provider's HMAC authorization header. The signature
// covers path, method, nonce, epoch and the body digest (fixed markers for a
// bodyless GET).
func (c *Client) sign(req *http.Request) error {
	nonce, err := newNonce()
	if err != nil {
		return err
	}
	epoch := strconv.FormatInt(c.now().Unix(), 10)

	payload := strings.Join([]string{
		req.URL.EscapedPath(),
		req.Method,
		nonce,
		epoch,
		emptyContentType,
		emptyBodyHash,
	}, "\n")

	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	_, _ = mac.Write([]byte(payload))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("Authorization", strings.Join([]string{
		authHeaderScheme + ":" + c.apiKey,
		signature,
		nonce,
		epoch,
		emptyBodyHash,
	}, ":"))
	if c.merchantID != "" {
		req.Header.Set("X-ASSUME-MERCHANT", c.merchantID)
	}
	return nil
}

func newNonce() (string, error) {
	buf := make([]byte, nonceLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Ensure interface compliance.
var _ Gateway = (*Client)(nil)
