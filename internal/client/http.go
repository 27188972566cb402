// Package client talks to a ledger server over HTTP and websocket.
package client

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"powtoken/internal/auth"
	"powtoken/internal/domain"
	"powtoken/internal/mining"
	"powtoken/internal/notify"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// ErrNoSigner is returned when an action is sent without signing credentials.
var ErrNoSigner = errors.New("no signing account configured")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger error %d (%s): %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// HTTPClient calls the ledger REST API.
// Reads are retried with exponential backoff; actions are sent once.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64

	account domain.AccountName
	key     ed25519.PrivateKey
	now     func() time.Time

	mu     sync.Mutex
	lastTs int64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithSigner signs actions as account. A nil key sends X-Account only, for
// servers running in header auth mode.
func WithSigner(account domain.AccountName, key ed25519.PrivateKey) ClientOption {
	return func(c *HTTPClient) {
		c.account = account
		c.key = key
	}
}

// NewHTTPClient creates a client for the server at endpoint (e.g. http://localhost:8080).
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    strings.TrimRight(endpoint, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token is the server's view of a token row.
type Token struct {
	Symbol           string `json:"symbol"`
	Supply           string `json:"supply"`
	MaxSupply        string `json:"max_supply"`
	Issuer           string `json:"issuer"`
	Difficulty       string `json:"difficulty"`
	DifficultyBits   int    `json:"difficulty_bits"`
	BlockHeight      uint64 `json:"block_height"`
	PreviousDigest   string `json:"previous_digest"`
	LastRetargetTime int64  `json:"last_retarget_time"`
	CreatedAt        int64  `json:"created_at"`
	UpdatedAt        int64  `json:"updated_at"`
}

// Balance is one holding.
type Balance struct {
	Owner     string `json:"owner"`
	Balance   string `json:"balance"`
	UpdatedAt int64  `json:"updated_at,omitempty"`
}

// Account is a registered participant.
type Account struct {
	Name      string `json:"name"`
	PublicKey string `json:"public_key,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Register adds an account. publicKey may be empty.
func (c *HTTPClient) Register(ctx context.Context, name domain.AccountName, publicKey string) (*Account, error) {
	var acc Account
	body := map[string]string{"name": name.String(), "public_key": publicKey}
	if err := c.send(ctx, http.MethodPost, "/v1/accounts", body, false, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// Account returns a registered account.
func (c *HTTPClient) Account(ctx context.Context, name domain.AccountName) (*Account, error) {
	var acc Account
	if err := c.get(ctx, "/v1/accounts/"+url.PathEscape(name.String()), &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// Balances returns every holding of owner.
func (c *HTTPClient) Balances(ctx context.Context, owner domain.AccountName) ([]Balance, error) {
	var out []Balance
	if err := c.get(ctx, "/v1/accounts/"+url.PathEscape(owner.String())+"/balances", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Balance returns owner's holding of a symbol code.
func (c *HTTPClient) Balance(ctx context.Context, owner domain.AccountName, code string) (domain.Asset, error) {
	var b Balance
	path := "/v1/accounts/" + url.PathEscape(owner.String()) + "/balances/" + url.PathEscape(code)
	if err := c.get(ctx, path, &b); err != nil {
		return domain.Asset{}, err
	}
	return domain.ParseAsset(b.Balance)
}

// Tokens lists every token.
func (c *HTTPClient) Tokens(ctx context.Context) ([]Token, error) {
	var out []Token
	if err := c.get(ctx, "/v1/tokens", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Token returns the row of a symbol code.
func (c *HTTPClient) Token(ctx context.Context, code string) (*Token, error) {
	var tok Token
	if err := c.get(ctx, "/v1/tokens/"+url.PathEscape(code), &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Supply returns the circulating supply of a symbol code.
func (c *HTTPClient) Supply(ctx context.Context, code string) (domain.Asset, error) {
	var out struct {
		Supply string `json:"supply"`
	}
	if err := c.get(ctx, "/v1/tokens/"+url.PathEscape(code)+"/supply", &out); err != nil {
		return domain.Asset{}, err
	}
	return domain.ParseAsset(out.Supply)
}

// Holders lists every holder of a symbol code.
func (c *HTTPClient) Holders(ctx context.Context, code string) ([]Balance, error) {
	var out []Balance
	if err := c.get(ctx, "/v1/tokens/"+url.PathEscape(code)+"/holders", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Work returns the current puzzle of a symbol code.
func (c *HTTPClient) Work(ctx context.Context, code string) (*mining.Work, error) {
	var w mining.Work
	if err := c.get(ctx, "/v1/tokens/"+url.PathEscape(code)+"/work", &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Events returns the journal of a symbol code.
func (c *HTTPClient) Events(ctx context.Context, code string) ([]notify.EventMessage, error) {
	var out []notify.EventMessage
	if err := c.get(ctx, "/v1/tokens/"+url.PathEscape(code)+"/events", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create registers a token. The signer must be the ledger owner.
func (c *HTTPClient) Create(ctx context.Context, issuer domain.AccountName, maxSupply domain.Asset) (*Token, error) {
	var tok Token
	body := map[string]string{"issuer": issuer.String(), "maximum_supply": maxSupply.String()}
	if err := c.send(ctx, http.MethodPost, "/v1/create", body, true, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Issue mints quantity to the issuer and passes it on to to.
func (c *HTTPClient) Issue(ctx context.Context, to domain.AccountName, quantity domain.Asset, memo string) error {
	body := map[string]string{"to": to.String(), "quantity": quantity.String(), "memo": memo}
	return c.send(ctx, http.MethodPost, "/v1/issue", body, true, nil)
}

// Transfer moves quantity between accounts. The signer must be from.
func (c *HTTPClient) Transfer(ctx context.Context, from, to domain.AccountName, quantity domain.Asset, memo string) error {
	body := map[string]string{"from": from.String(), "to": to.String(), "quantity": quantity.String(), "memo": memo}
	return c.send(ctx, http.MethodPost, "/v1/transfer", body, true, nil)
}

// Mine submits a solution for targetToken's symbol.
func (c *HTTPClient) Mine(ctx context.Context, nonce []byte, targetToken domain.Asset, miner domain.AccountName) (*mining.Result, error) {
	var res mining.Result
	body := map[string]string{
		"nonce":        hex.EncodeToString(nonce),
		"target_token": targetToken.String(),
		"miner":        miner.String(),
	}
	if err := c.send(ctx, http.MethodPost, "/v1/mine", body, true, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// get performs a read with retries and exponential backoff.
func (c *HTTPClient) get(ctx context.Context, path string, result interface{}) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		err = c.do(req, result)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests {
			// Client errors are not retried
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// send posts a JSON body once, signing it when signed is set.
func (c *HTTPClient) send(ctx context.Context, method, path string, body interface{}, signed bool, result interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if signed {
		if !c.account.IsValid() {
			return ErrNoSigner
		}
		req.Header.Set(auth.HeaderAccount, c.account.String())
		if c.key != nil {
			ts := c.timestamp()
			req.Header.Set(auth.HeaderTimestamp, strconv.FormatInt(ts, 10))
			req.Header.Set(auth.HeaderSignature, auth.SignRequest(c.key, c.account, method, path, raw, ts))
		}
	}

	return c.do(req, result)
}

// timestamp returns a signing timestamp strictly greater than the previous one,
// so two identical actions from this client never share a request ID.
func (c *HTTPClient) timestamp() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.now().UnixMilli()
	if ts <= c.lastTs {
		ts = c.lastTs + 1
	}
	c.lastTs = ts
	return ts
}

func (c *HTTPClient) do(req *http.Request, result interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
