package auth

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"powtoken/internal/accounts"
	"powtoken/internal/domain"
	"powtoken/internal/idhash"
)

// Request headers carrying a signed call.
const (
	HeaderAccount   = "X-Account"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)

// DefaultMaxSkew bounds the age of a signed request.
const DefaultMaxSkew = 5 * time.Minute

// DefaultSeenSize bounds the number of request IDs remembered for replay checks.
const DefaultSeenSize = 100_000

var (
	// ErrMissingCredentials is returned when a header is absent or malformed.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrStaleRequest is returned when the timestamp is outside the allowed skew
	// or the same signed request was already accepted.
	ErrStaleRequest = errors.New("stale request")

	// ErrBadSignature is returned when the signature does not verify.
	ErrBadSignature = errors.New("bad signature")
)

// KeyLookup resolves an account's public key.
type KeyLookup interface {
	PublicKey(ctx context.Context, name domain.AccountName) (ed25519.PublicKey, error)
}

// Credentials are the signing headers of one request.
type Credentials struct {
	Account     domain.AccountName
	TimestampMs int64
	Signature   string
}

// ParseCredentials reads the signing headers through get.
func ParseCredentials(get func(string) string) (Credentials, error) {
	account := domain.AccountName(get(HeaderAccount))
	if !account.IsValid() {
		return Credentials{}, fmt.Errorf("%w: %s", ErrMissingCredentials, HeaderAccount)
	}
	ts, err := strconv.ParseInt(get(HeaderTimestamp), 10, 64)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %s", ErrMissingCredentials, HeaderTimestamp)
	}
	sig := get(HeaderSignature)
	if sig == "" {
		return Credentials{}, fmt.Errorf("%w: %s", ErrMissingCredentials, HeaderSignature)
	}
	return Credentials{Account: account, TimestampMs: ts, Signature: sig}, nil
}

// Verifier checks signed requests against registered keys.
// Each accepted request ID is remembered for twice the skew window, so a
// captured request cannot be sent again while its timestamp is still valid.
type Verifier struct {
	keys    KeyLookup
	maxSkew time.Duration
	now     func() time.Time

	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

// NewVerifier creates a verifier. maxSkew <= 0 means DefaultMaxSkew.
func NewVerifier(keys KeyLookup, maxSkew time.Duration) *Verifier {
	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}
	return &Verifier{
		keys:    keys,
		maxSkew: maxSkew,
		now:     time.Now,
		seen:    expirable.NewLRU[string, struct{}](DefaultSeenSize, nil, 2*maxSkew),
	}
}

// Verify checks that creds sign (method, path, body).
func (v *Verifier) Verify(ctx context.Context, creds Credentials, method, path string, body []byte) error {
	skew := v.now().Sub(time.UnixMilli(creds.TimestampMs))
	if skew < -v.maxSkew || skew > v.maxSkew {
		return fmt.Errorf("%w: skew %s", ErrStaleRequest, skew.Round(time.Second))
	}

	pub, err := v.keys.PublicKey(ctx, creds.Account)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	msg := RequestMessage(creds.Account, method, path, body, creds.TimestampMs)
	if !accounts.Verify(pub, msg, creds.Signature) {
		return ErrBadSignature
	}

	id := string(msg)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.seen.Contains(id) {
		return fmt.Errorf("%w: request %s already accepted", ErrStaleRequest, id)
	}
	v.seen.Add(id, struct{}{})
	return nil
}

// RequestMessage returns the bytes an account signs for a request.
func RequestMessage(account domain.AccountName, method, path string, body []byte, timestampMs int64) []byte {
	id := idhash.ComputeRequestID(account.String(), method, path, idhash.ComputeBodyHash(body), timestampMs)
	return []byte(id)
}

// SignRequest produces the signature header value for a request.
func SignRequest(priv ed25519.PrivateKey, account domain.AccountName, method, path string, body []byte, timestampMs int64) string {
	return accounts.Sign(priv, RequestMessage(account, method, path, body, timestampMs))
}
