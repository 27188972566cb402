package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powtoken/internal/accounts"
	"powtoken/internal/auth"
	"powtoken/internal/config"
	"powtoken/internal/domain"
	"powtoken/internal/ledger"
	"powtoken/internal/mining"
	"powtoken/internal/notify"
	"powtoken/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	handler http.Handler
	dir     *accounts.Directory
	keys    map[domain.AccountName]accounts.KeyPair
	lastTs  int64
}

func newTestServer(t *testing.T, mode string) *testServer {
	t.Helper()
	ctx := context.Background()
	stores := memory.NewStores()
	dir := accounts.NewDirectory(stores.Accounts, nil)

	keys := make(map[domain.AccountName]accounts.KeyPair)
	for _, name := range []domain.AccountName{"powtoken", "issuer", "alice", "bob"} {
		kp, err := accounts.GenerateKey()
		require.NoError(t, err)
		_, err = dir.Register(ctx, name, kp.PublicKey)
		require.NoError(t, err)
		keys[name] = kp
	}

	l := ledger.New(ledger.Options{
		Stores:     stores,
		Accounts:   dir,
		Authorizer: auth.Authorizer{},
		Owner:      "powtoken",
		Notifier:   notify.NewJournal("memory", stores.Events, nil),
	})
	s := New(Options{
		Ledger:   l,
		Miner:    mining.NewEngine(l, mining.DefaultConfig(), nil),
		Accounts: dir,
		AuthMode: mode,
	})
	return &testServer{handler: s.Handler(), dir: dir, keys: keys}
}

func (ts *testServer) do(t *testing.T, method, path string, as domain.AccountName, body any) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		kp := ts.keys[as]
		priv, err := accounts.ParsePrivateKey(kp.PrivateKey)
		require.NoError(t, err)
		now := time.Now().UnixMilli()
		if now <= ts.lastTs {
			now = ts.lastTs + 1
		}
		ts.lastTs = now
		req.Header.Set(auth.HeaderAccount, as.String())
		req.Header.Set(auth.HeaderTimestamp, strconv.FormatInt(now, 10))
		req.Header.Set(auth.HeaderSignature, auth.SignRequest(priv, as, method, path, raw, now))
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, config.AuthSignature)
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_TokenLifecycle(t *testing.T) {
	ts := newTestServer(t, config.AuthSignature)

	rec := ts.do(t, http.MethodPost, "/v1/create", "powtoken", gin.H{"issuer": "issuer", "maximum_supply": "1000000.0000 TOK"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tok := decode[tokenView](t, rec)
	assert.Equal(t, "4,TOK", tok.Symbol)
	assert.Equal(t, "0.0000 TOK", tok.Supply)

	rec = ts.do(t, http.MethodPost, "/v1/issue", "issuer", gin.H{"to": "alice", "quantity": "1000.0000 TOK", "memo": "genesis"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/v1/transfer", "alice", gin.H{"from": "alice", "to": "bob", "quantity": "250.0000 TOK"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "750.0000 TOK", decode[map[string]string](t, rec)["balance"])

	rec = ts.do(t, http.MethodGet, "/v1/accounts/bob/balances/TOK", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "250.0000 TOK", decode[balanceView](t, rec).Balance)

	rec = ts.do(t, http.MethodGet, "/v1/tokens/TOK/holders", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]balanceView](t, rec), 2)

	rec = ts.do(t, http.MethodGet, "/v1/tokens/TOK/supply", "", nil)
	assert.Equal(t, "1000.0000 TOK", decode[map[string]string](t, rec)["supply"])

	rec = ts.do(t, http.MethodGet, "/v1/tokens/TOK/events", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]notify.EventMessage](t, rec)
	require.Len(t, events, 4)
	assert.Equal(t, string(domain.EventCreate), events[0].Kind)

	rec = ts.do(t, http.MethodGet, "/v1/accounts/bob/events", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]notify.EventMessage](t, rec), 1)
}

func TestServer_Mine(t *testing.T) {
	ts := newTestServer(t, config.AuthSignature)
	rec := ts.do(t, http.MethodPost, "/v1/create", "powtoken", gin.H{"issuer": "issuer", "maximum_supply": "1000000.0000 TOK"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/v1/tokens/TOK/work", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	work := decode[mining.Work](t, rec)
	assert.Equal(t, uint64(0), work.Height)
	assert.Equal(t, "sha256", work.Hasher)

	// A fresh token starts at the easiest target, so any nonce passes.
	rec = ts.do(t, http.MethodPost, "/v1/mine", "alice", gin.H{"nonce": "01", "target_token": "0.0000 TOK", "miner": "alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[mining.Result](t, rec)
	assert.Equal(t, uint64(1), res.Height)
	assert.Equal(t, "100.0000 TOK", res.Reward.String())

	rec = ts.do(t, http.MethodPost, "/v1/mine", "alice", gin.H{"nonce": "zz", "target_token": "0.0000 TOK", "miner": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/mine", "alice", gin.H{"nonce": "01", "target_token": "0.00 TOK", "miner": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "symbol_mismatch", decode[errorResponse](t, rec).Code)
}

func TestServer_ErrorMapping(t *testing.T) {
	ts := newTestServer(t, config.AuthSignature)
	rec := ts.do(t, http.MethodPost, "/v1/create", "powtoken", gin.H{"issuer": "issuer", "maximum_supply": "100.0000 TOK"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []struct {
		name   string
		method string
		path   string
		as     domain.AccountName
		body   any
		status int
		code   string
	}{
		{"duplicate create", http.MethodPost, "/v1/create", "powtoken", gin.H{"issuer": "issuer", "maximum_supply": "5.0000 TOK"}, http.StatusConflict, "already_exists"},
		{"create by non-owner", http.MethodPost, "/v1/create", "alice", gin.H{"issuer": "alice", "maximum_supply": "5.0000 ABC"}, http.StatusForbidden, "unauthorized"},
		{"issue over max", http.MethodPost, "/v1/issue", "issuer", gin.H{"to": "issuer", "quantity": "101.0000 TOK"}, http.StatusUnprocessableEntity, "supply_exceeded"},
		{"overdrawn", http.MethodPost, "/v1/transfer", "alice", gin.H{"from": "alice", "to": "bob", "quantity": "1.0000 TOK"}, http.StatusUnprocessableEntity, "overdrawn"},
		{"self transfer", http.MethodPost, "/v1/transfer", "alice", gin.H{"from": "alice", "to": "alice", "quantity": "1.0000 TOK"}, http.StatusBadRequest, "self_transfer"},
		{"sign for someone else", http.MethodPost, "/v1/transfer", "bob", gin.H{"from": "alice", "to": "bob", "quantity": "1.0000 TOK"}, http.StatusForbidden, "unauthorized"},
		{"unsigned", http.MethodPost, "/v1/transfer", "", gin.H{"from": "alice", "to": "bob", "quantity": "1.0000 TOK"}, http.StatusUnauthorized, "unauthenticated"},
		{"unknown token", http.MethodGet, "/v1/tokens/NOPE", "", nil, http.StatusNotFound, "not_found"},
		{"unknown account", http.MethodGet, "/v1/accounts/carol", "", nil, http.StatusNotFound, "unknown_account"},
		{"malformed body", http.MethodPost, "/v1/issue", "issuer", gin.H{"quantity": "1.0000 TOK"}, http.StatusBadRequest, "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.as, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[errorResponse](t, rec).Code)
		})
	}
}

func TestServer_TamperedBody(t *testing.T) {
	ts := newTestServer(t, config.AuthSignature)
	priv, err := accounts.ParsePrivateKey(ts.keys["powtoken"].PrivateKey)
	require.NoError(t, err)

	signed := []byte(`{"issuer":"issuer","maximum_supply":"1.0000 TOK"}`)
	sent := []byte(`{"issuer":"alice","maximum_supply":"1.0000 TOK"}`)
	now := time.Now().UnixMilli()

	req := httptest.NewRequest(http.MethodPost, "/v1/create", bytes.NewReader(sent))
	req.Header.Set(auth.HeaderAccount, "powtoken")
	req.Header.Set(auth.HeaderTimestamp, strconv.FormatInt(now, 10))
	req.Header.Set(auth.HeaderSignature, auth.SignRequest(priv, "powtoken", http.MethodPost, "/v1/create", signed, now))

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_ReplayRejected(t *testing.T) {
	ts := newTestServer(t, config.AuthSignature)
	rec := ts.do(t, http.MethodPost, "/v1/create", "powtoken", gin.H{"issuer": "issuer", "maximum_supply": "100.0000 TOK"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, "/v1/issue", "issuer", gin.H{"to": "alice", "quantity": "100.0000 TOK"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	priv, err := accounts.ParsePrivateKey(ts.keys["alice"].PrivateKey)
	require.NoError(t, err)
	body := []byte(`{"from":"alice","to":"bob","quantity":"40.0000 TOK"}`)
	now := time.Now().UnixMilli()
	sig := auth.SignRequest(priv, "alice", http.MethodPost, "/v1/transfer", body, now)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/transfer", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(auth.HeaderAccount, "alice")
		req.Header.Set(auth.HeaderTimestamp, strconv.FormatInt(now, 10))
		req.Header.Set(auth.HeaderSignature, sig)
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		return rec
	}

	rec = send()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = send()
	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
	assert.Equal(t, "unauthenticated", decode[errorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodGet, "/v1/accounts/bob/balances/TOK", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "40.0000 TOK")
}

func TestServer_HeaderMode(t *testing.T) {
	ts := newTestServer(t, config.AuthHeader)

	body, err := json.Marshal(gin.H{"issuer": "issuer", "maximum_supply": "10.0000 TOK"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/create", bytes.NewReader(body))
	req.Header.Set(auth.HeaderAccount, "powtoken")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/v1/create", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_RegisterAccount(t *testing.T) {
	ts := newTestServer(t, config.AuthSignature)
	kp, err := accounts.GenerateKey()
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/v1/accounts", "", gin.H{"name": "carol", "public_key": kp.PublicKey})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "carol", decode[accountView](t, rec).Name)

	rec = ts.do(t, http.MethodPost, "/v1/accounts", "", gin.H{"name": "carol"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/accounts", "", gin.H{"name": "Carol!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
