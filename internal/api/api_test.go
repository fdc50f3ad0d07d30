package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mr-tron/base58"
	"github.com/redis/go-redis/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"account_manager/internal/ledger"
	"account_manager/internal/metrics"
	"account_manager/internal/pubkey"
	"account_manager/internal/runtime"
	"account_manager/internal/store"
	"account_manager/internal/testutil"
	"account_manager/internal/utils"
)

const (
	secret   = "test-secret"
	password = "correct horse"
)

type server struct {
	router  *gin.Engine
	program *ledger.Program
	cache   *utils.Cache
}

func newServer(t *testing.T) *server {
	t.Helper()
	return newCachedServer(t, nil)
}

func newCachedServer(t *testing.T, cache *utils.Cache) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	l := logrus.New()
	l.SetOutput(io.Discard)
	log := logrus.NewEntry(l)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	bank := runtime.NewBank(store.NewMemory(), runtime.DefaultRent(), runtime.WithLogger(log))
	prog := ledger.New(ledger.DefaultProgramID, bank, ledger.WithLogger(log), ledger.WithObserver(m))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	r := gin.New()
	RegisterRoutes(r, Deps{
		Program:              prog,
		Cache:                cache,
		JWTSecret:            secret,
		OperatorUser:         "operator",
		OperatorPasswordHash: string(hash),
		Metrics:              promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return &server{router: r, program: prog, cache: cache}
}

func (s *server) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// login runs the challenge flow for a fresh key and returns its wallet and session.
func (s *server) login(t *testing.T) (pubkey.Pubkey, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	wallet, err := pubkey.FromBytes(pub)
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/session/challenge", "", gin.H{"wallet": wallet.String()})
	require.Equal(t, http.StatusOK, w.Code)
	challenge := decode(t, w)["challenge"].(string)

	sig := ed25519.Sign(priv, []byte(challenge))
	w = s.do(t, http.MethodPost, "/session", "", gin.H{"challenge": challenge, "signature": base58.Encode(sig)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return wallet, decode(t, w)["token"].(string)
}

func (s *server) operator(t *testing.T) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/operator/login", "", gin.H{"username": "operator", "password": password})
	require.Equal(t, http.StatusOK, w.Code)
	return decode(t, w)["token"].(string)
}

func (s *server) airdrop(t *testing.T, wallet pubkey.Pubkey, lamports uint64) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/admin/airdrop", s.operator(t), gin.H{"wallet": wallet.String(), "lamports": lamports})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestSessionRejectsForeignSignature(t *testing.T) {
	s := newServer(t)
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, other, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	wallet, err := pubkey.FromBytes(pub)
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/session/challenge", "", gin.H{"wallet": wallet.String()})
	require.Equal(t, http.StatusOK, w.Code)
	challenge := decode(t, w)["challenge"].(string)

	sig := ed25519.Sign(other, []byte(challenge))
	w = s.do(t, http.MethodPost, "/session", "", gin.H{"challenge": challenge, "signature": base58.Encode(sig)})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionFailsClosedWhenReplayStoreIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	s := newCachedServer(t, utils.NewCache(rdb, time.Minute))

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	wallet, err := pubkey.FromBytes(pub)
	require.NoError(t, err)
	w := s.do(t, http.MethodPost, "/session/challenge", "", gin.H{"wallet": wallet.String()})
	require.Equal(t, http.StatusOK, w.Code)
	challenge := decode(t, w)["challenge"].(string)

	sig := ed25519.Sign(priv, []byte(challenge))
	w = s.do(t, http.MethodPost, "/session", "", gin.H{"challenge": challenge, "signature": base58.Encode(sig)})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, decode(t, w), "token")
}

func TestChallengeRejectsBadWallet(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, "/session/challenge", "", gin.H{"wallet": "0OIl"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOperatorLogin(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, "/operator/login", "", gin.H{"username": "operator", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(t, http.MethodPost, "/operator/login", "", gin.H{"username": "someone", "password": password})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDepositWithdrawFlow(t *testing.T) {
	s := newServer(t)
	wallet, token := s.login(t)
	s.airdrop(t, wallet, 10_000_000_000)

	w := s.do(t, http.MethodGet, "/account", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ledger.CodeAccountNotFound, decode(t, w)["code"])

	w = s.do(t, http.MethodPost, "/account/deposit", token, gin.H{"amount": 1_000_000_000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	receipt := decode(t, w)["receipt"].(map[string]any)
	assert.Equal(t, true, receipt["initialized"])

	w = s.do(t, http.MethodGet, "/account", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	account := decode(t, w)["account"].(map[string]any)
	assert.Equal(t, 1_000_000_000.0, account["record"].(map[string]any)["balance"])
	assert.Equal(t, wallet.String(), account["record"].(map[string]any)["owner"])

	w = s.do(t, http.MethodPost, "/account/withdraw", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	receipt = decode(t, w)["receipt"].(map[string]any)
	assert.Equal(t, 100_000_000.0, receipt["amount"])

	reserve := runtime.DefaultRent().MinimumBalance(49)
	w = s.do(t, http.MethodGet, "/wallet", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(10_000_000_000-1_000_000_000+100_000_000-reserve), decode(t, w)["lamports"])

	w = s.do(t, http.MethodGet, "/account/transactions?page_size=10", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode(t, w)
	assert.Equal(t, 3.0, history["total"])
	txs := history["transactions"].([]any)
	assert.Equal(t, "withdraw", txs[0].(map[string]any)["kind"])
}

func TestCachedViewsFollowWrites(t *testing.T) {
	s := newCachedServer(t, utils.NewCache(testutil.SetupRedis(t), time.Minute))
	ctx := context.Background()
	wallet, token := s.login(t)
	s.airdrop(t, wallet, 10_000_000_000)
	w := s.do(t, http.MethodPost, "/account/deposit", token, gin.H{"amount": 1_000_000_000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/account", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["cached"])
	w = s.do(t, http.MethodGet, "/account", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["cached"])

	// A reader that resolved its key and read the store before the next
	// deposit, then stored its result after the deposit invalidated.
	key, ok := viewKey(ctx, s.cache, wallet, "account")
	require.True(t, ok)
	stale, err := s.program.Fetch(ctx, wallet)
	require.NoError(t, err)

	w = s.do(t, http.MethodPost, "/account/deposit", token, gin.H{"amount": 500_000_000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, s.cache.Set(ctx, key, stale))

	w = s.do(t, http.MethodGet, "/account", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, 1_500_000_000.0, body["account"].(map[string]any)["record"].(map[string]any)["balance"])

	w = s.do(t, http.MethodGet, "/account/transactions", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3.0, decode(t, w)["total"])
}

func TestChallengeIsSingleUse(t *testing.T) {
	s := newCachedServer(t, utils.NewCache(testutil.SetupRedis(t), time.Minute))
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	wallet, err := pubkey.FromBytes(pub)
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/session/challenge", "", gin.H{"wallet": wallet.String()})
	require.Equal(t, http.StatusOK, w.Code)
	challenge := decode(t, w)["challenge"].(string)
	body := gin.H{"challenge": challenge, "signature": base58.Encode(ed25519.Sign(priv, []byte(challenge)))}

	w = s.do(t, http.MethodPost, "/session", "", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/session", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, decode(t, w), "token")
}

func TestErrorStatuses(t *testing.T) {
	s := newServer(t)
	wallet, token := s.login(t)

	w := s.do(t, http.MethodPost, "/account/withdraw", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/account/deposit", token, gin.H{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ledger.CodeInvalidAmount, decode(t, w)["code"])

	w = s.do(t, http.MethodPost, "/account/deposit", token, gin.H{"amount": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ledger.CodeRentReserveUnaffordable, decode(t, w)["code"])

	s.airdrop(t, wallet, 10_000_000_000)
	other, _ := s.login(t)
	foreign, _, err := s.program.Derive(other)
	require.NoError(t, err)
	w = s.do(t, http.MethodPost, "/account/deposit", token, gin.H{"amount": 5, "account": foreign.String()})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ledger.CodeSeedsMismatch, decode(t, w)["code"])
}

func TestRoutesRequireTheRightRole(t *testing.T) {
	s := newServer(t)
	_, token := s.login(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/account", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/admin/accounts", token, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/account", s.operator(t), nil).Code)
}

func TestAdminListings(t *testing.T) {
	s := newServer(t)
	wallet, token := s.login(t)
	s.airdrop(t, wallet, 10_000_000_000)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/account/deposit", token, gin.H{"amount": 7}).Code)

	op := s.operator(t)
	w := s.do(t, http.MethodGet, "/admin/accounts", op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, 1.0, body["total"])
	rec := body["accounts"].([]any)[0].(map[string]any)["record"].(map[string]any)
	assert.Equal(t, 7.0, rec["balance"])

	w = s.do(t, http.MethodGet, "/admin/transactions/"+wallet.String(), op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, decode(t, w)["total"])

	w = s.do(t, http.MethodPost, "/admin/airdrop", op, gin.H{"wallet": wallet.String(), "lamports": uint64(1) << 63})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, "/admin/airdrop", op, gin.H{"wallet": wallet.String(), "lamports": uint64(1) << 63})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeriveIsPublic(t *testing.T) {
	s := newServer(t)
	wallet, _ := s.login(t)
	addr, bump, err := s.program.Derive(wallet)
	require.NoError(t, err)

	w := s.do(t, http.MethodGet, "/pda/"+wallet.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, addr.String(), body["account"])
	assert.Equal(t, float64(bump), body["bump"])

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/pda/nope", "", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	_, token := s.login(t)
	s.do(t, http.MethodPost, "/account/withdraw", token, nil)

	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `ledger_operations_total{code="AccountNotFound",kind="withdraw"} 1`)
}

func TestSessionTokensAreWalletScoped(t *testing.T) {
	s := newServer(t)
	token, err := utils.GenerateJWT("not-a-wallet", utils.RoleWallet, secret)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/wallet", token, nil).Code)
}
