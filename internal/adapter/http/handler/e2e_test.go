package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"otp-wallet-ledger/config"
	"otp-wallet-ledger/internal/adapter/http/handler"
	"otp-wallet-ledger/internal/adapter/provider"
	redisStore "otp-wallet-ledger/internal/adapter/storage/redis"
	"otp-wallet-ledger/internal/core/domain"
	"otp-wallet-ledger/internal/core/ports"
	"otp-wallet-ledger/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	e2eOTP        = "482913"
	e2eAdminPhone = "9999999999"
	e2eUserAgent  = "Coinremitter/api"
)

// testApp is the full HTTP stack over in-memory repositories, miniredis and
// stub collaborator servers.
type testApp struct {
	server  *httptest.Server
	redis   *miniredis.Miniredis
	store   *memStore
	otpHits atomic.Int64
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
	Message   string          `json:"message"`
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app := &testApp{store: newMemStore()}
	app.redis = miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: app.redis.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	bot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.otpHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"otp":%q}`, e2eOTP)
	}))
	t.Cleanup(bot.Close)

	var addrSeq atomic.Int64
	coinProvider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := addrSeq.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"flag":1,"msg":"ok","data":{"address":"TADDR%04d"}}`, n)
	}))
	t.Cleanup(coinProvider.Close)

	log := zerolog.Nop()
	httpClient := provider.NewHTTPClient(2 * time.Second)
	policies := config.RateLimitConfig{
		Global:  config.Policy{Limit: 60, Window: 600 * time.Second},
		Phone:   config.Policy{Limit: 4, Window: time.Minute},
		IP:      config.Policy{Limit: 5, Window: time.Minute},
		Blanket: config.Policy{Limit: 1000, Window: time.Minute},
	}

	accounts := memAccountRepo{app.store}
	wallets := memWalletRepo{app.store}
	txns := memTransactionRepo{app.store}
	intents := memIntentRepo{app.store}

	limiter := service.NewRateLimitService(redisStore.NewCounterStore(rdb), policies, log)
	otpSvc := service.NewOTPService(
		limiter,
		provider.NewOTPDeliveryClient(bot.URL, "signup-key", httpClient),
		redisStore.NewOTPCache(rdb),
		accounts,
		15*time.Minute,
		log,
	)
	tokenSvc := service.NewJWTTokenService("e2e-secret-key-for-tests-only-32b", time.Hour, "otp-wallet-ledger")
	hashSvc := service.NewArgon2HashServiceWithParams(service.Argon2Params{Memory: 8 * 1024, Time: 1, Threads: 1, KeyLen: 32})

	router := handler.SetupRouter(handler.RouterDeps{
		OTPSvc:         otpSvc,
		AuthSvc:        service.NewAuthService(otpSvc, accounts, wallets, hashSvc, tokenSvc, app.store, log),
		LedgerSvc:      service.NewLedgerService(wallets, txns, app.store, log),
		PaymentSvc:     service.NewPaymentService(intents, provider.NewAddressClient(coinProvider.URL, "api-key", "pw", httpClient), log),
		BankAccountSvc: service.NewBankAccountService(memBankRepo{app.store}, app.store, log),
		ReconcilerSvc:  service.NewReconcilerService(intents, wallets, txns, app.store, log),
		TokenSvc:       tokenSvc,
		RateLimitStore: redisStore.NewRateLimitStore(rdb),
		RateLimit:      policies.Blanket,
		Admin:          config.AdminConfig{Phones: []string{e2eAdminPhone}},
		WebhookAgent:   e2eUserAgent,
		HealthCheckers: []ports.HealthChecker{redisStore.NewHealthCheck(rdb)},
		AuditSvc:       service.NewAuditService(memAuditRepo{app.store}, log),
		Logger:         log,
	})

	app.server = httptest.NewServer(router)
	t.Cleanup(app.server.Close)
	return app
}

func (a *testApp) call(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	return a.callWithHeaders(t, method, path, token, body, nil)
}

func (a *testApp) callWithHeaders(t *testing.T, method, path, token string, body interface{}, headers http.Header) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (a *testApp) webhook(t *testing.T, form url.Values) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.server.URL+"/v1/webhook", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", e2eUserAgent)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

// signUp runs send-otp then verify-otp and returns the bearer token.
func (a *testApp) signUp(t *testing.T, phone string) (string, uuid.UUID) {
	t.Helper()
	status, env := a.call(t, http.MethodPost, "/v1/send-otp", "", gin.H{"phone": phone})
	require.Equal(t, http.StatusOK, status, "send-otp: %+v", env)
	require.True(t, env.Success)

	status, env = a.call(t, http.MethodPost, "/v1/verify-otp", "", gin.H{
		"phone":    phone,
		"otp":      e2eOTP,
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, status, "verify-otp: %+v", env)

	var auth struct {
		Token     string `json:"token"`
		AccountID string `json:"account_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	return auth.Token, uuid.MustParse(auth.AccountID)
}

func (a *testApp) walletOf(t *testing.T, token string) (string, string) {
	t.Helper()
	status, env := a.call(t, http.MethodGet, "/v1/wallet", token, nil)
	require.Equal(t, http.StatusOK, status)
	var w struct {
		WalletID string `json:"wallet_id"`
		Balance  string `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &w))
	return w.WalletID, w.Balance
}

func TestE2E_LedgerLifecycle(t *testing.T) {
	app := newTestApp(t)

	userToken, userID := app.signUp(t, "9876543210")
	adminToken, _ := app.signUp(t, e2eAdminPhone)

	walletID, balance := app.walletOf(t, userToken)
	require.NotEmpty(t, walletID)
	assert.Equal(t, "0.00", balance)

	// A pending deposit does not move the balance.
	status, env := app.call(t, http.MethodPost, "/v1/transactions/add-money", userToken, gin.H{
		"transaction_id": "UTR1234567",
		"amount":         "100",
	})
	require.Equal(t, http.StatusCreated, status, "%+v", env)
	_, balance = app.walletOf(t, userToken)
	assert.Equal(t, "0.00", balance)

	// The same reference twice is a conflict.
	_, env = app.call(t, http.MethodPost, "/v1/transactions/add-money", userToken, gin.H{
		"transaction_id": "UTR1234567",
		"amount":         "100",
	})
	assert.Equal(t, "CONF_002", env.ErrorCode)

	// The admin sees it pending and completes it, exactly once.
	_, env = app.call(t, http.MethodGet, "/v1/admin/pending-transactions", adminToken, nil)
	assert.Contains(t, string(env.Data), "UTR1234567")

	complete := gin.H{"wallet_id": walletID, "transaction_id": "UTR1234567"}
	status, env = app.call(t, http.MethodPost, "/v1/admin/update-ts-status", adminToken, complete)
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success, "%+v", env)
	_, balance = app.walletOf(t, userToken)
	assert.Equal(t, "100.00", balance)

	_, env = app.call(t, http.MethodPost, "/v1/admin/update-ts-status", adminToken, complete)
	assert.Equal(t, "CONF_003", env.ErrorCode)
	_, balance = app.walletOf(t, userToken)
	assert.Equal(t, "100.00", balance)

	// Users cannot complete their own deposits.
	status, _ = app.call(t, http.MethodPost, "/v1/admin/update-ts-status", userToken, complete)
	assert.Equal(t, http.StatusForbidden, status)

	// Withdrawals debit immediately and never overdraw.
	status, env = app.call(t, http.MethodPost, "/v1/transactions/withdraw", userToken, gin.H{"amount": 60})
	require.Equal(t, http.StatusCreated, status, "%+v", env)
	_, balance = app.walletOf(t, userToken)
	assert.Equal(t, "40.00", balance)

	_, env = app.call(t, http.MethodPost, "/v1/transactions/withdraw", userToken, gin.H{"amount": 50})
	assert.Equal(t, "CONF_001", env.ErrorCode)
	_, balance = app.walletOf(t, userToken)
	assert.Equal(t, "40.00", balance)

	// A 25 payment settles a 20 intent; the replay finds nothing pending.
	status, env = app.call(t, http.MethodPost, "/v1/deposit-address", userToken, gin.H{"amount": 20})
	require.Equal(t, http.StatusCreated, status, "%+v", env)
	var intent struct {
		Address   string `json:"address"`
		QRCodeURL string `json:"qr_code_url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &intent))
	assert.Equal(t, domain.QRCodeURL(intent.Address), intent.QRCodeURL)

	notice := url.Values{"address": {intent.Address}, "txid": {"0xfeed"}, "amount": {"25"}}
	status, env = app.webhook(t, notice)
	require.Equal(t, http.StatusOK, status, "%+v", env)
	_, balance = app.walletOf(t, userToken)
	assert.Equal(t, "65.00", balance)

	status, env = app.webhook(t, notice)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NF_002", env.ErrorCode)
	assert.True(t, decimal.RequireFromString("65").Equal(app.store.balanceOf(userID)))

	_, env = app.call(t, http.MethodGet, "/v1/deposit-intents", userToken, nil)
	assert.Contains(t, string(env.Data), `"status":"completed"`)

	assert.Eventually(t, func() bool {
		actions := app.store.auditActions()
		return containsAll(actions,
			domain.AuditActionSignIn,
			domain.AuditActionAddMoney,
			domain.AuditActionCompleteTx,
			domain.AuditActionWithdraw,
			domain.AuditActionDepositAddress,
			domain.AuditActionWebhookCredit,
		)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestE2E_UnderpaidWebhookLeavesIntentPending(t *testing.T) {
	app := newTestApp(t)
	token, userID := app.signUp(t, "9876543210")

	_, env := app.call(t, http.MethodPost, "/v1/deposit-address", token, gin.H{"amount": 20})
	var intent struct {
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &intent))

	status, env := app.webhook(t, url.Values{"address": {intent.Address}, "txid": {"0x1"}, "amount": {"19.99"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "CONF_005", env.ErrorCode)
	assert.True(t, app.store.balanceOf(userID).IsZero())

	status, _ = app.webhook(t, url.Values{"address": {intent.Address}, "txid": {"0x2"}, "amount": {"20"}})
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, decimal.RequireFromString("20").Equal(app.store.balanceOf(userID)))
}

// A caller may quote the on-chain txid as their add-money reference; the
// provider's credit for that txid must still settle.
func TestE2E_WebhookTxIDMatchingDepositReference(t *testing.T) {
	app := newTestApp(t)
	token, userID := app.signUp(t, "9876543210")

	status, env := app.call(t, http.MethodPost, "/v1/transactions/add-money", token, gin.H{
		"transaction_id": "feedbeef01",
		"amount":         "20",
	})
	require.Equal(t, http.StatusCreated, status, "%+v", env)

	_, env = app.call(t, http.MethodPost, "/v1/deposit-address", token, gin.H{"amount": 20})
	var intent struct {
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &intent))

	status, env = app.webhook(t, url.Values{"address": {intent.Address}, "txid": {"feedbeef01"}, "amount": {"25"}})
	require.Equal(t, http.StatusOK, status, "%+v", env)
	assert.True(t, env.Success)
	assert.True(t, decimal.RequireFromString("25").Equal(app.store.balanceOf(userID)))

	// The caller's own deposit is untouched and still pending.
	_, env = app.call(t, http.MethodGet, "/v1/wallet", token, nil)
	assert.Contains(t, string(env.Data), `"transaction_id":"feedbeef01"`)
	assert.Contains(t, string(env.Data), `"status":"pending"`)
}

// The same txid against a second intent is refused with a non-2xx.
func TestE2E_WebhookTxIDReusedAcrossIntents(t *testing.T) {
	app := newTestApp(t)
	token, userID := app.signUp(t, "9876543210")

	addresses := make([]string, 2)
	for i := range addresses {
		_, env := app.call(t, http.MethodPost, "/v1/deposit-address", token, gin.H{"amount": 20})
		var intent struct {
			Address string `json:"address"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &intent))
		addresses[i] = intent.Address
	}

	status, _ := app.webhook(t, url.Values{"address": {addresses[0]}, "txid": {"0xaaa"}, "amount": {"20"}})
	require.Equal(t, http.StatusOK, status)

	status, env := app.webhook(t, url.Values{"address": {addresses[1]}, "txid": {"0xaaa"}, "amount": {"20"}})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONF_006", env.ErrorCode)
	assert.True(t, decimal.RequireFromString("20").Equal(app.store.balanceOf(userID)))
}

func TestE2E_SubCentUnderpaymentRejected(t *testing.T) {
	app := newTestApp(t)
	token, userID := app.signUp(t, "9876543210")

	_, env := app.call(t, http.MethodPost, "/v1/deposit-address", token, gin.H{"amount": 20})
	var intent struct {
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &intent))

	status, env := app.webhook(t, url.Values{"address": {intent.Address}, "txid": {"0x1"}, "amount": {"19.995"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "CONF_005", env.ErrorCode)
	assert.True(t, app.store.balanceOf(userID).IsZero())
}

func TestE2E_MalformedWebhookIs400(t *testing.T) {
	app := newTestApp(t)

	for name, form := range map[string]url.Values{
		"missing txid":    {"address": {"TADDR0001"}, "amount": {"20"}},
		"missing address": {"txid": {"0x1"}, "amount": {"20"}},
		"bad amount":      {"address": {"TADDR0001"}, "txid": {"0x1"}, "amount": {"twenty"}},
	} {
		t.Run(name, func(t *testing.T) {
			status, env := app.webhook(t, form)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "VAL_005", env.ErrorCode)
		})
	}
}

// Rotating X-Forwarded-For from one peer must not reset its per-IP budget.
func TestE2E_ForwardedForDoesNotBypassIPLimit(t *testing.T) {
	app := newTestApp(t)

	accepted := 0
	for i := 0; i < 10; i++ {
		headers := http.Header{"X-Forwarded-For": {fmt.Sprintf("198.51.100.%d", i+1)}}
		phone := fmt.Sprintf("98765432%02d", 10+i)
		status, env := app.callWithHeaders(t, http.MethodPost, "/v1/send-otp", "", gin.H{"phone": phone}, headers)
		if status == http.StatusOK {
			accepted++
			continue
		}
		assert.Equal(t, http.StatusTooManyRequests, status)
		assert.Equal(t, "RATE_001", env.ErrorCode)
	}

	assert.Equal(t, 5, accepted)
	assert.Equal(t, int64(5), app.otpHits.Load())
}

func TestE2E_OTPFlow(t *testing.T) {
	app := newTestApp(t)
	phone := "9876543210"

	status, _ := app.call(t, http.MethodPost, "/v1/send-otp", "", gin.H{"phone": phone})
	require.Equal(t, http.StatusOK, status)

	// Wrong code keeps the entry.
	_, env := app.call(t, http.MethodPost, "/v1/verify-otp", "", gin.H{"phone": phone, "otp": "000000", "password": "correct-horse"})
	assert.Equal(t, "OTP_002", env.ErrorCode)

	status, env = app.call(t, http.MethodPost, "/v1/verify-otp", "", gin.H{"phone": phone, "otp": e2eOTP, "password": "correct-horse"})
	require.Equal(t, http.StatusCreated, status, "%+v", env)

	// Replay after success.
	_, env = app.call(t, http.MethodPost, "/v1/verify-otp", "", gin.H{"phone": phone, "otp": e2eOTP})
	assert.Equal(t, "OTP_001", env.ErrorCode)

	// Password login works afterwards.
	status, env = app.call(t, http.MethodPost, "/v1/login", "", gin.H{"phone": phone, "password": "correct-horse"})
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	_, env = app.call(t, http.MethodPost, "/v1/login", "", gin.H{"phone": phone, "password": "wrong-horse"})
	assert.Equal(t, "AUTH_001", env.ErrorCode)
}

func TestE2E_OTPThrottle(t *testing.T) {
	app := newTestApp(t)
	phone := "9876543210"

	for i := 0; i < 4; i++ {
		status, env := app.call(t, http.MethodPost, "/v1/send-otp", "", gin.H{"phone": phone})
		require.Equal(t, http.StatusOK, status, "request %d: %+v", i+1, env)
	}

	status, env := app.call(t, http.MethodPost, "/v1/send-otp", "", gin.H{"phone": phone})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_001", env.ErrorCode)
	assert.Equal(t, int64(4), app.otpHits.Load())

	// The window slides.
	app.redis.FastForward(61 * time.Second)
	status, _ = app.call(t, http.MethodPost, "/v1/send-otp", "", gin.H{"phone": phone})
	assert.Equal(t, http.StatusOK, status)
}

func TestE2E_ConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	app := newTestApp(t)
	userToken, userID := app.signUp(t, "9876543210")
	adminToken, _ := app.signUp(t, e2eAdminPhone)

	walletID, _ := app.walletOf(t, userToken)
	_, env := app.call(t, http.MethodPost, "/v1/transactions/add-money", userToken, gin.H{"transaction_id": "UTR7654321", "amount": 100})
	require.True(t, env.Success)
	_, env = app.call(t, http.MethodPost, "/v1/admin/update-ts-status", adminToken, gin.H{"wallet_id": walletID, "transaction_id": "UTR7654321"})
	require.True(t, env.Success)

	const workers = 25
	var ok, rejected atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, env := app.call(t, http.MethodPost, "/v1/transactions/withdraw", userToken, gin.H{"amount": 10})
			switch {
			case env.Success:
				ok.Add(1)
			case env.ErrorCode == "CONF_001":
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), ok.Load())
	assert.Equal(t, int64(workers-10), rejected.Load())
	assert.True(t, app.store.balanceOf(userID).IsZero())
}

func TestE2E_ConcurrentBankAccountAddsRespectLimit(t *testing.T) {
	app := newTestApp(t)
	userToken, _ := app.signUp(t, "9876543210")

	const workers = 8
	var ok, limited atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			_, env := app.call(t, http.MethodPost, "/v1/bank-accounts", userToken, gin.H{
				"account_no":   fmt.Sprintf("10020030040%d", i),
				"account_name": "Asha Rao",
				"ifsc":         "SBIN0001234",
			})
			switch {
			case env.Success:
				ok.Add(1)
			case env.ErrorCode == "CONF_004":
				limited.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(domain.MaxBankAccounts), ok.Load())
	assert.Equal(t, int64(workers-domain.MaxBankAccounts), limited.Load())

	_, env := app.call(t, http.MethodGet, "/v1/bank-accounts", userToken, nil)
	var accounts []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &accounts))
	assert.Len(t, accounts, domain.MaxBankAccounts)
}

func TestE2E_Health(t *testing.T) {
	app := newTestApp(t)

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	app.redis.Close()
	resp2, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}

func containsAll(have []domain.AuditAction, want ...domain.AuditAction) bool {
	set := make(map[domain.AuditAction]bool, len(have))
	for _, a := range have {
		set[a] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}
