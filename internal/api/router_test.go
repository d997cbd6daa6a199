package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/wallet-engine/internal/auth"
	"github.com/baharkarakas/wallet-engine/internal/config"
	"github.com/baharkarakas/wallet-engine/internal/fee"
	"github.com/baharkarakas/wallet-engine/internal/idempotency"
	"github.com/baharkarakas/wallet-engine/internal/lock"
	"github.com/baharkarakas/wallet-engine/internal/money"
	"github.com/baharkarakas/wallet-engine/internal/notify"
	"github.com/baharkarakas/wallet-engine/internal/repository/memory"
	"github.com/baharkarakas/wallet-engine/internal/services"
)

type testServer struct {
	t   *testing.T
	h   http.Handler
	tm  *auth.TokenManager
	hub *notify.Hub
}

func newTestServer(t *testing.T) *testServer {
	store := memory.New()
	locks := lock.NewLocal(time.Second)
	idem := idempotency.NewMemory(time.Minute)
	hub := notify.NewHub(nil)
	n := services.NewNotifier(nil, hub)

	txns := services.NewTransactionService(store, locks, fee.Default(), idem, n)
	wallets := services.NewWalletService(store, locks, idem, n, money.MustParse("100.00"))
	admin := services.NewAdminService(store, locks, n, txns)
	tm := auth.NewTokenManager("a", "r", "wallet-test", time.Minute, time.Hour)

	cfg := config.Config{Env: "test", RateRPS: 0, AllowedOrigins: []string{"*"}}
	return &testServer{
		t:   t,
		tm:  tm,
		hub: hub,
		h: NewRouter(RouterDeps{
			Cfg: cfg, TM: tm, Wallets: wallets, Txns: txns, Admin: admin, Hub: hub,
		}),
	}
}

func (s *testServer) token(userID, role string) string {
	access, _, _, err := s.tm.GeneratePair(userID, role)
	require.NoError(s.t, err)
	return access
}

// do sends a request as userID (empty means anonymous) and decodes the JSON reply into out.
func (s *testServer) do(method, path, userID, role, body string, out any, headers ...string) int {
	s.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(userID, role))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

type txnJSON struct {
	ID            string `json:"transaction_id"`
	Amount        string `json:"amount"`
	Fee           string `json:"fee"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
}

type errJSON struct {
	Code    string  `json:"code"`
	Details txnJSON `json:"details"`
}

func (s *testServer) open(userIDs ...string) map[string]string {
	ids := map[string]string{}
	for _, u := range userIDs {
		var w struct {
			ID      string `json:"wallet_id"`
			Balance string `json:"balance"`
		}
		code := s.do(http.MethodPost, "/api/v1/admin/wallets", "root", auth.RoleAdmin, `{"user_id":"`+u+`"}`, &w)
		require.Equal(s.t, http.StatusCreated, code)
		require.Equal(s.t, "100.00", w.Balance)
		ids[u] = w.ID
	}
	return ids
}

func TestHealthAndAuth(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", "", "", nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/wallet", "", "", "", nil))
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/admin/stats", "alice", auth.RoleUser, "", nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/wallet", "nobody", auth.RoleUser, "", nil))
}

func TestSendFlow(t *testing.T) {
	s := newTestServer(t)
	s.open("alice", "bob")

	var sent txnJSON
	code := s.do(http.MethodPost, "/api/v1/transactions/send", "alice", auth.RoleUser,
		`{"receiver_id":"bob","amount":"10.00","note":"lunch"}`, &sent)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "completed", sent.Status)
	assert.Equal(t, "0.05", sent.Fee)

	var failed errJSON
	code = s.do(http.MethodPost, "/api/v1/transactions/send", "alice", auth.RoleUser,
		`{"receiver_id":"bob","amount":"1000.00"}`, &failed)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "insufficient_funds", failed.Code)
	assert.Equal(t, "failed", failed.Details.Status)

	var bad errJSON
	code = s.do(http.MethodPost, "/api/v1/transactions/send", "alice", auth.RoleUser,
		`{"receiver_id":"alice","amount":"1.00"}`, &bad)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "self_transfer", bad.Code)

	code = s.do(http.MethodPost, "/api/v1/transactions/send", "alice", auth.RoleUser,
		`{"receiver_id":"bob","amount":"0.001"}`, &bad)
	assert.Equal(t, http.StatusBadRequest, code)

	var wallet struct {
		Balance string `json:"balance"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/wallet", "alice", auth.RoleUser, "", &wallet))
	assert.Equal(t, "89.95", wallet.Balance)

	var list struct {
		Transactions []txnJSON `json:"transactions"`
		Limit        int       `json:"limit"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/transactions?type=sent", "alice", auth.RoleUser, "", &list))
	require.Len(t, list.Transactions, 2)
	assert.Equal(t, failed.Details.ID, list.Transactions[0].ID)
	assert.Equal(t, sent.ID, list.Transactions[1].ID)
	assert.Equal(t, services.DefaultPageSize, list.Limit)

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/transactions?type=sent", "bob", auth.RoleUser, "", &list))
	assert.Empty(t, list.Transactions)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/transactions?type=weird", "alice", auth.RoleUser, "", nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/transactions?limit=500", "alice", auth.RoleUser, "", nil))

	// parties and admins can read a record, others cannot
	var got txnJSON
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/transactions/"+sent.ID, "bob", auth.RoleUser, "", &got))
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/transactions/"+sent.ID, "carol", auth.RoleUser, "", nil))
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/transactions/"+sent.ID, "root", auth.RoleAdmin, "", nil))

	var agg struct {
		TotalSent string `json:"total_sent"`
		FeesPaid  string `json:"fees_paid"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/transactions/stats", "alice", auth.RoleUser, "", &agg))
	assert.Equal(t, "10.00", agg.TotalSent)
	assert.Equal(t, "0.05", agg.FeesPaid)
}

func TestIdempotencyKeyHeader(t *testing.T) {
	s := newTestServer(t)
	s.open("alice", "bob")

	var first, second txnJSON
	body := `{"receiver_id":"bob","amount":"5.00"}`
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/transactions/send", "alice", auth.RoleUser, body, &first, "Idempotency-Key", "abc"))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/transactions/send", "alice", auth.RoleUser, body, &second, "Idempotency-Key", "abc"))
	assert.Equal(t, first.ID, second.ID)

	var funded struct {
		Transaction txnJSON `json:"transaction"`
		Wallet      struct {
			Balance string `json:"balance"`
		} `json:"wallet"`
	}
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/wallet/add-funds", "alice", auth.RoleUser,
		`{"amount":"20.00","method":"card"}`, &funded, "Idempotency-Key", "abc"))
	// keys are scoped per operation, so this is a fresh record
	assert.NotEqual(t, first.ID, funded.Transaction.ID)
	assert.Equal(t, "114.97", funded.Wallet.Balance)
}

func TestAddFundsValidation(t *testing.T) {
	s := newTestServer(t)
	s.open("alice")

	var e struct {
		Code string `json:"code"`
	}
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/v1/wallet/add-funds", "alice", auth.RoleUser, `{"amount":"1.00","method":"cash"}`, &e))
	assert.Equal(t, "invalid_argument", e.Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/v1/wallet/add-funds", "alice", auth.RoleUser, `{"amount":"-1.00","method":"bank"}`, &e))
	assert.Equal(t, "invalid_amount", e.Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/v1/wallet/add-funds", "alice", auth.RoleUser, `{"amount":"1.00","method":"bank","extra":1}`, &e))
}

func TestMalformedAmounts(t *testing.T) {
	s := newTestServer(t)
	s.open("alice", "bob")

	for _, amount := range []string{`"abc"`, `"1.234"`, `"1e400"`, `"0"`} {
		var e errJSON
		code := s.do(http.MethodPost, "/api/v1/transactions/send", "alice", auth.RoleUser,
			`{"receiver_id":"bob","amount":`+amount+`}`, &e)
		assert.Equal(t, http.StatusBadRequest, code, amount)
		assert.Equal(t, "invalid_amount", e.Code, amount)

		e = errJSON{}
		code = s.do(http.MethodPost, "/api/v1/wallet/add-funds", "alice", auth.RoleUser,
			`{"amount":`+amount+`,"method":"bank"}`, &e)
		assert.Equal(t, http.StatusBadRequest, code, amount)
		assert.Equal(t, "invalid_amount", e.Code, amount)
	}

	var w struct {
		Balance string `json:"balance"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/wallet", "alice", auth.RoleUser, "", &w))
	assert.Equal(t, "100.00", w.Balance)
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	ids := s.open("alice")

	var e errJSON
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/v1/admin/wallets", "root", auth.RoleAdmin, `{"user_id":"alice"}`, &e))
	assert.Equal(t, "already_exists", e.Code)

	code := s.do(http.MethodPost, "/api/v1/admin/wallets/"+ids["alice"]+"/adjust", "root", auth.RoleAdmin,
		`{"action":"deduct","amount":"150.00"}`, &e)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "failed", e.Details.Status)

	var adj struct {
		Wallet struct {
			Balance string `json:"balance"`
		} `json:"wallet"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/admin/wallets/"+ids["alice"]+"/adjust", "root", auth.RoleAdmin,
		`{"action":"add","amount":"25.00","note":"promo"}`, &adj))
	assert.Equal(t, "125.00", adj.Wallet.Balance)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/v1/admin/wallets/"+ids["alice"]+"/adjust", "root", auth.RoleAdmin,
		`{"action":"double","amount":"1.00"}`, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/v1/admin/wallets/missing/adjust", "root", auth.RoleAdmin,
		`{"action":"add","amount":"1.00"}`, nil))

	var rep struct {
		Consistent   bool `json:"consistent"`
		Transactions int  `json:"transactions"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/admin/wallets/"+ids["alice"]+"/reconcile", "root", auth.RoleAdmin, "", &rep))
	assert.True(t, rep.Consistent)
	assert.Equal(t, 1, rep.Transactions)

	var all struct {
		Transactions []txnJSON `json:"transactions"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/admin/transactions?status=failed", "root", auth.RoleAdmin, "", &all))
	assert.Len(t, all.Transactions, 1)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/admin/transactions?status=odd", "root", auth.RoleAdmin, "", nil))

	var st struct {
		Wallets      int    `json:"wallets"`
		TotalBalance string `json:"total_balance"`
		FailedCount  int    `json:"failed_count"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/admin/stats", "root", auth.RoleAdmin, "", &st))
	assert.Equal(t, 1, st.Wallets)
	assert.Equal(t, "125.00", st.TotalBalance)
	assert.Equal(t, 1, st.FailedCount)

	var audit struct {
		Logs []map[string]any `json:"audit_logs"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/admin/audit?entity_type=wallet&entity_id="+ids["alice"], "root", auth.RoleAdmin, "", &audit))
	// wallet opened + adjusted
	assert.Len(t, audit.Logs, 2)
}

func TestRefreshToken(t *testing.T) {
	s := newTestServer(t)
	_, refresh, _, err := s.tm.GeneratePair("alice", auth.RoleUser)
	require.NoError(t, err)

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/auth/refresh", "", "", `{"refresh_token":"`+refresh+`"}`, &tok))
	c, err := s.tm.ParseAccess(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", c.UserID)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/auth/refresh", "", "", `{"refresh_token":"`+s.token("alice", auth.RoleUser)+`"}`, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/v1/auth/dev-login", "", "", `{"user_id":"x"}`, nil))
}

func TestWebsocketStreamsEvents(t *testing.T) {
	s := newTestServer(t)
	s.open("alice", "bob")
	srv := httptest.NewServer(s.h)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// browsers cannot set headers on the handshake, so the token rides in the query
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL+"?access_token="+s.token("bob", auth.RoleUser), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	require.Eventually(t, func() bool { return s.hub.Connections("bob") == 1 }, time.Second, 10*time.Millisecond)

	var sent txnJSON
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/transactions/send", "alice", auth.RoleUser,
		`{"receiver_id":"bob","amount":"10.00"}`, &sent))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev struct {
		Type        string  `json:"event_type"`
		Transaction txnJSON `json:"transaction"`
	}
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "transaction.completed", ev.Type)
	assert.Equal(t, sent.ID, ev.Transaction.ID)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return s.hub.Connections("bob") == 0 }, time.Second, 10*time.Millisecond)
}
