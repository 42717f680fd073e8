package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chilly266futon/orderComposer/internal/composer"
	"github.com/chilly266futon/orderComposer/internal/domain"
	"github.com/chilly266futon/orderComposer/internal/service"
	"github.com/chilly266futon/orderComposer/internal/storage"
)

type fakeEstimator struct{}

func (fakeEstimator) Estimate(ctx context.Context, req domain.EstimateRequest) (decimal.Decimal, error) {
	return req.Amount.Mul(decimal.NewFromInt(2)), nil
}

type fakeOrderClient struct{}

func (fakeOrderClient) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	return domain.OrderResult{Success: true}, nil
}

type testStack struct {
	srv *httptest.Server
	svc *service.Service
	hub *Hub
}

func newTestServer(t *testing.T, cfg ServerConfig) *httptest.Server {
	t.Helper()
	return newTestStack(t, cfg).srv
}

func newTestStack(t *testing.T, cfg ServerConfig) testStack {
	t.Helper()

	logger := zap.NewNop()
	hub := NewHub(logger)
	svc := service.NewService(storage.NewSessionStorage(), composer.DefaultConfig(), service.Deps{
		Estimator: fakeEstimator{},
		Orders:    fakeOrderClient{},
		Notifier:  hub,
	}, logger)
	t.Cleanup(svc.Shutdown)

	srv := httptest.NewServer(NewServer(svc, hub, cfg, logger).Handler())
	t.Cleanup(srv.Close)
	return testStack{srv: srv, svc: svc, hub: hub}
}

func wsURL(srv *httptest.Server, id string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + id + "/ws"
}

func doJSON(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	req, err := http.NewRequest(method, url, &payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	out := map[string]any{}
	if res.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	}
	return res.StatusCode, out
}

func openSession(t *testing.T, base string) (string, map[string]any) {
	t.Helper()

	status, body := doJSON(t, http.MethodPost, base+"/api/v1/sessions", map[string]any{
		"user_id": "user-1",
		"pair":    map[string]any{"base": "ton", "quote": "usdt", "avg_price": "5.1", "change_24h": "1.25"},
	})
	require.Equal(t, http.StatusCreated, status)
	return body["session_id"].(string), body
}

func draftOf(body map[string]any) map[string]any {
	return body["draft"].(map[string]any)
}

func TestServer_SessionLifecycle(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	id, body := openSession(t, srv.URL)
	assert.Equal(t, "USDT", draftOf(body)["amount_asset"])
	assert.Equal(t, "TON", draftOf(body)["estimate_asset"])
	assert.Equal(t, "buy", draftOf(body)["side"])

	status, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions/"+id+"/intents/amount", map[string]any{"text": "10 USDT"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "10", draftOf(body)["amount"])

	status, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions/"+id+"/intents/side", map[string]any{"side": "sell"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "0", draftOf(body)["amount"])
	assert.Equal(t, "TON", draftOf(body)["amount_asset"])

	status, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_SubmitValidation(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})
	id, _ := openSession(t, srv.URL)

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions/"+id+"/intents/order_type", map[string]any{"order_type": "Limit"})
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions/"+id+"/intents/increment", nil)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions/"+id+"/submit?wait=true", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "invalid", body["outcome"])

	draft := draftOf(body["view"].(map[string]any))
	errBody := draft["error"].(map[string]any)
	assert.Equal(t, "PRICE_REQUIRED", errBody["code"])
	assert.Equal(t, "Enter a limit price", errBody["message"])

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions/"+id+"/intents/price", map[string]any{"price": "5"})
	status, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions/"+id+"/submit?wait=true", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "accepted", body["outcome"])
}

func TestServer_BadRequests(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})
	id, _ := openSession(t, srv.URL)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"unknown intent", "/intents/teleport", nil, http.StatusBadRequest},
		{"bad side", "/intents/side", map[string]any{"side": "hold"}, http.StatusBadRequest},
		{"bad percent", "/intents/quick_pick", map[string]any{"percent": 30}, http.StatusBadRequest},
		{"bad amount text", "/intents/amount", map[string]any{"text": "many"}, http.StatusBadRequest},
		{"pair missing", "/intents/pair", map[string]any{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions/"+id+tt.path, tt.body)
			assert.Equal(t, tt.want, status)
		})
	}

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions/nope/intents/reset", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions", map[string]any{"pair": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_RateLimit(t *testing.T) {
	srv := newTestServer(t, ServerConfig{RequestsPerSecond: 0.001, Burst: 1})

	status, _ := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestServer_WebSocketSignals(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})
	id, _ := openSession(t, srv.URL)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, id), nil)
	require.NoError(t, err)
	defer conn.Close()

	var first signal
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "draft", first.Type)

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions/"+id+"/intents/increment", nil)

	sawHaptic, sawEstimate := false, false
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for !(sawHaptic && sawEstimate) {
		var sig signal
		require.NoError(t, conn.ReadJSON(&sig))

		switch {
		case sig.Type == "haptic":
			sawHaptic = true
			assert.Equal(t, composer.HapticLight, sig.Style)
		case sig.Type == "draft" && sig.Draft != nil && sig.Draft.Estimate.Equal(decimal.NewFromInt(2)):
			sawEstimate = true
			assert.True(t, sig.Draft.Amount.Equal(decimal.NewFromInt(1)))
		}
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "Insufficient balance", ErrorMessage("INSUFFICIENT_BALANCE"))
	assert.Equal(t, defaultErrorMessage, ErrorMessage("SOMETHING_NEW"))
}

func TestServer_WebSocketRejectsForeignOrigin(t *testing.T) {
	srv := newTestServer(t, ServerConfig{AllowedOrigins: []string{"https://web.telegram.org"}})
	id, _ := openSession(t, srv.URL)

	_, res, err := websocket.DefaultDialer.Dial(wsURL(srv, id), http.Header{"Origin": {"https://evil.example"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, id), http.Header{"Origin": {"https://web.telegram.org"}})
	require.NoError(t, err)
	defer conn.Close()

	var first signal
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "draft", first.Type)
}

func TestOriginChecker(t *testing.T) {
	allowed := originChecker([]string{"https://web.telegram.org"})
	open := originChecker(nil)

	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, allowed(req("https://web.telegram.org")))
	assert.False(t, allowed(req("https://evil.example")))
	assert.True(t, allowed(req("")))
	assert.True(t, open(req("https://evil.example")))
	assert.True(t, originChecker([]string{"*"})(req("https://evil.example")))
}

func TestServer_ReapedSessionDisconnectsClients(t *testing.T) {
	stack := newTestStack(t, ServerConfig{})
	id, _ := openSession(t, stack.srv.URL)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(stack.srv, id), nil)
	require.NoError(t, err)
	defer conn.Close()

	var first signal
	require.NoError(t, conn.ReadJSON(&first))

	// the client is registered once the initial draft went out
	require.Eventually(t, func() bool {
		stack.hub.mu.RLock()
		defer stack.hub.mu.RUnlock()
		return len(stack.hub.clients[id]) == 1
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, 1, stack.svc.Reap(time.Now().Add(2*time.Hour), time.Hour))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
	}

	stack.hub.mu.RLock()
	defer stack.hub.mu.RUnlock()
	assert.Empty(t, stack.hub.clients[id])
	_, tracked := stack.hub.lastVersion[id]
	assert.False(t, tracked)
}

func TestServer_UserSessions(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})
	a, _ := openSession(t, srv.URL)
	b, _ := openSession(t, srv.URL)

	res, err := http.Get(srv.URL + "/api/v1/users/user-1/sessions")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Sessions []viewDTO `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))

	var ids []string
	for _, v := range body.Sessions {
		ids = append(ids, v.SessionID)
	}
	assert.ElementsMatch(t, []string{a, b}, ids)

	status, other := doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/nobody/sessions", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, other["sessions"])
}
