package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpdash/perpdash/internal/session"
	"github.com/perpdash/perpdash/internal/wallet"
	venueclient "github.com/perpdash/perpdash/venue/client"
)

func newTestServer(t *testing.T, connect bool) (*Server, *venueclient.MockClient) {
	t.Helper()
	mock := venueclient.NewMockClient()
	store := session.New(venueclient.NewMockConnector(mock),
		session.WithPollInterval(time.Hour))
	w := wallet.NewLocalCapability(solana.NewWallet().PrivateKey)
	if connect {
		require.NoError(t, store.InitSession(context.Background(), w))
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(store, nil, w), mock
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, false)
	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionInitAndGet(t *testing.T) {
	srv, _ := newTestServer(t, false)

	rec := do(t, srv, http.MethodPost, "/api/session/init", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"active":true`)

	rec = do(t, srv, http.MethodGet, "/api/session", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMutationsWithoutSessionConflict(t *testing.T) {
	srv, _ := newTestServer(t, false)

	// 没有会话：变更操作 409
	rec := do(t, srv, http.MethodPost, "/api/deposit", `{"amount": 1.5}`)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/subaccount/refresh", "")
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestDepositValidation(t *testing.T) {
	srv, mock := newTestServer(t, true)

	rec := do(t, srv, http.MethodPost, "/api/deposit", `{"amount": -3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, 0, mock.CallCount("Deposit"))

	rec = do(t, srv, http.MethodPost, "/api/deposit", `{"amount": 1.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "txSignature")
	assert.Equal(t, 1, mock.CallCount("Deposit"))
}

func TestPlaceOrderMapping(t *testing.T) {
	srv, mock := newTestServer(t, true)

	// 本地校验失败 400，不触网
	rec := do(t, srv, http.MethodPost, "/api/orders",
		`{"kind":"limit","marketId":0,"direction":"long","size":0,"limitPrice":150}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, 0, mock.CallCount("SubmitOrder"))

	rec = do(t, srv, http.MethodPost, "/api/orders",
		`{"kind":"limit","marketId":0,"direction":"long","size":2,"limitPrice":150.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "txSignature")
	assert.Equal(t, 1, mock.CallCount("SubmitOrder"))
}

func TestVenueFailureMapsToBadGateway(t *testing.T) {
	srv, mock := newTestServer(t, true)
	mock.ErrorOnNext["Deposit"] = assert.AnError

	rec := do(t, srv, http.MethodPost, "/api/deposit", `{"amount": 1}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())
}

func TestSubAccountSelectRange(t *testing.T) {
	srv, _ := newTestServer(t, true)

	rec := do(t, srv, http.MethodPost, "/api/subaccount/select", `{"id": 3}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/subaccount/select", `{"id": 9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestMarketGetAndSelect(t *testing.T) {
	srv, _ := newTestServer(t, true)

	rec := do(t, srv, http.MethodGet, "/api/market/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SOL-PERP")

	rec = do(t, srv, http.MethodGet, "/api/market/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/market/select", `{"id": 1}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJournalEmptyWithoutDB(t *testing.T) {
	srv, _ := newTestServer(t, true)
	rec := do(t, srv, http.MethodGet, "/api/journal", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"activities":[]`)
}
