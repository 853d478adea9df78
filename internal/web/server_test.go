package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teahouse-finance/tvault/internal/chain/sim"
	"github.com/teahouse-finance/tvault/internal/metrics"
	"github.com/teahouse-finance/tvault/internal/state"
	"github.com/teahouse-finance/tvault/internal/types"
	"github.com/teahouse-finance/tvault/internal/vault"
)

var (
	vaultAddress = common.HexToAddress("0x00000000000000000000000000000000000d0001")
	owner        = common.HexToAddress("0x0000000000000000000000000000000000000001")
	manager      = common.HexToAddress("0x0000000000000000000000000000000000000002")
	treasury     = common.HexToAddress("0x0000000000000000000000000000000000000003")
	user         = common.HexToAddress("0x0000000000000000000000000000000000000004")
)

func newTestServer(t *testing.T, devnet bool) *httptest.Server {
	t.Helper()
	return newTestServerWithStream(t, devnet, nil)
}

func newTestServerWithStream(t *testing.T, devnet bool, hub *ReceiptHub) *httptest.Server {
	t.Helper()
	dev, err := sim.NewDevnet(sim.DefaultDevnetConfig())
	require.NoError(t, err)
	store := state.NewMemoryStore()
	collector := metrics.NewCollector()

	cfg := vault.Config{
		Address:   vaultAddress,
		Owner:     owner,
		Manager:   manager,
		FeeConfig: types.FeeConfig{Treasury: treasury},
		Token0:    dev.Token0,
		Token1:    dev.Token1,
		Pool:      dev.Pool,
		Env:       dev.Chain,
		Store:     store,
		Metrics:   collector,
	}
	if hub != nil {
		cfg.Publisher = hub
	}
	v, err := vault.New(context.Background(), cfg)
	require.NoError(t, err)

	ws := NewWebServer(ServerConfig{
		Vault:    v,
		Receipts: store,
		Metrics:  collector,
		Devnet:   devnet,
		Router:   dev.Router,
		Faucet:   sim.NewFaucet(dev, vaultAddress),
		Stream:   hub,
	})
	srv := httptest.NewServer(ws.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return decode(t, resp)
}

func get(t *testing.T, srv *httptest.Server, path string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	return decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) (int, map[string]interface{}) {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestHealthAndVault(t *testing.T) {
	srv := newTestServer(t, false)

	status, body := get(t, srv, "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body["status"])

	status, body = get(t, srv, "/api/vault")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, vaultAddress.Hex(), body["address"])
	assert.Equal(t, manager.Hex(), body["manager"])
	assert.Equal(t, "0", body["total_supply"])
	assert.Equal(t, "0", body["total_supply_formatted"])

	status, body = get(t, srv, "/api/pool")
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 60, body["tick_spacing"])
}

func TestMutatingRoutesOnlyOnDevnet(t *testing.T) {
	srv := newTestServer(t, false)
	status, _ := post(t, srv, "/api/deposit", map[string]string{"caller": user.Hex(), "shares": "1"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDevnetDepositFlow(t *testing.T) {
	srv := newTestServer(t, true)
	shares := sdkmath.NewIntWithDecimal(1, 18)

	status, _ := post(t, srv, "/api/devnet/fund", map[string]string{
		"account": user.Hex(),
		"amount0": "5000000000000000000",
		"amount1": "5000000000000000000",
	})
	require.Equal(t, http.StatusOK, status)

	status, body := post(t, srv, "/api/deposit", map[string]string{
		"caller":      user.Hex(),
		"shares":      shares.String(),
		"amount0_max": "2000000000000000000",
		"amount1_max": "0",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, shares.String(), body["amount0"])

	status, body = get(t, srv, "/api/balances/"+user.Hex())
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, shares.String(), body["shares"])

	status, body = post(t, srv, "/api/manager/in-pool-swap", map[string]interface{}{
		"caller":       manager.Hex(),
		"zero_for_one": true,
		"amount_in":    "100000000000000000",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "100000000000000000", body["amount_in"])

	payload, err := sim.EncodeSwapPayload(true, sdkmath.NewIntWithDecimal(1, 17))
	require.NoError(t, err)
	status, body = post(t, srv, "/api/manager/execute-swap", map[string]interface{}{
		"caller":       manager.Hex(),
		"zero_for_one": true,
		"amount_in":    "100000000000000000",
		"payload":      json.RawMessage(payload),
	})
	require.Equal(t, http.StatusOK, status, body)

	status, body = get(t, srv, "/api/receipts?limit=5")
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["count"])

	status, body = get(t, srv, "/api/vault/assets")
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["value_in_token0"])

	status, _ = post(t, srv, "/api/devnet/advance-time", map[string]uint64{"seconds": 10})
	assert.Equal(t, http.StatusOK, status)

	status, body = post(t, srv, "/api/withdraw", map[string]string{"caller": user.Hex(), "shares": shares.String()})
	require.Equal(t, http.StatusOK, status, body)
}

func TestDevnetErrorStatuses(t *testing.T) {
	srv := newTestServer(t, true)

	status, _ := post(t, srv, "/api/manager/in-pool-swap", map[string]interface{}{
		"caller":       user.Hex(),
		"zero_for_one": true,
		"amount_in":    "1",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = post(t, srv, "/api/admin/manager", map[string]string{"caller": manager.Hex(), "manager": user.Hex()})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = post(t, srv, "/api/withdraw", map[string]string{"caller": user.Hex(), "shares": "10"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = get(t, srv, "/api/positions/3")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = get(t, srv, "/api/balances/not-an-address")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = post(t, srv, "/api/deposit", map[string]string{"caller": user.Hex(), "unexpected": "1"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := post(t, srv, "/api/admin/manager", map[string]string{"caller": owner.Hex(), "manager": user.Hex()})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, user.Hex(), body["manager"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, false)
	get(t, srv, "/api/vault")

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `tvault_api_requests_total{method="GET",path="/api/vault",status="200"}`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", vault.ErrCallerIsNotOwner), http.StatusForbidden},
		{vault.ErrPositionNotFound, http.StatusNotFound},
		{errors.Join(vault.ErrInvalidPriceSlippage, errors.New("detail")), http.StatusUnprocessableEntity},
		{vault.ErrStoreFailed, http.StatusInternalServerError},
		{errors.New("unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
