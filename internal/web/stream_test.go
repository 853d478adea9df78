package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teahouse-finance/tvault/internal/types"
)

func dialStream(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http")+"/ws/receipts", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestReceiptStreamDeliversCommittedOperations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewReceiptHub("*")
	go hub.Run(ctx)

	srv := newTestServerWithStream(t, true, hub)
	conn := dialStream(t, srv.URL)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	status, _ := post(t, srv, "/api/devnet/fund", map[string]string{
		"account": user.Hex(),
		"amount0": "5000000000000000000",
		"amount1": "5000000000000000000",
	})
	require.Equal(t, http.StatusOK, status)
	status, _ = post(t, srv, "/api/deposit", map[string]string{
		"caller":      user.Hex(),
		"shares":      "1000000000000000000",
		"amount0_max": "2000000000000000000",
		"amount1_max": "2000000000000000000",
	})
	require.Equal(t, http.StatusOK, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var receipt types.OperationReceipt
	require.NoError(t, json.Unmarshal(message, &receipt))
	assert.Equal(t, types.OpDeposit, receipt.Type)
	assert.Equal(t, user, receipt.Caller)
	assert.Len(t, receipt.StateDigest, 64)
}

func TestReceiptStreamClosesOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewReceiptHub("*")
	go hub.Run(ctx)

	srv := newTestServerWithStream(t, false, hub)
	conn := dialStream(t, srv.URL)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, hub.ClientCount())
}

func TestReceiptHubRejectsForeignOrigin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewReceiptHub("https://vault.example")
	go hub.Run(ctx)

	srv := newTestServerWithStream(t, false, hub)
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/receipts", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
