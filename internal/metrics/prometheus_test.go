package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	c := NewCollector()
	c.RecordOperation("DEPOSIT", nil, 1.5)
	c.RecordOperation("DEPOSIT", nil, 0.5)
	c.RecordOperation("DEPOSIT", errors.New("boom"), 0.1)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.OperationsTotal.WithLabelValues("DEPOSIT", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.OperationsTotal.WithLabelValues("DEPOSIT", "error")))
}

func TestFeeAndVaultGauges(t *testing.T) {
	c := NewCollector()
	c.RecordFeeShares("management", sdkmath.NewInt(2_000_000), 6)
	c.RecordFeeShares("exit", sdkmath.ZeroInt(), 6)
	c.RecordFeeTokens("entry", "TK0", sdkmath.NewInt(500), 3)
	c.UpdateVaultMetrics(sdkmath.NewInt(10_000_000), 6, 2, 1_700_000_000)
	c.RecordUnderlying("TK1", sdkmath.NewInt(3_000), 3)

	assert.InDelta(t, 2.0, testutil.ToFloat64(c.FeeSharesTotal.WithLabelValues("management")), 1e-9)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.FeeSharesTotal.WithLabelValues("exit")))
	assert.InDelta(t, 0.5, testutil.ToFloat64(c.FeeTokensTotal.WithLabelValues("entry", "TK0")), 1e-9)
	assert.InDelta(t, 10.0, testutil.ToFloat64(c.TotalSupply), 1e-9)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.PositionsOpen))
	assert.InDelta(t, 3.0, testutil.ToFloat64(c.UnderlyingAssets.WithLabelValues("TK1")), 1e-9)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordOperation("WITHDRAW", nil, 1)
		c.RecordFeeShares("exit", sdkmath.NewInt(1), 0)
		c.UpdateVaultMetrics(sdkmath.NewInt(1), 0, 0, 0)
		c.RecordAPIRequest("GET", "/health", "200", 1)
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	c := NewCollector()
	c.RecordAPIRequest("GET", "/api/vault", "200", 3)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "tvault_api_requests_total"))
}
