package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/life2you_mini/regime/internal/model"
)

func TestRegistry_RecordRegimeSwitch(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	r.RecordRegimeSwitch(model.RegimeStable, model.RegimeStress)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.RegimeSwitches.WithLabelValues("STABLE", "STRESS")))
	assert.Equal(t, float64(4), testutil.ToFloat64(r.CurrentRegime))
}

func TestRegistry_RegimeGaugeValues(t *testing.T) {
	tests := []struct {
		regime model.Regime
		value  float64
	}{
		{model.RegimeStable, 0},
		{model.RegimeRecovery, 1},
		{model.RegimeTransitional, 2},
		{model.RegimeFragile, 3},
		{model.RegimeStress, 4},
		{model.RegimeUnknown, -1},
	}

	r := NewRegistry(zaptest.NewLogger(t))
	for _, tt := range tests {
		t.Run(string(tt.regime), func(t *testing.T) {
			r.SetCurrentRegime(tt.regime)
			assert.Equal(t, tt.value, testutil.ToFloat64(r.CurrentRegime))
		})
	}
}

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	r.RecordCheck("success")
	r.RecordCheck("success")
	r.RecordCheck("failure")
	r.RecordQueryError("dune")
	r.RecordAlertSent("slack", model.SeverityCritical)
	r.RecordParamsApplied("AUTO")
	r.ObserveQuery("dune", "regime_detection", 3*time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.RegimeChecks.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.RegimeChecks.WithLabelValues("failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.QueryErrors.WithLabelValues("dune")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.AlertsSent.WithLabelValues("slack", "CRITICAL")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.ParamsApplied.WithLabelValues("AUTO")))
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	r.SetCurrentRegime(model.RegimeFragile)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "himari_current_regime 3")
}
