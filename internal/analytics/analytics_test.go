package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/life2you_mini/regime/internal/config"
)

func duneTestConfig(baseURL string) config.AnalyticsConfig {
	return config.AnalyticsConfig{
		Provider:            config.ProviderDune,
		Chain:               "ethereum",
		PollIntervalSeconds: 1,
		MaxWaitSeconds:      5,
		Dune:                config.DuneConfig{APIKey: "dune-test-key", BaseURL: baseURL},
	}
}

func alliumTestConfig(baseURL string) config.AnalyticsConfig {
	return config.AnalyticsConfig{
		Provider:            config.ProviderAllium,
		Chain:               "ethereum",
		PollIntervalSeconds: 1,
		MaxWaitSeconds:      5,
		Allium:              config.AlliumConfig{APIKey: "allium-test-key", BaseURL: baseURL},
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestDuneClient_ExecuteQuery(t *testing.T) {
	var statusCalls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dune-test-key", r.Header.Get("X-Dune-API-Key"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/query/6489102/execute":
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			params, ok := payload["query_parameters"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "2025-01-01", params["as_of_date"])
			writeJSON(t, w, map[string]any{"execution_id": "exec-1"})

		case r.Method == http.MethodGet && r.URL.Path == "/execution/exec-1/status":
			state := "QUERY_STATE_PENDING"
			if statusCalls.Add(1) > 1 {
				state = "QUERY_STATE_COMPLETED"
			}
			writeJSON(t, w, map[string]any{"state": state})

		case r.Method == http.MethodGet && r.URL.Path == "/execution/exec-1/results":
			writeJSON(t, w, map[string]any{
				"result": map[string]any{
					"rows": []map[string]any{
						{"avg_funding": 0.12, "oi_growth_pct_7d": 30.0},
					},
				},
			})

		default:
			t.Errorf("未预期的请求: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewDuneClient(duneTestConfig(server.URL), zaptest.NewLogger(t))

	rows, err := client.ExecuteQuery(context.Background(), "6489102", map[string]any{"as_of_date": "2025-01-01"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.12, rows[0]["avg_funding"])
	assert.GreaterOrEqual(t, statusCalls.Load(), int32(2))
}

func TestDuneClient_ExecuteQuery_Failed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/execute"):
			writeJSON(t, w, map[string]any{"execution_id": "exec-2"})
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/status"):
			writeJSON(t, w, map[string]any{"state": "QUERY_STATE_FAILED"})
		default:
			t.Errorf("未预期的请求: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewDuneClient(duneTestConfig(server.URL), zaptest.NewLogger(t))

	_, err := client.ExecuteQuery(context.Background(), "6489102", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutionFailed)
}

func TestDuneClient_ExecuteQuery_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/execute"):
			writeJSON(t, w, map[string]any{"execution_id": "exec-3"})
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/status"):
			writeJSON(t, w, map[string]any{"state": "QUERY_STATE_EXECUTING"})
		default:
			t.Errorf("未预期的请求: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	cfg := duneTestConfig(server.URL)
	cfg.MaxWaitSeconds = 1

	client := NewDuneClient(cfg, zaptest.NewLogger(t))

	_, err := client.ExecuteQuery(context.Background(), "6489102", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutionTimeout)
}

func TestDuneClient_GetLatestResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/query/4100002/results", r.URL.Path)
		writeJSON(t, w, map[string]any{
			"result": map[string]any{
				"rows": []map[string]any{
					{"tvl_today": 1000.0, "tvl_30d_avg": 1100.0},
				},
			},
		})
	}))
	defer server.Close()

	client := NewDuneClient(duneTestConfig(server.URL), zaptest.NewLogger(t))

	rows, err := client.GetLatestResults(context.Background(), "4100002")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1000.0, rows[0]["tvl_today"])
}

func TestDuneClient_RunSQL_Unsupported(t *testing.T) {
	client := NewDuneClient(duneTestConfig("http://localhost:0"), zaptest.NewLogger(t))

	_, err := client.RunSQL(context.Background(), "SELECT 1", "ethereum")
	assert.ErrorIs(t, err, ErrAdhocUnsupported)
}

func TestAlliumClient_ExecuteQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "allium-test-key", r.Header.Get("X-API-Key"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/queries/q-100/run":
			// 仅返回id字段, 验证execution_id缺失时的兜底
			writeJSON(t, w, map[string]any{"id": "run-1"})

		case r.Method == http.MethodGet && r.URL.Path == "/executions/run-1":
			// 大写状态应被归一化
			writeJSON(t, w, map[string]any{"status": "COMPLETED"})

		case r.Method == http.MethodGet && r.URL.Path == "/executions/run-1/results":
			writeJSON(t, w, map[string]any{
				"data": []map[string]any{
					{"pct_elevated_funding": 75.0},
				},
			})

		default:
			t.Errorf("未预期的请求: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewAlliumClient(alliumTestConfig(server.URL), zaptest.NewLogger(t))

	rows, err := client.ExecuteQuery(context.Background(), "q-100", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 75.0, rows[0]["pct_elevated_funding"])
}

func TestAlliumClient_GetWhaleTransfers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/queries/adhoc":
			var payload struct {
				SQL   string `json:"sql"`
				Chain string `json:"chain"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "ethereum", payload.Chain)
			assert.Contains(t, payload.SQL, "FROM ethereum.token_transfers")
			assert.Contains(t, payload.SQL, "value_usd >= 1000000")
			writeJSON(t, w, map[string]any{"execution_id": "adhoc-1"})

		case r.Method == http.MethodGet && r.URL.Path == "/executions/adhoc-1/results":
			writeJSON(t, w, map[string]any{
				"data": []map[string]any{
					{
						"transaction_hash": "0xabc",
						"from_address":     "0xfrom",
						"to_address":       "0xto",
						"value_usd":        2500000.0,
					},
				},
			})

		default:
			t.Errorf("未预期的请求: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewAlliumClient(alliumTestConfig(server.URL), zaptest.NewLogger(t))

	transfers, err := client.GetWhaleTransfers(context.Background(), "ethereum", "", 1_000_000, 10)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "0xabc", transfers[0].TransactionHash)
	assert.Equal(t, 2500000.0, transfers[0].ValueUSD)
}

func TestWhaleTransfersSQL(t *testing.T) {
	t.Run("默认参数", func(t *testing.T) {
		sql := WhaleTransfersSQL("", "", 0, 0)
		assert.Contains(t, sql, "FROM ethereum.token_transfers")
		assert.Contains(t, sql, "value_usd >= 1000000")
		assert.Contains(t, sql, "ORDER BY block_timestamp DESC")
		assert.Contains(t, sql, "LIMIT 50")
		assert.NotContains(t, sql, "token_address = ")
	})

	t.Run("指定代币", func(t *testing.T) {
		sql := WhaleTransfersSQL("polygon", "0xToken", 500_000, 20)
		assert.Contains(t, sql, "FROM polygon.token_transfers")
		assert.Contains(t, sql, "token_address = '0xToken' AND value_usd >= 500000")
		assert.Contains(t, sql, "LIMIT 20")
	})
}

func TestDexSwapsSQL(t *testing.T) {
	t.Run("默认参数", func(t *testing.T) {
		sql := DexSwapsSQL("", "", 0, 0)
		assert.Contains(t, sql, "FROM ethereum.dex_swaps")
		assert.Contains(t, sql, "amount_usd >= 100000")
		assert.Contains(t, sql, "LIMIT 100")
		assert.NotContains(t, sql, "protocol_name) = ")
	})

	t.Run("指定协议", func(t *testing.T) {
		sql := DexSwapsSQL("ethereum", "Uniswap", 200_000, 5)
		assert.Contains(t, sql, "AND LOWER(protocol_name) = 'uniswap'")
		assert.Contains(t, sql, "LIMIT 5")
	})
}

func TestLiquidationsSQL(t *testing.T) {
	t.Run("默认参数", func(t *testing.T) {
		sql := LiquidationsSQL("", "", 0, 0)
		assert.Contains(t, sql, "FROM ethereum.lending_liquidations")
		assert.Contains(t, sql, "INTERVAL '1 hours'")
		assert.Contains(t, sql, "ORDER BY liquidation_value_usd DESC")
		assert.Contains(t, sql, "LIMIT 100")
	})

	t.Run("指定协议与时间窗", func(t *testing.T) {
		sql := LiquidationsSQL("ethereum", "Aave", 24, 200)
		assert.Contains(t, sql, "INTERVAL '24 hours'")
		assert.Contains(t, sql, "AND LOWER(protocol_name) = 'aave'")
		assert.Contains(t, sql, "LIMIT 200")
	})
}

func TestCreateProviderFactory(t *testing.T) {
	t.Run("双数据源注册", func(t *testing.T) {
		cfg := config.AnalyticsConfig{
			Provider: config.ProviderAllium,
			Dune:     config.DuneConfig{APIKey: "dk"},
			Allium:   config.AlliumConfig{APIKey: "ak"},
		}

		factory, active, err := CreateProviderFactory(cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, config.ProviderAllium, active.Name())
		assert.Len(t, factory.GetAll(), 2)

		dune, ok := factory.Get("dune")
		require.True(t, ok)
		assert.Equal(t, config.ProviderDune, dune.Name())
	})

	t.Run("缺少API密钥", func(t *testing.T) {
		cfg := config.AnalyticsConfig{
			Provider: config.ProviderDune,
			Allium:   config.AlliumConfig{APIKey: "ak"},
		}

		_, _, err := CreateProviderFactory(cfg, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DUNE")
	})
}
