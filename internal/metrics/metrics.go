// Package metrics 暴露流水线运行指标供Prometheus采集
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/model"
)

// Registry 持有全部Prometheus指标
type Registry struct {
	registry *prometheus.Registry
	logger   *zap.Logger
	server   *http.Server

	// 状态检测指标
	RegimeChecks   *prometheus.CounterVec
	RegimeSwitches *prometheus.CounterVec
	CurrentRegime  prometheus.Gauge

	// 数据源指标
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec

	// 告警与参数指标
	AlertsSent    *prometheus.CounterVec
	ParamsApplied *prometheus.CounterVec

	// 链上活动指标
	WhaleTransfers    prometheus.Counter
	LiquidationVolume prometheus.Gauge
}

// NewRegistry 创建指标注册表
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		logger:   logger,

		RegimeChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "himari_regime_checks_total",
				Help: "Total number of regime check cycles by status",
			},
			[]string{"status"},
		),

		RegimeSwitches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "himari_regime_switches_total",
				Help: "Total number of regime switches by from/to regime",
			},
			[]string{"from_regime", "to_regime"},
		),

		CurrentRegime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "himari_current_regime",
				Help: "Current market regime (0=stable, 1=recovery, 2=transitional, 3=fragile, 4=stress, -1=unknown)",
			},
		),

		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "himari_query_duration_seconds",
				Help:    "Duration of analytics query executions in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"provider", "query"},
		),

		QueryErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "himari_query_errors_total",
				Help: "Total number of failed analytics queries by provider",
			},
			[]string{"provider"},
		),

		AlertsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "himari_alerts_sent_total",
				Help: "Total number of alerts sent by channel and severity",
			},
			[]string{"channel", "severity"},
		),

		ParamsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "himari_params_applied_total",
				Help: "Total number of strategy parameter updates by approval source",
			},
			[]string{"approved_by"},
		),

		WhaleTransfers: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "himari_whale_transfers_total",
				Help: "Total number of whale transfers observed",
			},
		),

		LiquidationVolume: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "himari_liquidation_volume_usd",
				Help: "Liquidation volume observed in the last hour in USD",
			},
		),
	}

	r.registry.MustRegister(
		r.RegimeChecks,
		r.RegimeSwitches,
		r.CurrentRegime,
		r.QueryDuration,
		r.QueryErrors,
		r.AlertsSent,
		r.ParamsApplied,
		r.WhaleTransfers,
		r.LiquidationVolume,
	)

	return r
}

// regimeGaugeValue 将状态映射为数值, 供面板绘制
func regimeGaugeValue(r model.Regime) float64 {
	switch r {
	case model.RegimeStable:
		return 0
	case model.RegimeRecovery:
		return 1
	case model.RegimeTransitional:
		return 2
	case model.RegimeFragile:
		return 3
	case model.RegimeStress:
		return 4
	default:
		return -1
	}
}

// SetCurrentRegime 更新当前状态指标
func (m *Registry) SetCurrentRegime(r model.Regime) {
	m.CurrentRegime.Set(regimeGaugeValue(r))
}

// RecordRegimeSwitch 记录一次状态切换
func (m *Registry) RecordRegimeSwitch(from, to model.Regime) {
	m.RegimeSwitches.WithLabelValues(string(from), string(to)).Inc()
	m.SetCurrentRegime(to)
}

// RecordCheck 记录一次检测周期结果
func (m *Registry) RecordCheck(status string) {
	m.RegimeChecks.WithLabelValues(status).Inc()
}

// ObserveQuery 记录查询耗时
func (m *Registry) ObserveQuery(provider, query string, d time.Duration) {
	m.QueryDuration.WithLabelValues(provider, query).Observe(d.Seconds())
}

// RecordQueryError 记录查询失败
func (m *Registry) RecordQueryError(provider string) {
	m.QueryErrors.WithLabelValues(provider).Inc()
}

// RecordAlertSent 记录告警发送
func (m *Registry) RecordAlertSent(channel string, severity model.Severity) {
	m.AlertsSent.WithLabelValues(channel, string(severity)).Inc()
}

// RecordParamsApplied 记录参数落库
func (m *Registry) RecordParamsApplied(approvedBy string) {
	m.ParamsApplied.WithLabelValues(approvedBy).Inc()
}

// Handler 返回/metrics处理器
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve 启动指标HTTP服务
func (m *Registry) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	m.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		m.logger.Info("指标服务已启动", zap.String("addr", addr))
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("指标服务异常退出", zap.Error(err))
		}
	}()
}

// Shutdown 关闭指标HTTP服务
func (m *Registry) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
