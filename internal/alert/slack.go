package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/model"
)

const defaultSlackTimeout = 10 * time.Second

// 附件颜色映射
var slackColors = map[model.Severity]string{
	model.SeverityInfo:     "#36a64f", // 绿
	model.SeverityWarning:  "#ff9900", // 橙
	model.SeverityCritical: "#ff0000", // 红
}

const slackDefaultColor = "#808080"

type slackAttachment struct {
	Color    string   `json:"color"`
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	Footer   string   `json:"footer"`
	MrkdwnIn []string `json:"mrkdwn_in"`
}

type slackPayload struct {
	Attachments []slackAttachment `json:"attachments"`
}

// SlackSender 通过Incoming Webhook推送到Slack频道
type SlackSender struct {
	webhookURL string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewSlackSender 创建Slack通知通道
func NewSlackSender(cfg config.SlackConfig, logger *zap.Logger) *SlackSender {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultSlackTimeout
	}

	return &SlackSender{
		webhookURL: cfg.WebhookURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// Name 通道名称
func (s *SlackSender) Name() string {
	return "slack"
}

func (s *SlackSender) buildPayload(alert model.Alert) slackPayload {
	color, ok := slackColors[alert.Severity]
	if !ok {
		color = slackDefaultColor
	}

	return slackPayload{
		Attachments: []slackAttachment{{
			Color:    color,
			Title:    fmt.Sprintf("%s: HIMARI Strategic Update", alert.Severity),
			Text:     alert.Message,
			Footer:   "Dune Analytics Pipeline | " + s.now().UTC().Format("2006-01-02 15:04") + " UTC",
			MrkdwnIn: []string{"text"},
		}},
	}
}

// Send 发送一条告警, webhook未配置时跳过
func (s *SlackSender) Send(ctx context.Context, alert model.Alert) error {
	if s.webhookURL == "" {
		s.logger.Warn("Slack webhook未配置, 告警未发送")
		return nil
	}

	body, err := json.Marshal(s.buildPayload(alert))
	if err != nil {
		return fmt.Errorf("序列化Slack消息失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建Slack请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("发送Slack告警失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("发送Slack告警失败: 状态码%d, %s", resp.StatusCode, string(respBody))
	}

	s.logger.Info("Slack告警已发送", zap.String("severity", string(alert.Severity)))
	return nil
}
