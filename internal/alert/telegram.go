package alert

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/model"
)

// TelegramSender 通过机器人推送到Telegram会话
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegramSender 创建Telegram通知通道
func NewTelegramSender(cfg config.TelegramConfig, logger *zap.Logger) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("初始化Telegram机器人失败: %w", err)
	}

	logger.Info("Telegram机器人已连接", zap.String("username", bot.Self.UserName))

	return &TelegramSender{
		bot:    bot,
		chatID: cfg.ChatID,
		logger: logger,
	}, nil
}

// Name 通道名称
func (s *TelegramSender) Name() string {
	return "telegram"
}

// Send 发送一条告警
func (s *TelegramSender) Send(ctx context.Context, alert model.Alert) error {
	text := fmt.Sprintf("*%s: HIMARI Strategic Update*\n\n%s", alert.Severity, alert.Message)

	msg := tgbotapi.NewMessage(s.chatID, text)
	msg.ParseMode = "Markdown"

	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("发送Telegram告警失败: %w", err)
	}

	s.logger.Info("Telegram告警已发送", zap.String("severity", string(alert.Severity)))
	return nil
}
