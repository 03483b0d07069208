package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/model"
)

// 队列消费的单次阻塞等待时长
const popTimeout = 5 * time.Second

// Dispatcher 告警分发器
// 配置了队列时异步消费, 未配置队列时同步直发所有通道
type Dispatcher struct {
	senders []Sender
	queue   *Queue
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher 创建告警分发器, queue可为nil
func NewDispatcher(senders []Sender, queue *Queue, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		senders: senders,
		queue:   queue,
		logger:  logger,
	}
}

// Dispatch 发出一条告警
func (d *Dispatcher) Dispatch(ctx context.Context, alert model.Alert) error {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.ID == "" {
		// 短ID贯穿队列与发送日志
		alert.ID = uuid.New().String()[:8]
	}

	if d.queue != nil {
		return d.queue.Push(ctx, alert)
	}
	return d.sendAll(ctx, alert)
}

// sendAll 逐个通道发送, 单通道失败不影响其他通道
func (d *Dispatcher) sendAll(ctx context.Context, alert model.Alert) error {
	if len(d.senders) == 0 {
		d.logger.Warn("无可用通知通道, 告警仅记录日志",
			zap.String("alert_id", alert.ID),
			zap.String("severity", string(alert.Severity)),
			zap.String("message", alert.Message))
		return nil
	}

	failed := 0
	for _, s := range d.senders {
		if err := s.Send(ctx, alert); err != nil {
			d.logger.Error("告警发送失败",
				zap.String("alert_id", alert.ID),
				zap.String("channel", s.Name()),
				zap.Error(err))
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d/%d个通道发送失败", failed, len(d.senders))
	}
	return nil
}

// Start 启动队列消费协程, 未配置队列时为空操作
func (d *Dispatcher) Start(ctx context.Context) {
	if d.queue == nil {
		return
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.consumeLoop()

	d.logger.Info("告警分发器已启动", zap.Int("channels", len(d.senders)))
}

func (d *Dispatcher) consumeLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		alert, err := d.queue.Pop(d.ctx, popTimeout)
		if err != nil {
			if d.ctx.Err() != nil {
				return
			}
			d.logger.Error("消费告警队列失败", zap.Error(err))
			select {
			case <-d.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if alert == nil {
			continue // 等待超时, 队列为空
		}

		// 发送失败已在sendAll内记录日志, 消费循环继续
		_ = d.sendAll(d.ctx, *alert)
	}
}

// Stop 停止消费协程并等待退出
func (d *Dispatcher) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	d.wg.Wait()
	d.logger.Info("告警分发器已停止")
}

// CreateDispatcher 按配置装配通知通道
func CreateDispatcher(cfg config.NotificationConfig, queue *Queue, logger *zap.Logger) (*Dispatcher, error) {
	var senders []Sender

	if cfg.Slack.Enabled {
		senders = append(senders, NewSlackSender(cfg.Slack, logger))
		logger.Info("已注册Slack通知通道")
	}

	if cfg.Telegram.Enabled {
		tg, err := NewTelegramSender(cfg.Telegram, logger)
		if err != nil {
			return nil, err
		}
		senders = append(senders, tg)
		logger.Info("已注册Telegram通知通道")
	}

	if len(senders) == 0 {
		logger.Warn("未启用任何通知通道, 告警将只写入日志")
	}

	return NewDispatcher(senders, queue, logger), nil
}
