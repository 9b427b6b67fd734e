package notify

import (
	"context"
	"fmt"
	"time"

	"iot-broker/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookNotifier 将 alert 通知 POST 到外部 webhook
type WebhookNotifier struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

// NewWebhookNotifier 创建 webhook 通知器
func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Content-Type", "application/json")

	return &WebhookNotifier{
		client: client,
		url:    url,
		logger: logger,
	}
}

// Run 消费通知，只转发 alert 类型
func (w *WebhookNotifier) Run(ctx context.Context, notifications <-chan models.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			if n.Kind != models.KindAlert {
				continue
			}
			if err := w.Send(ctx, n); err != nil {
				w.logger.Error("Failed to deliver alert webhook",
					zap.String("device_id", n.DeviceID),
					zap.String("url", w.url),
					zap.Error(err),
				)
			}
		}
	}
}

// Send 发送单条通知
func (w *WebhookNotifier) Send(ctx context.Context, n models.Notification) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(n).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}
