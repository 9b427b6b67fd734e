package notify

import (
	"context"

	"iot-broker/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	rediscommon "iot-broker/common/redis"
)

// StreamForwarder 将通知转发到 Redis Streams，供外部消费者读取
type StreamForwarder struct {
	redisClient *redis.Client
	stream      string
	maxLen      int64
	logger      *zap.Logger
}

// NewStreamForwarder 创建 Streams 转发器
func NewStreamForwarder(redisClient *redis.Client, stream string, maxLen int64, logger *zap.Logger) *StreamForwarder {
	return &StreamForwarder{
		redisClient: redisClient,
		stream:      stream,
		maxLen:      maxLen,
		logger:      logger,
	}
}

// Run 消费通知直到通道关闭或 ctx 取消
func (f *StreamForwarder) Run(ctx context.Context, notifications <-chan models.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			f.Forward(ctx, n)
		}
	}
}

// Forward 写入单条通知，失败只记录日志
func (f *StreamForwarder) Forward(ctx context.Context, n models.Notification) {
	streamID, err := rediscommon.PublishJSONToStream(ctx, f.redisClient, f.stream, f.maxLen, string(n.Kind), n)
	if err != nil {
		f.logger.Error("Failed to publish notification to Redis Streams",
			zap.String("stream", f.stream),
			zap.String("kind", string(n.Kind)),
			zap.String("device_id", n.DeviceID),
			zap.Error(err),
		)
		return
	}

	f.logger.Debug("Published notification to Redis Streams",
		zap.String("stream", f.stream),
		zap.String("stream_id", streamID),
		zap.String("kind", string(n.Kind)),
	)
}
