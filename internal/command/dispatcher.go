package command

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// 命令下发的 MQTT 参数：至少一次、不保留
const (
	CommandQoS    byte = 1
	CommandRetain      = false
)

// Publisher 传输层出站发布
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retain bool) error
}

// Topic 设备命令主题
func Topic(deviceID string) string {
	return fmt.Sprintf("devices/%s/commands", deviceID)
}

// Dispatcher 设备命令下发（无本地状态，不关联响应）
type Dispatcher struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewDispatcher 创建命令下发器
func NewDispatcher(publisher Publisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		logger:    logger,
	}
}

// SendCommand 序列化命令并发布到设备命令主题
func (d *Dispatcher) SendCommand(deviceID string, command interface{}) error {
	if deviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	payload, err := json.Marshal(command)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	topic := Topic(deviceID)
	if err := d.publisher.Publish(topic, payload, CommandQoS, CommandRetain); err != nil {
		return fmt.Errorf("failed to publish command: %w", err)
	}

	d.logger.Info("Command sent to device",
		zap.String("device_id", deviceID),
		zap.String("topic", topic),
		zap.ByteString("command", payload),
	)
	return nil
}
