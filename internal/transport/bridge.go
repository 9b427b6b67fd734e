package transport

import (
	"context"
	"fmt"
	"strings"

	mqttc "iot-broker/common/mqtt"
	"iot-broker/internal/command"
	"iot-broker/internal/payload"

	"go.uber.org/zap"
)

// BrokerClient 外部 broker 客户端（common/mqtt.Client 实现）
type BrokerClient interface {
	Subscribe(topic string, qos byte, handler mqttc.MessageHandler) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Unsubscribe(topics ...string) error
	IsConnected() bool
	Disconnect()
}

// EMQX $SYS 客户端事件
const (
	sysConnected    = "connected"
	sysDisconnected = "disconnected"
	sysSubscribed   = "subscribed"
	sysUnsubscribed = "unsubscribed"
)

// Bridge 外部 broker 桥接
// 设备发布通过 devices/# 订阅获得，会话 ID 取主题第二段；
// 连接/断开/订阅/取消订阅来自 EMQX 的 $SYS/brokers/<node>/clients/<clientid>/<event>。
type Bridge struct {
	client      BrokerClient
	selfID      string
	deviceTopic string
	sysTopic    string
	qos         byte
	inbound     Inbound
	logger      *zap.Logger
}

// NewBridge 创建桥接
// selfID 为本服务自身的客户端 ID，其 $SYS 事件被忽略
func NewBridge(client BrokerClient, selfID, deviceTopic, sysTopic string, qos byte, logger *zap.Logger) *Bridge {
	return &Bridge{
		client:      client,
		selfID:      selfID,
		deviceTopic: deviceTopic,
		sysTopic:    sysTopic,
		qos:         qos,
		logger:      logger,
	}
}

// Attach 订阅设备主题与 $SYS 事件，转发给核心
func (b *Bridge) Attach(inbound Inbound) error {
	if !b.client.IsConnected() {
		return fmt.Errorf("MQTT bridge client is not connected")
	}
	b.inbound = inbound

	if b.sysTopic != "" {
		if err := b.client.Subscribe(b.sysTopic, b.qos, b.handleSysMessage); err != nil {
			return fmt.Errorf("failed to subscribe to client events: %w", err)
		}
	}
	if err := b.client.Subscribe(b.deviceTopic, b.qos, b.handleDeviceMessage); err != nil {
		return fmt.Errorf("failed to subscribe to device topic: %w", err)
	}

	b.logger.Info("MQTT bridge attached",
		zap.String("device_topic", b.deviceTopic),
		zap.String("sys_topic", b.sysTopic),
	)
	return nil
}

// Publish 发布到外部 broker（实现 command.Publisher）
func (b *Bridge) Publish(topic string, payload []byte, qos byte, retain bool) error {
	return b.client.Publish(topic, qos, retain, payload)
}

// Close 取消订阅并断开外部 broker
func (b *Bridge) Close() {
	topics := []string{b.deviceTopic}
	if b.sysTopic != "" {
		topics = append(topics, b.sysTopic)
	}
	if b.client.IsConnected() {
		if err := b.client.Unsubscribe(topics...); err != nil {
			b.logger.Warn("Failed to unsubscribe bridge topics", zap.Error(err))
		}
	}
	b.client.Disconnect()
}

func (b *Bridge) handleDeviceMessage(topic string, data []byte) error {
	deviceID, ok := deviceFromTopic(topic)
	if !ok {
		b.logger.Debug("Ignoring message outside device namespace", zap.String("topic", topic))
		return nil
	}
	// 本服务下发的命令也会被 devices/# 收到
	if topic == command.Topic(deviceID) {
		return nil
	}

	b.inbound.Publish(context.Background(), deviceID, topic, data)
	return nil
}

type sysClientEvent struct {
	ClientID string `json:"clientid"`
	Topic    string `json:"topic"`
}

func (b *Bridge) handleSysMessage(topic string, data []byte) error {
	clientID, event, ok := parseSysTopic(topic)
	if !ok {
		return nil
	}
	if clientID == b.selfID {
		return nil
	}

	switch event {
	case sysConnected:
		b.inbound.Connect(clientID)
	case sysDisconnected:
		b.inbound.Disconnect(clientID)
	case sysSubscribed, sysUnsubscribed:
		var ev sysClientEvent
		if err := payload.DecodeObject(data, &ev); err != nil {
			return fmt.Errorf("client event %s: %w", topic, err)
		}
		if ev.Topic == "" {
			return nil
		}
		if event == sysSubscribed {
			b.inbound.Subscribe(clientID, ev.Topic)
		} else {
			b.inbound.Unsubscribe(clientID, ev.Topic)
		}
	}
	return nil
}

// deviceFromTopic 从 devices/<id>/... 提取设备 ID
func deviceFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[0] != "devices" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// parseSysTopic 解析 $SYS/brokers/<node>/clients/<clientid>/<event>
func parseSysTopic(topic string) (clientID, event string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 6 || parts[0] != "$SYS" || parts[1] != "brokers" || parts[3] != "clients" {
		return "", "", false
	}
	if parts[4] == "" {
		return "", "", false
	}
	return parts[4], parts[5], true
}
