package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"go.uber.org/zap"
)

// EmbeddedServer 内嵌 MQTT broker
// 设备直接连接本进程；broker 生命周期事件经 coreHook 转发给核心。
type EmbeddedServer struct {
	server *mqtt.Server
	addr   string
	logger *zap.Logger
}

// NewEmbeddedServer 创建内嵌 broker 并挂载 TCP 监听
// addr 为空时不监听（仅内联客户端可用）
func NewEmbeddedServer(addr string, logger *zap.Logger) (*EmbeddedServer, error) {
	server := mqtt.New(&mqtt.Options{
		InlineClient: true,
	})

	// 设备认证不在核心范围内
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("failed to add auth hook: %w", err)
	}

	if addr != "" {
		tcp := listeners.NewTCP(listeners.Config{
			ID:      "iot-tcp",
			Address: addr,
		})
		if err := server.AddListener(tcp); err != nil {
			return nil, fmt.Errorf("failed to add listener on %s: %w", addr, err)
		}
	}

	return &EmbeddedServer{
		server: server,
		addr:   addr,
		logger: logger,
	}, nil
}

// Attach 将核心挂到 broker 生命周期事件上
func (s *EmbeddedServer) Attach(inbound Inbound) error {
	if err := s.server.AddHook(&coreHook{inbound: inbound, logger: s.logger}, nil); err != nil {
		return fmt.Errorf("failed to add core hook: %w", err)
	}
	return nil
}

// Start 启动 broker
func (s *EmbeddedServer) Start() error {
	if err := s.server.Serve(); err != nil {
		return fmt.Errorf("failed to start embedded broker: %w", err)
	}
	s.logger.Info("Embedded MQTT broker started", zap.String("addr", s.addr))
	return nil
}

// Close 关闭 broker 与所有客户端连接
func (s *EmbeddedServer) Close() error {
	return s.server.Close()
}

// Publish 以服务端身份发布消息（实现 command.Publisher）
func (s *EmbeddedServer) Publish(topic string, payload []byte, qos byte, retain bool) error {
	return s.server.Publish(topic, payload, retain, qos)
}

// Server 底层 broker（测试与内联订阅使用）
func (s *EmbeddedServer) Server() *mqtt.Server {
	return s.server
}

// coreHook broker 事件到核心调用的适配
type coreHook struct {
	mqtt.HookBase
	inbound Inbound
	logger  *zap.Logger
}

func (h *coreHook) ID() string {
	return "iot-core"
}

func (h *coreHook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		mqtt.OnSessionEstablished,
		mqtt.OnDisconnect,
		mqtt.OnPublished,
		mqtt.OnSubscribed,
		mqtt.OnUnsubscribed,
	}, []byte{b})
}

func (h *coreHook) OnSessionEstablished(cl *mqtt.Client, pk packets.Packet) {
	h.inbound.Connect(cl.ID)

	// 持久会话恢复时 broker 保留的订阅不会再触发 OnSubscribed
	if cl.State.Subscriptions == nil {
		return
	}
	inherited := cl.State.Subscriptions.GetAll()
	filters := make([]string, 0, len(inherited))
	for filter := range inherited {
		filters = append(filters, filter)
	}
	sort.Strings(filters)
	for _, filter := range filters {
		h.inbound.Subscribe(cl.ID, filter)
	}
}

func (h *coreHook) OnDisconnect(cl *mqtt.Client, err error, expire bool) {
	// 会话被同 ID 新连接接管时，新会话已经 Connect 过，不能再删除
	if errors.Is(err, packets.ErrSessionTakenOver) || errors.Is(cl.StopCause(), packets.ErrSessionTakenOver) {
		h.logger.Debug("Session taken over, keeping registry entry", zap.String("device_id", cl.ID))
		return
	}
	h.inbound.Disconnect(cl.ID)
}

func (h *coreHook) OnPublished(cl *mqtt.Client, pk packets.Packet) {
	// 服务端自身发布的命令不回流到路由
	if cl == nil || cl.Net.Inline {
		return
	}
	h.inbound.Publish(context.Background(), cl.ID, pk.TopicName, pk.Payload)
}

func (h *coreHook) OnSubscribed(cl *mqtt.Client, pk packets.Packet, reasonCodes []byte) {
	for i, sub := range pk.Filters {
		if i < len(reasonCodes) && reasonCodes[i] >= packets.ErrUnspecifiedError.Code {
			continue
		}
		h.inbound.Subscribe(cl.ID, sub.Filter)
	}
}

func (h *coreHook) OnUnsubscribed(cl *mqtt.Client, pk packets.Packet) {
	for _, sub := range pk.Filters {
		h.inbound.Unsubscribe(cl.ID, sub.Filter)
	}
}
