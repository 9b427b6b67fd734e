package service

import (
	"context"
	"time"

	"iot-broker/internal/alert"
	"iot-broker/internal/command"
	"iot-broker/internal/events"
	"iot-broker/internal/models"
	"iot-broker/internal/notify"
	"iot-broker/internal/registry"
	"iot-broker/internal/router"
	"iot-broker/internal/telemetry"

	"go.uber.org/zap"
)

// Stores 核心依赖的外部存储
type Stores struct {
	Telemetry telemetry.Sink
	Status    events.StatusStore
	Events    events.EventStore
	Alerts    alert.Store
}

// Core 设备会话与消息路由核心
// 实现传输层入站回调（Connect/Disconnect/Publish/Subscribe/Unsubscribe）和查询接口。
type Core struct {
	registry  *registry.Registry
	router    *router.Router
	ingestor  *telemetry.Ingestor
	processor *events.Processor
	alerts    *alert.Dispatcher
	commands  *command.Dispatcher
	logger    *zap.Logger
}

// NewCore 创建核心
// storageTimeout 为单次存储调用超时
func NewCore(stores Stores, publisher command.Publisher, emitter notify.Emitter, storageTimeout time.Duration, logger *zap.Logger) *Core {
	reg := registry.NewRegistry(emitter, logger.Named("registry"))
	alerts := alert.NewDispatcher(stores.Alerts, emitter, storageTimeout, logger.Named("alert"))
	ingestor := telemetry.NewIngestor(stores.Telemetry, alerts, emitter, storageTimeout, logger.Named("telemetry"))
	processor := events.NewProcessor(stores.Status, stores.Events, alerts, emitter, storageTimeout, logger.Named("events"))

	return &Core{
		registry:  reg,
		router:    router.NewRouter(reg, ingestor.Ingest, processor.ProcessStatus, processor.ProcessEvent, logger.Named("router")),
		ingestor:  ingestor,
		processor: processor,
		alerts:    alerts,
		commands:  command.NewDispatcher(publisher, logger.Named("command")),
		logger:    logger,
	}
}

// Connect 设备连接
func (c *Core) Connect(sessionID string) {
	c.registry.Connect(sessionID)
}

// Disconnect 设备断开
func (c *Core) Disconnect(sessionID string) {
	c.registry.Disconnect(sessionID)
}

// Subscribe 设备订阅主题
func (c *Core) Subscribe(sessionID, topic string) {
	c.registry.Subscribe(sessionID, topic)
}

// Unsubscribe 设备取消订阅
func (c *Core) Unsubscribe(sessionID, topic string) {
	c.registry.Unsubscribe(sessionID, topic)
}

// Publish 设备发布消息
func (c *Core) Publish(ctx context.Context, sessionID, topic string, payload []byte) {
	c.router.Route(ctx, sessionID, topic, payload)
}

// ListConnectedDevices 当前在线设备
func (c *Core) ListConnectedDevices() []models.DeviceSession {
	return c.registry.ListSessions()
}

// ListDeviceSubscriptions 设备订阅的主题
func (c *Core) ListDeviceSubscriptions(deviceID string) []string {
	return c.registry.ListSubscriptions(deviceID)
}

// SendCommand 向设备下发命令
func (c *Core) SendCommand(deviceID string, cmd interface{}) error {
	return c.commands.SendCommand(deviceID, cmd)
}
