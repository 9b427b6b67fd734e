package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"iot-broker/common/database"
	mqttcommon "iot-broker/common/mqtt"
	rediscommon "iot-broker/common/redis"
	"iot-broker/internal/command"
	"iot-broker/internal/config"
	"iot-broker/internal/models"
	"iot-broker/internal/notify"
	"iot-broker/internal/repository"
	"iot-broker/internal/transport"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// BrokerService IoT broker 服务
type BrokerService struct {
	config   *config.Config
	logger   *zap.Logger
	db       *sql.DB
	redis    *redis.Client
	hub      *notify.Hub
	core     *Core
	embedded *transport.EmbeddedServer
	bridge   *transport.Bridge

	forwarder *notify.StreamForwarder
	webhook   *notify.WebhookNotifier

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBrokerService 创建 broker 服务
func NewBrokerService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*BrokerService, error) {
	s := &BrokerService{
		config: cfg,
		logger: logger,
	}

	// 初始化数据库
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = db

	if cfg.Storage.EnsureSchema {
		if err := repository.EnsureSchema(ctx, db); err != nil {
			s.closeStores()
			return nil, err
		}
		logger.Info("Database schema ensured")
	}

	// 初始化Redis（通知转发）
	if cfg.Notify.StreamEnabled {
		redisClient := rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, redisClient); err != nil {
			rediscommon.Close(redisClient)
			s.closeStores()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.redis = redisClient
		s.forwarder = notify.NewStreamForwarder(redisClient, cfg.Notify.Stream, cfg.Notify.StreamMaxLen, logger.Named("stream"))
	}

	if cfg.Notify.WebhookURL != "" {
		s.webhook = notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookTimeout, logger.Named("webhook"))
	}

	s.hub = notify.NewHub(cfg.Notify.Buffer, cfg.Notify.AlertWait, logger.Named("notify"))

	// 初始化传输层
	var publisher command.Publisher
	switch cfg.Transport.Mode {
	case config.TransportBridge:
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			s.closeStores()
			return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
		}
		s.bridge = transport.NewBridge(mqttClient, cfg.MQTT.ClientID, cfg.Transport.DeviceTopic, cfg.Transport.SysTopic, cfg.MQTT.QoS, logger.Named("bridge"))
		publisher = s.bridge
	default:
		server, err := transport.NewEmbeddedServer(cfg.Transport.ListenAddr, logger.Named("embedded"))
		if err != nil {
			s.closeStores()
			return nil, err
		}
		s.embedded = server
		publisher = server
	}

	// 创建Repository
	stores := Stores{
		Telemetry: repository.NewTelemetryRepository(db, logger),
		Status:    repository.NewDeviceStatusRepository(db, logger),
		Events:    repository.NewDeviceEventsRepository(db, logger),
		Alerts:    repository.NewAlertsRepository(db, logger),
	}
	s.core = NewCore(stores, publisher, s.hub, cfg.Storage.Timeout, logger)

	return s, nil
}

// Core 设备会话核心（查询与命令下发）
func (s *BrokerService) Core() *Core {
	return s.core
}

// Start 启动服务
func (s *BrokerService) Start(ctx context.Context) error {
	s.logger.Info("Starting broker service components",
		zap.String("transport", s.config.Transport.Mode),
	)

	// 通知消费者先于传输层启动，保证不漏掉首个连接事件
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if s.forwarder != nil {
		s.runConsumer(runCtx, s.forwarder.Run)
	}
	if s.webhook != nil {
		s.runConsumer(runCtx, s.webhook.Run)
	}

	if s.bridge != nil {
		if err := s.bridge.Attach(s.core); err != nil {
			return fmt.Errorf("failed to start MQTT bridge: %w", err)
		}
	}
	if s.embedded != nil {
		if err := s.embedded.Attach(s.core); err != nil {
			return err
		}
		if err := s.embedded.Start(); err != nil {
			return err
		}
	}

	s.logger.Info("Broker service started successfully")
	return nil
}

func (s *BrokerService) runConsumer(ctx context.Context, run func(context.Context, <-chan models.Notification)) {
	ch, _ := s.hub.Subscribe()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run(ctx, ch)
	}()
}

// Stop 停止服务
func (s *BrokerService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping broker service")

	// 关闭传输层
	if s.embedded != nil {
		if err := s.embedded.Close(); err != nil {
			s.logger.Error("Error stopping embedded broker", zap.Error(err))
		}
	}
	if s.bridge != nil {
		s.bridge.Close()
	}

	// 关闭通知通道后等待消费者排空
	s.hub.Close()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Notification consumers did not drain before shutdown deadline")
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.closeStores()

	s.logger.Info("Broker service stopped")
	return nil
}

func (s *BrokerService) closeStores() {
	// 关闭Redis
	if s.redis != nil {
		rediscommon.Close(s.redis)
	}

	// 关闭数据库
	if s.db != nil {
		database.Close(s.db)
	}
}
