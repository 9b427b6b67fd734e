package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iot-broker/common/logger"
	"iot-broker/internal/config"
	"iot-broker/internal/service"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "iot-broker")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting iot-broker service",
		zap.String("transport", cfg.Transport.Mode),
		zap.String("listen_addr", cfg.Transport.ListenAddr),
		zap.String("mqtt_broker", cfg.MQTT.Broker),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 创建服务
	brokerService, err := service.NewBrokerService(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create broker service", zap.Error(err))
	}

	// 启动服务
	if err := brokerService.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start broker service", zap.Error(err))
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := brokerService.Stop(shutdownCtx); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
