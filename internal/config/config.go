package config

import (
	"os"
	"strconv"
	"time"

	"iot-broker/common/config"
)

// 传输模式
const (
	TransportEmbedded = "embedded" // 内嵌 MQTT broker
	TransportBridge   = "bridge"   // 作为客户端桥接外部 broker
)

// Config IoT broker 服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	Transport struct {
		Mode       string // embedded | bridge
		ListenAddr string // embedded 模式监听地址，如 ":1883"
		// bridge 模式订阅的主题
		DeviceTopic string // 如 "devices/#"
		SysTopic    string // 如 "$SYS/brokers/+/clients/#"
	}

	Notify struct {
		Buffer         int           // 进程内订阅者通道缓冲
		AlertWait      time.Duration // 订阅者通道满时 alert 的最长阻塞时间
		StreamEnabled  bool          // 是否转发到 Redis Streams
		Stream         string        // 如 "iot:notifications:stream"
		StreamMaxLen   int64
		WebhookURL     string        // 报警 webhook，空则不启用
		WebhookTimeout time.Duration
	}

	Storage struct {
		Timeout      time.Duration // 单次存储调用超时
		EnsureSchema bool
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 默认值
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "iot"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = "localhost:6379"

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "iot-broker"
	cfg.MQTT.QoS = 1

	// 环境变量覆盖
	cfg.Database.LoadFromEnv("DB")
	cfg.Redis.LoadFromEnv("REDIS")
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Transport.Mode = getEnv("TRANSPORT_MODE", TransportEmbedded)
	cfg.Transport.ListenAddr = getEnv("MQTT_LISTEN_ADDR", ":1883")
	cfg.Transport.DeviceTopic = getEnv("MQTT_DEVICE_TOPIC", "devices/#")
	cfg.Transport.SysTopic = getEnv("MQTT_SYS_TOPIC", "$SYS/brokers/+/clients/#")

	cfg.Notify.Buffer = getEnvInt("NOTIFY_BUFFER", 256)
	cfg.Notify.AlertWait = getEnvDuration("NOTIFY_ALERT_WAIT", 10*time.Second)
	cfg.Notify.StreamEnabled = getEnvBool("NOTIFY_STREAM_ENABLED", true)
	cfg.Notify.Stream = getEnv("NOTIFY_STREAM", "iot:notifications:stream")
	cfg.Notify.StreamMaxLen = int64(getEnvInt("NOTIFY_STREAM_MAXLEN", 100000))
	cfg.Notify.WebhookURL = getEnv("ALERT_WEBHOOK_URL", "")
	cfg.Notify.WebhookTimeout = getEnvDuration("ALERT_WEBHOOK_TIMEOUT", 5*time.Second)

	cfg.Storage.Timeout = getEnvDuration("STORAGE_TIMEOUT", 5*time.Second)
	cfg.Storage.EnsureSchema = getEnvBool("STORAGE_ENSURE_SCHEMA", true)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.Transport.Mode != TransportBridge {
		cfg.Transport.Mode = TransportEmbedded
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}
