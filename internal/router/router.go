package router

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// 路由模式（主题包含即匹配）
const (
	PatternTelemetry = "/telemetry"
	PatternStatus    = "/status"
	PatternEvents    = "/events"
)

// Toucher 会话活跃度更新
type Toucher interface {
	Touch(sessionID string)
}

// Handler 主题处理函数
type Handler func(ctx context.Context, deviceID string, payload []byte) error

type route struct {
	name    string
	pattern string
	handler Handler
}

// Router 按主题分类入站发布消息
// 各模式独立判断：一个主题匹配多个模式时，所有匹配的处理函数按注册顺序执行。
type Router struct {
	toucher Toucher
	routes  []route
	logger  *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(toucher Toucher, telemetry, status, events Handler, logger *zap.Logger) *Router {
	return &Router{
		toucher: toucher,
		routes: []route{
			{name: "telemetry", pattern: PatternTelemetry, handler: telemetry},
			{name: "status", pattern: PatternStatus, handler: status},
			{name: "events", pattern: PatternEvents, handler: events},
		},
		logger: logger,
	}
}

// Route 处理一条入站发布消息；错误只记录，不向传输层返回
func (r *Router) Route(ctx context.Context, sessionID, topic string, payload []byte) {
	if sessionID == "" {
		r.logger.Debug("Dropping publish without originating session", zap.String("topic", topic))
		return
	}

	r.toucher.Touch(sessionID)

	matched := false
	for _, rt := range r.routes {
		if !strings.Contains(topic, rt.pattern) {
			continue
		}
		matched = true
		if rt.handler == nil {
			continue
		}
		if err := rt.handler(ctx, sessionID, payload); err != nil {
			r.logger.Debug("Route handler failed",
				zap.String("route", rt.name),
				zap.String("device_id", sessionID),
				zap.String("topic", topic),
				zap.Error(err),
			)
		}
	}

	if !matched {
		r.logger.Debug("No route for topic",
			zap.String("device_id", sessionID),
			zap.String("topic", topic),
		)
	}
}
