package transport

import "context"

// Inbound 传输层入站回调（由 service.Core 实现）
// 同一客户端的回调由传输层顺序调用。
type Inbound interface {
	Connect(sessionID string)
	Disconnect(sessionID string)
	Publish(ctx context.Context, sessionID, topic string, payload []byte)
	Subscribe(sessionID, topic string)
	Unsubscribe(sessionID, topic string)
}
