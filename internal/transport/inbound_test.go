package transport

import (
	"context"
	"sync"
)

type call struct {
	op      string
	session string
	topic   string
	payload string
}

type fakeInbound struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeInbound) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeInbound) Connect(sessionID string) {
	f.record(call{op: "connect", session: sessionID})
}

func (f *fakeInbound) Disconnect(sessionID string) {
	f.record(call{op: "disconnect", session: sessionID})
}

func (f *fakeInbound) Publish(_ context.Context, sessionID, topic string, payload []byte) {
	f.record(call{op: "publish", session: sessionID, topic: topic, payload: string(payload)})
}

func (f *fakeInbound) Subscribe(sessionID, topic string) {
	f.record(call{op: "subscribe", session: sessionID, topic: topic})
}

func (f *fakeInbound) Unsubscribe(sessionID, topic string) {
	f.record(call{op: "unsubscribe", session: sessionID, topic: topic})
}

func (f *fakeInbound) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]call, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeInbound) has(want call) bool {
	for _, c := range f.Calls() {
		if c == want {
			return true
		}
	}
	return false
}
