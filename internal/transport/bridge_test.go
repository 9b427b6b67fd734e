package transport

import (
	"errors"
	"testing"

	mqttc "iot-broker/common/mqtt"
	"iot-broker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

type fakeBrokerClient struct {
	handlers     map[string]mqttc.MessageHandler
	published    []published
	subscribeErr error
	disconnected bool
	offline      bool
	unsubscribed []string
}

func newFakeBrokerClient() *fakeBrokerClient {
	return &fakeBrokerClient{handlers: make(map[string]mqttc.MessageHandler)}
}

func (f *fakeBrokerClient) Unsubscribe(topics ...string) error {
	f.unsubscribed = append(f.unsubscribed, topics...)
	for _, topic := range topics {
		delete(f.handlers, topic)
	}
	return nil
}

func (f *fakeBrokerClient) IsConnected() bool {
	return !f.offline && !f.disconnected
}

func (f *fakeBrokerClient) Subscribe(topic string, _ byte, handler mqttc.MessageHandler) error {
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.handlers[topic] = handler
	return nil
}

func (f *fakeBrokerClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.published = append(f.published, published{topic: topic, qos: qos, retained: retained, payload: string(payload)})
	return nil
}

func (f *fakeBrokerClient) Disconnect() {
	f.disconnected = true
}

const (
	testDeviceTopic = "devices/#"
	testSysTopic    = "$SYS/brokers/+/clients/#"
)

func newTestBridge(t *testing.T) (*Bridge, *fakeBrokerClient, *fakeInbound) {
	t.Helper()
	client := newFakeBrokerClient()
	in := &fakeInbound{}
	b := NewBridge(client, "iot-broker", testDeviceTopic, testSysTopic, 1, zap.NewNop())
	require.NoError(t, b.Attach(in))
	return b, client, in
}

func TestBridge_AttachSubscribes(t *testing.T) {
	_, client, _ := newTestBridge(t)

	assert.Contains(t, client.handlers, testDeviceTopic)
	assert.Contains(t, client.handlers, testSysTopic)
}

func TestBridge_AttachError(t *testing.T) {
	client := newFakeBrokerClient()
	client.subscribeErr = errors.New("not connected")
	b := NewBridge(client, "iot-broker", testDeviceTopic, testSysTopic, 1, zap.NewNop())

	assert.Error(t, b.Attach(&fakeInbound{}))
}

func TestBridge_AttachRequiresConnection(t *testing.T) {
	client := newFakeBrokerClient()
	client.offline = true
	b := NewBridge(client, "iot-broker", testDeviceTopic, testSysTopic, 1, zap.NewNop())

	assert.Error(t, b.Attach(&fakeInbound{}))
	assert.Empty(t, client.handlers)
}

func TestBridge_ClientEvents(t *testing.T) {
	_, client, in := newTestBridge(t)
	sys := client.handlers[testSysTopic]

	require.NoError(t, sys("$SYS/brokers/emqx@node1/clients/d1/connected", []byte(`{"clientid":"d1"}`)))
	require.NoError(t, sys("$SYS/brokers/emqx@node1/clients/d1/subscribed", []byte(`{"clientid":"d1","topic":"devices/d1/commands"}`)))
	require.NoError(t, sys("$SYS/brokers/emqx@node1/clients/d1/unsubscribed", []byte(`{"clientid":"d1","topic":"devices/d1/commands"}`)))
	require.NoError(t, sys("$SYS/brokers/emqx@node1/clients/d1/disconnected", []byte(`{"clientid":"d1","reason":"normal"}`)))

	assert.Equal(t, []call{
		{op: "connect", session: "d1"},
		{op: "subscribe", session: "d1", topic: "devices/d1/commands"},
		{op: "unsubscribe", session: "d1", topic: "devices/d1/commands"},
		{op: "disconnect", session: "d1"},
	}, in.Calls())
}

func TestBridge_ClientEventsIgnored(t *testing.T) {
	_, client, in := newTestBridge(t)
	sys := client.handlers[testSysTopic]

	// 自身连接
	require.NoError(t, sys("$SYS/brokers/n1/clients/iot-broker/connected", []byte(`{}`)))
	// 非客户端事件
	require.NoError(t, sys("$SYS/brokers/n1/stats/connections/count", []byte(`3`)))
	// 订阅事件缺少 topic
	require.NoError(t, sys("$SYS/brokers/n1/clients/d1/subscribed", []byte(`{"clientid":"d1"}`)))

	assert.Empty(t, in.Calls())
}

func TestBridge_MalformedSubscribeEvent(t *testing.T) {
	_, client, in := newTestBridge(t)
	sys := client.handlers[testSysTopic]

	err := sys("$SYS/brokers/n1/clients/d1/subscribed", []byte(`not json`))

	assert.ErrorIs(t, err, models.ErrDecode)
	assert.Empty(t, in.Calls())
}

func TestBridge_DeviceMessages(t *testing.T) {
	_, client, in := newTestBridge(t)
	devices := client.handlers[testDeviceTopic]

	require.NoError(t, devices("devices/d1/telemetry", []byte(`{"temperature":20}`)))
	require.NoError(t, devices("devices/d1/commands", []byte(`{"action":"reboot"}`)))
	require.NoError(t, devices("devices//status", []byte(`{}`)))
	require.NoError(t, devices("devices/d1", []byte(`{}`)))

	assert.Equal(t, []call{
		{op: "publish", session: "d1", topic: "devices/d1/telemetry", payload: `{"temperature":20}`},
	}, in.Calls())
}

func TestBridge_PublishAndClose(t *testing.T) {
	b, client, _ := newTestBridge(t)

	require.NoError(t, b.Publish("devices/d1/commands", []byte(`{"a":1}`), 1, false))
	b.Close()

	assert.Equal(t, []published{{topic: "devices/d1/commands", qos: 1, payload: `{"a":1}`}}, client.published)
	assert.Equal(t, []string{testDeviceTopic, testSysTopic}, client.unsubscribed)
	assert.Empty(t, client.handlers)
	assert.True(t, client.disconnected)
}

func TestParseSysTopic(t *testing.T) {
	id, event, ok := parseSysTopic("$SYS/brokers/emqx@127.0.0.1/clients/sensor-7/connected")
	assert.True(t, ok)
	assert.Equal(t, "sensor-7", id)
	assert.Equal(t, "connected", event)

	_, _, ok = parseSysTopic("$SYS/brokers/n1/clients//connected")
	assert.False(t, ok)
	_, _, ok = parseSysTopic("devices/d1/telemetry")
	assert.False(t, ok)
}
