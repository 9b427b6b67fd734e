package notify

import (
	"testing"
	"time"

	"iot-broker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_DeliversInOrder(t *testing.T) {
	hub := NewHub(8, time.Second, zap.NewNop())
	ch, cancel := hub.Subscribe()
	defer cancel()

	kinds := []models.NotificationKind{
		models.KindDeviceConnected,
		models.KindTelemetry,
		models.KindAlert,
		models.KindDeviceDisconnected,
	}
	for _, k := range kinds {
		hub.Emit(models.Notification{Kind: k, DeviceID: "d1"})
	}

	for _, k := range kinds {
		n := <-ch
		assert.Equal(t, k, n.Kind)
		assert.Equal(t, "d1", n.DeviceID)
	}
}

func TestHub_MultipleSubscribers(t *testing.T) {
	hub := NewHub(4, time.Second, zap.NewNop())
	a, cancelA := hub.Subscribe()
	b, cancelB := hub.Subscribe()
	defer cancelA()
	defer cancelB()

	hub.Emit(models.Notification{Kind: models.KindAlert, DeviceID: "d2"})

	assert.Equal(t, models.KindAlert, (<-a).Kind)
	assert.Equal(t, models.KindAlert, (<-b).Kind)
}

func TestHub_FullBufferDropsWithoutBlocking(t *testing.T) {
	hub := NewHub(1, time.Second, zap.NewNop())
	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Emit(models.Notification{Kind: models.KindTelemetry, DeviceID: "first"})
	hub.Emit(models.Notification{Kind: models.KindTelemetry, DeviceID: "second"})

	n := <-ch
	assert.Equal(t, "first", n.DeviceID)
	assert.Len(t, ch, 0)
}

func TestHub_AlertSurvivesFullBuffer(t *testing.T) {
	hub := NewHub(2, time.Second, zap.NewNop())
	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Emit(models.Notification{Kind: models.KindTelemetry, DeviceID: "d1"})
	hub.Emit(models.Notification{Kind: models.KindTelemetry, DeviceID: "d1"})

	done := make(chan struct{})
	go func() {
		hub.Emit(models.Notification{Kind: models.KindAlert, DeviceID: "d1"})
		close(done)
	}()

	var got []models.NotificationKind
	for i := 0; i < 3; i++ {
		select {
		case n := <-ch:
			got = append(got, n.Kind)
		case <-time.After(2 * time.Second):
			t.Fatal("alert not delivered")
		}
	}
	<-done

	assert.Equal(t, []models.NotificationKind{
		models.KindTelemetry,
		models.KindTelemetry,
		models.KindAlert,
	}, got)
}

func TestHub_AlertWaitBoundedForStalledSubscriber(t *testing.T) {
	hub := NewHub(1, 20*time.Millisecond, zap.NewNop())
	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Emit(models.Notification{Kind: models.KindTelemetry, DeviceID: "d1"})

	start := time.Now()
	hub.Emit(models.Notification{Kind: models.KindAlert, DeviceID: "d1"})
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	n := <-ch
	assert.Equal(t, models.KindTelemetry, n.Kind)
	assert.Len(t, ch, 0)
}

func TestHub_CancelClosesChannel(t *testing.T) {
	hub := NewHub(1, time.Second, zap.NewNop())
	ch, cancel := hub.Subscribe()

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	hub.Emit(models.Notification{Kind: models.KindAlert})
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(1, time.Second, zap.NewNop())
	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Close()
	_, ok := <-ch
	assert.False(t, ok)

	late, _ := hub.Subscribe()
	_, ok = <-late
	require.False(t, ok)

	hub.Emit(models.Notification{Kind: models.KindAlert})
}
