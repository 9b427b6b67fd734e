package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"iot-broker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebhookNotifier_ForwardsOnlyAlerts(t *testing.T) {
	var mu sync.Mutex
	var received []models.Notification

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n models.Notification
		if err := json.NewDecoder(r.Body).Decode(&n); err == nil {
			mu.Lock()
			received = append(received, n)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL, time.Second, zap.NewNop())
	ch := make(chan models.Notification, 3)
	ch <- models.Notification{Kind: models.KindTelemetry, DeviceID: "d1"}
	ch <- models.Notification{Kind: models.KindAlert, DeviceID: "d1", Alert: &models.AlertInput{Type: "anomaly", Message: "battery out of range: 5"}}
	ch <- models.Notification{Kind: models.KindDeviceEvent, DeviceID: "d1"}
	close(ch)

	notifier.Run(context.Background(), ch)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, models.KindAlert, received[0].Kind)
	assert.Equal(t, "battery out of range: 5", received[0].Alert.Message)
}

func TestWebhookNotifier_SendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL, time.Second, zap.NewNop())
	err := notifier.Send(context.Background(), models.Notification{Kind: models.KindAlert})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
