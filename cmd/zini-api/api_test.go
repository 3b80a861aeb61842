package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subseq/zini/pkg/channels/gochannel"
	"github.com/subseq/zini/pkg/eventbus"
	"github.com/subseq/zini/pkg/events"
	"github.com/subseq/zini/pkg/notify"
	"github.com/subseq/zini/pkg/persistence/memory"
)

func setupTestAPI(t *testing.T) *API {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NewSlogLogger(slog.Default()))
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	return NewAPI(slog.Default(), memory.NewPersistence(), bus)
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestAPI(t).App()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Zini API", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	app := setupTestAPI(t).App()

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_HealthCheck(t *testing.T) {
	app := setupTestAPI(t).App()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "healthy", payload["status"])
}

func TestAPI_WatchTimeout(t *testing.T) {
	app := setupTestAPI(t).App()

	req := httptest.NewRequest(http.MethodGet, "/watch?timeout=10ms", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPI_WatchRejectsBadTimeout(t *testing.T) {
	app := setupTestAPI(t).App()

	req := httptest.NewRequest(http.MethodGet, "/watch?timeout=sideways", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_NotificationBridge(t *testing.T) {
	api := setupTestAPI(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, api.StartNotifications(ctx))

	sub := api.hub.Subscribe(notify.Filter{TaskID: "task-9"})
	defer sub.Close()

	err := api.eventBus.Publish(ctx, "task-9", &events.TaskEnrolled{
		BaseEvent:   events.NewBaseEvent(events.TaskEnrolledEvent),
		TaskID:      "task-9",
		FlowID:      "flow-1",
		EntryNodeID: "node-1",
	})
	require.NoError(t, err)

	select {
	case notification := <-sub.C():
		assert.Equal(t, events.TaskEnrolledEvent, notification.Type)
		assert.Equal(t, "task-9", notification.TaskID)
		assert.Equal(t, "flow-1", notification.FlowID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a notification from the bridge")
	}
}
