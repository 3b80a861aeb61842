package web

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/subseq/zini/pkg/notify"
)

const (
	defaultWatchTimeout = 30 * time.Second
	maxWatchTimeout     = 2 * time.Minute
)

// WatchHandlers exposes the notification hub over long-polling HTTP.
type WatchHandlers struct {
	hub *notify.Hub
}

func NewWatchHandlers(hub *notify.Hub) *WatchHandlers {
	return &WatchHandlers{hub: hub}
}

// Watch blocks until a lifecycle notification matches the query filter or
// the timeout elapses. A timeout answers 204 so clients can poll in a loop.
func (h *WatchHandlers) Watch(c fiber.Ctx) error {
	filter := notify.Filter{
		TaskID: c.Query("task_id"),
		FlowID: c.Query("flow_id"),
		JobID:  c.Query("job_id"),
	}

	timeout := defaultWatchTimeout

	if timeoutStr := c.Query("timeout"); timeoutStr != "" {
		parsed, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return badRequest(c, "Invalid timeout: "+err.Error())
		}

		timeout = min(parsed, maxWatchTimeout)
	}

	sub := h.hub.Subscribe(filter)
	defer sub.Close()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case notification, ok := <-sub.C():
		if !ok {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.JSON(notification)
	case <-timer.C:
		return c.SendStatus(fiber.StatusNoContent)
	case <-c.Context().Done():
		return nil
	}
}
