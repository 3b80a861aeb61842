package notify

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subseq/zini/pkg/events"
)

func testHub(bufferSize int) *Hub {
	return NewHubWithBuffer(slog.Default(), bufferSize)
}

func TestHubDeliversToMatchingSubscribers(t *testing.T) {
	t.Parallel()

	hub := testHub(4)
	defer hub.Close()

	all := hub.Subscribe(Filter{})
	taskOnly := hub.Subscribe(Filter{TaskID: "task-1"})
	otherTask := hub.Subscribe(Filter{TaskID: "task-2"})

	hub.Publish(Notification{Type: events.TaskEnrolledEvent, TaskID: "task-1", FlowID: "flow-1"})

	select {
	case n := <-all.C():
		assert.Equal(t, "task-1", n.TaskID)
	default:
		t.Fatal("expected delivery to unfiltered subscriber")
	}

	select {
	case n := <-taskOnly.C():
		assert.Equal(t, events.TaskEnrolledEvent, n.Type)
	default:
		t.Fatal("expected delivery to matching task filter")
	}

	select {
	case <-otherTask.C():
		t.Fatal("unexpected delivery to non-matching filter")
	default:
	}
}

func TestHubFilterRequiresAllFields(t *testing.T) {
	t.Parallel()

	hub := testHub(4)
	defer hub.Close()

	sub := hub.Subscribe(Filter{TaskID: "task-1", FlowID: "flow-1"})

	hub.Publish(Notification{Type: events.NodeTransitionedEvent, TaskID: "task-1", FlowID: "flow-2"})

	select {
	case <-sub.C():
		t.Fatal("flow mismatch should not deliver")
	default:
	}

	hub.Publish(Notification{Type: events.NodeTransitionedEvent, TaskID: "task-1", FlowID: "flow-1"})

	select {
	case n := <-sub.C():
		assert.Equal(t, "flow-1", n.FlowID)
	default:
		t.Fatal("expected delivery when all filter fields match")
	}
}

func TestHubDropsOldestWhenBufferFull(t *testing.T) {
	t.Parallel()

	hub := testHub(2)
	defer hub.Close()

	sub := hub.Subscribe(Filter{})

	hub.Publish(Notification{Type: events.JobDispatchedEvent, JobID: "job-1"})
	hub.Publish(Notification{Type: events.JobDispatchedEvent, JobID: "job-2"})
	hub.Publish(Notification{Type: events.JobDispatchedEvent, JobID: "job-3"})

	assert.Equal(t, uint64(1), sub.Missed())

	first := <-sub.C()
	second := <-sub.C()

	assert.Equal(t, "job-2", first.JobID)
	assert.Equal(t, "job-3", second.JobID)
}

func TestHubSubscriptionClose(t *testing.T) {
	t.Parallel()

	hub := testHub(4)
	defer hub.Close()

	sub := hub.Subscribe(Filter{})
	require.Equal(t, 1, hub.SubscriberCount())

	sub.Close()
	assert.Equal(t, 0, hub.SubscriberCount())

	_, open := <-sub.C()
	assert.False(t, open)

	// Publishing after unsubscribe must not panic.
	hub.Publish(Notification{Type: events.JobCompletedEvent, JobID: "job-1"})
}

func TestHubCloseClosesAllSubscriptions(t *testing.T) {
	t.Parallel()

	hub := testHub(4)

	first := hub.Subscribe(Filter{})
	second := hub.Subscribe(Filter{JobID: "job-1"})

	hub.Close()

	_, open := <-first.C()
	assert.False(t, open)

	_, open = <-second.C()
	assert.False(t, open)

	assert.Equal(t, 0, hub.SubscriberCount())

	// Subscribing to a closed hub returns an already-closed subscription.
	late := hub.Subscribe(Filter{})
	_, open = <-late.C()
	assert.False(t, open)
}

func TestToNotificationExtractsKeys(t *testing.T) {
	t.Parallel()

	enrolled := &events.TaskEnrolled{
		BaseEvent: events.NewBaseEvent(events.TaskEnrolledEvent),
		TaskID:    "task-1",
		FlowID:    "flow-1",
	}

	n := ToNotification(enrolled)
	assert.Equal(t, events.TaskEnrolledEvent, n.Type)
	assert.Equal(t, "task-1", n.TaskID)
	assert.Equal(t, "flow-1", n.FlowID)
	assert.Empty(t, n.JobID)

	completed := &events.JobCompleted{
		BaseEvent: events.NewBaseEvent(events.JobCompletedEvent),
		JobID:     "job-1",
		TaskID:    "task-1",
		Succeeded: true,
	}

	n = ToNotification(completed)
	assert.Equal(t, events.JobCompletedEvent, n.Type)
	assert.Equal(t, "job-1", n.JobID)
}
