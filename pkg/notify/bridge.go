package notify

import (
	"context"

	"github.com/subseq/zini/pkg/eventbus"
	"github.com/subseq/zini/pkg/events"
)

// BridgeEventBus registers a handler for every lifecycle event type and
// republishes each event to the hub with its filter keys extracted. Call
// before the bus's Subscribe.
func BridgeEventBus(bus eventbus.EventSubscriber, hub *Hub) error {
	eventTypes := []events.EventType{
		events.FlowCreatedEvent,
		events.FlowGraphUpdatedEvent,
		events.TaskEnrolledEvent,
		events.NodeTransitionedEvent,
		events.JobDispatchedEvent,
		events.JobCompletedEvent,
		events.HelpRaisedEvent,
		events.HelpActionRecordedEvent,
		events.HelpResolvedEvent,
	}

	for _, eventType := range eventTypes {
		err := bus.Handle(eventType, func(_ context.Context, event interface{}) error {
			hub.Publish(ToNotification(event))

			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// ToNotification extracts hub filter keys from a decoded lifecycle event.
func ToNotification(event any) Notification {
	switch e := event.(type) {
	case *events.FlowCreated:
		return Notification{Type: e.Type, FlowID: e.FlowID, Event: e}
	case *events.FlowGraphUpdated:
		return Notification{Type: e.Type, FlowID: e.FlowID, Event: e}
	case *events.TaskEnrolled:
		return Notification{Type: e.Type, TaskID: e.TaskID, FlowID: e.FlowID, Event: e}
	case *events.NodeTransitioned:
		return Notification{Type: e.Type, TaskID: e.TaskID, FlowID: e.FlowID, Event: e}
	case *events.JobDispatched:
		return Notification{Type: e.Type, TaskID: e.TaskID, JobID: e.JobID, Event: e}
	case *events.JobCompleted:
		return Notification{Type: e.Type, TaskID: e.TaskID, JobID: e.JobID, Event: e}
	case *events.HelpRaised:
		return Notification{Type: e.Type, TaskID: e.TaskID, JobID: e.JobID, Event: e}
	case *events.HelpActionRecorded:
		return Notification{Type: e.Type, JobID: e.JobID, Event: e}
	case *events.HelpResolved:
		return Notification{Type: e.Type, TaskID: e.TaskID, JobID: e.JobID, Event: e}
	default:
		return Notification{Event: event}
	}
}
