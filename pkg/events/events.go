// Package events defines event types and structures for flow and job lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topic.
const Topic = "zini.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Flow definition events.
	FlowCreatedEvent      EventType = "flow.created"
	FlowGraphUpdatedEvent EventType = "flow.graph.updated"

	// Task position events.
	TaskEnrolledEvent     EventType = "task.enrolled"
	NodeTransitionedEvent EventType = "node.transitioned"

	// Job lifecycle events.
	JobDispatchedEvent EventType = "job.dispatched"
	JobCompletedEvent  EventType = "job.completed"

	// Escalation events.
	HelpRaisedEvent         EventType = "help.raised"
	HelpActionRecordedEvent EventType = "help.action.recorded"
	HelpResolvedEvent       EventType = "help.resolved"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

type FlowCreated struct {
	BaseEvent

	FlowID   string `json:"flow_id"`
	FlowName string `json:"flow_name"`
	Owner    string `json:"owner"`
}

func (e FlowCreated) GetType() EventType {
	return FlowCreatedEvent
}

// FlowGraphUpdated fires on any change to a flow's assigned node set,
// entry node, or exit set.
type FlowGraphUpdated struct {
	BaseEvent

	FlowID string `json:"flow_id"`
	Change string `json:"change"`
	NodeID string `json:"node_id,omitempty"`
}

func (e FlowGraphUpdated) GetType() EventType {
	return FlowGraphUpdatedEvent
}

type TaskEnrolled struct {
	BaseEvent

	TaskID      string `json:"task_id"`
	FlowID      string `json:"flow_id"`
	EntryNodeID string `json:"entry_node_id"`
}

func (e TaskEnrolled) GetType() EventType {
	return TaskEnrolledEvent
}

type NodeTransitioned struct {
	BaseEvent

	TaskID     string `json:"task_id"`
	FlowID     string `json:"flow_id"`
	FromNodeID string `json:"from_node_id"`
	ToNodeID   string `json:"to_node_id"`
	Terminal   bool   `json:"terminal"`
}

func (e NodeTransitioned) GetType() EventType {
	return NodeTransitionedEvent
}

type JobDispatched struct {
	BaseEvent

	JobID     string `json:"job_id"`
	ProjectID string `json:"project_id"`
	TaskID    string `json:"task_id"`
	JobName   string `json:"job_name"`
	Assignee  string `json:"assignee"`
}

func (e JobDispatched) GetType() EventType {
	return JobDispatchedEvent
}

type JobCompleted struct {
	BaseEvent

	JobID     string `json:"job_id"`
	TaskID    string `json:"task_id"`
	Succeeded bool   `json:"succeeded"`
}

func (e JobCompleted) GetType() EventType {
	return JobCompletedEvent
}

type HelpRaised struct {
	BaseEvent

	HelpID string `json:"help_id"`
	JobID  string `json:"job_id"`
	TaskID string `json:"task_id"`
}

func (e HelpRaised) GetType() EventType {
	return HelpRaisedEvent
}

type HelpActionRecorded struct {
	BaseEvent

	ActionID string `json:"action_id"`
	HelpID   string `json:"help_id"`
	JobID    string `json:"job_id"`
}

func (e HelpActionRecorded) GetType() EventType {
	return HelpActionRecordedEvent
}

type HelpResolved struct {
	BaseEvent

	HelpID string `json:"help_id"`
	JobID  string `json:"job_id"`
	TaskID string `json:"task_id"`
}

func (e HelpResolved) GetType() EventType {
	return HelpResolvedEvent
}
