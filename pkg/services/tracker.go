package services

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/subseq/zini/pkg/eventbus"
	"github.com/subseq/zini/pkg/events"
	"github.com/subseq/zini/pkg/models"
	"github.com/subseq/zini/pkg/otelhelper"
	"github.com/subseq/zini/pkg/persistence"
)

// Tracker moves tasks through flows. Each (task, flow) pair holds exactly
// one position; transitions follow the flow's scoped edges and stop at exit
// nodes.
type Tracker struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
}

// NewTracker creates a new position tracker service.
func NewTracker(persistence persistence.Persistence, publisher eventbus.EventPublisher) *Tracker {
	return &Tracker{
		persistence: persistence,
		publisher:   publisher,
		tracer:      otel.Tracer("zini/tracker"),
	}
}

// Enroll places the task at the flow's entry node. Fails with
// ErrAlreadyEnrolled when the task already holds a position in the flow and
// ErrNoEntryNode when the flow has no entry yet.
func (t *Tracker) Enroll(ctx context.Context, taskID, flowID string) (*models.TaskFlowPosition, error) {
	ctx, span := otelhelper.StartSpan(ctx, t.tracer, "tracker.enroll",
		attribute.String(otelhelper.TaskIDKey, taskID),
		attribute.String(otelhelper.FlowIDKey, flowID),
	)
	defer span.End()

	flow, err := t.persistence.FlowRepository().FlowByID(ctx, flowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if flow.EntryNodeID == "" {
		err = &ServiceError{
			Op:      "Enroll",
			Code:    "NO_ENTRY_NODE",
			Message: fmt.Sprintf("flow %s has no entry node", flowID),
			Err:     ErrNoEntryNode,
		}
		otelhelper.SetError(span, err)

		return nil, err
	}

	position := &models.TaskFlowPosition{
		TaskID:        taskID,
		FlowID:        flowID,
		CurrentNodeID: flow.EntryNodeID,
	}

	err = t.persistence.PositionRepository().CreatePosition(ctx, position)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	t.publish(ctx, taskID, events.TaskEnrolled{
		BaseEvent:   events.NewBaseEvent(events.TaskEnrolledEvent),
		TaskID:      taskID,
		FlowID:      flowID,
		EntryNodeID: flow.EntryNodeID,
	})

	return position, nil
}

// Advance moves the task's position along a scoped edge to toNodeID. The
// move is a compare-and-set against the current node: a concurrent advance
// surfaces as ErrConcurrentUpdate, which the caller may retry after
// re-reading the position.
func (t *Tracker) Advance(ctx context.Context, taskID, flowID, toNodeID string) (*models.TaskFlowPosition, error) {
	ctx, span := otelhelper.StartSpan(ctx, t.tracer, "tracker.advance",
		attribute.String(otelhelper.TaskIDKey, taskID),
		attribute.String(otelhelper.FlowIDKey, flowID),
		attribute.String(otelhelper.NodeIDKey, toNodeID),
	)
	defer span.End()

	position, err := t.persistence.PositionRepository().PositionByTaskFlow(ctx, taskID, flowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	exits, err := t.persistence.FlowRepository().Exits(ctx, flowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if slices.Contains(exits, position.CurrentNodeID) {
		err = &ServiceError{
			Op:      "Advance",
			Code:    "ALREADY_TERMINAL",
			Message: fmt.Sprintf("task %s already reached an exit of flow %s", taskID, flowID),
			Err:     ErrAlreadyTerminal,
		}
		otelhelper.SetError(span, err)

		return nil, err
	}

	legal, err := t.hasScopedEdge(ctx, flowID, position.CurrentNodeID, toNodeID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if !legal {
		err = &ServiceError{
			Op:      "Advance",
			Code:    "ILLEGAL_TRANSITION",
			Message: fmt.Sprintf("no edge from %s to %s within flow %s", position.CurrentNodeID, toNodeID, flowID),
			Err:     ErrIllegalTransition,
		}
		otelhelper.SetError(span, err)

		return nil, err
	}

	err = t.persistence.PositionRepository().AdvancePosition(ctx, taskID, flowID, position.CurrentNodeID, toNodeID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	fromNodeID := position.CurrentNodeID
	position.CurrentNodeID = toNodeID
	terminal := slices.Contains(exits, toNodeID)

	t.publish(ctx, taskID, events.NodeTransitioned{
		BaseEvent:  events.NewBaseEvent(events.NodeTransitionedEvent),
		TaskID:     taskID,
		FlowID:     flowID,
		FromNodeID: fromNodeID,
		ToNodeID:   toNodeID,
		Terminal:   terminal,
	})

	return position, nil
}

// Position returns the task's current position in the flow.
func (t *Tracker) Position(ctx context.Context, taskID, flowID string) (*models.TaskFlowPosition, error) {
	return t.persistence.PositionRepository().PositionByTaskFlow(ctx, taskID, flowID)
}

// Positions returns every flow position the task holds, in enrollment order.
func (t *Tracker) Positions(ctx context.Context, taskID string) ([]*models.TaskFlowPosition, error) {
	return t.persistence.PositionRepository().PositionsByTask(ctx, taskID)
}

// IsTerminal reports whether the task's position sits on one of the flow's
// exit nodes.
func (t *Tracker) IsTerminal(ctx context.Context, taskID, flowID string) (bool, error) {
	position, err := t.persistence.PositionRepository().PositionByTaskFlow(ctx, taskID, flowID)
	if err != nil {
		return false, err
	}

	exits, err := t.persistence.FlowRepository().Exits(ctx, flowID)
	if err != nil {
		return false, err
	}

	return slices.Contains(exits, position.CurrentNodeID), nil
}

func (t *Tracker) hasScopedEdge(ctx context.Context, flowID, from, to string) (bool, error) {
	assigned, err := t.persistence.FlowRepository().Assignments(ctx, flowID)
	if err != nil {
		return false, err
	}

	if !slices.Contains(assigned, from) || !slices.Contains(assigned, to) {
		return false, nil
	}

	neighbors, err := t.persistence.GraphRepository().Neighbors(ctx, from)
	if err != nil {
		return false, err
	}

	return slices.Contains(neighbors, to), nil
}

func (t *Tracker) publish(ctx context.Context, key string, event eventbus.Event) {
	if t.publisher == nil {
		return
	}

	_ = t.publisher.Publish(ctx, key, event)
}
