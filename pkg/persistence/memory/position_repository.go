package memory

import (
	"context"
	"slices"

	"github.com/subseq/zini/pkg/models"
	"github.com/subseq/zini/pkg/persistence"
)

type positionRepository struct {
	store *Persistence
}

func (pr *positionRepository) CreatePosition(_ context.Context, position *models.TaskFlowPosition) error {
	pr.store.mu.Lock()
	defer pr.store.mu.Unlock()

	key := positionKey{taskID: position.TaskID, flowID: position.FlowID}
	if _, exists := pr.store.positions[key]; exists {
		return persistence.NewPositionError("CreatePosition", position.TaskID, position.FlowID, persistence.ErrAlreadyEnrolled)
	}

	pr.store.nextOrder++
	saved := *position
	saved.OrderAdded = pr.store.nextOrder
	pr.store.positions[key] = &saved
	position.OrderAdded = saved.OrderAdded

	return nil
}

func (pr *positionRepository) PositionByTaskFlow(_ context.Context, taskID, flowID string) (*models.TaskFlowPosition, error) {
	pr.store.mu.RLock()
	defer pr.store.mu.RUnlock()

	position, ok := pr.store.positions[positionKey{taskID: taskID, flowID: flowID}]
	if !ok {
		return nil, persistence.ErrPositionNotFound
	}

	found := *position

	return &found, nil
}

func (pr *positionRepository) PositionsByTask(_ context.Context, taskID string) ([]*models.TaskFlowPosition, error) {
	pr.store.mu.RLock()
	defer pr.store.mu.RUnlock()

	var positions []*models.TaskFlowPosition

	for key, position := range pr.store.positions {
		if key.taskID != taskID {
			continue
		}

		found := *position
		positions = append(positions, &found)
	}

	slices.SortFunc(positions, func(a, b *models.TaskFlowPosition) int {
		return int(a.OrderAdded - b.OrderAdded)
	})

	return positions, nil
}

// AdvancePosition applies the single-step compare-and-set: the update only
// lands when the stored node still matches fromNodeID.
func (pr *positionRepository) AdvancePosition(_ context.Context, taskID, flowID, fromNodeID, toNodeID string) error {
	pr.store.mu.Lock()
	defer pr.store.mu.Unlock()

	position, ok := pr.store.positions[positionKey{taskID: taskID, flowID: flowID}]
	if !ok {
		return persistence.NewPositionError("AdvancePosition", taskID, flowID, persistence.ErrPositionNotFound)
	}

	if position.CurrentNodeID != fromNodeID {
		return persistence.NewPositionError("AdvancePosition", taskID, flowID, persistence.ErrConcurrentUpdate)
	}

	position.CurrentNodeID = toNodeID

	return nil
}
