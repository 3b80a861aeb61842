package memory

import (
	"context"
	"slices"

	"github.com/subseq/zini/pkg/models"
	"github.com/subseq/zini/pkg/persistence"
)

type flowRepository struct {
	store *Persistence
}

func (fr *flowRepository) SaveFlow(_ context.Context, flow *models.Flow) error {
	fr.store.mu.Lock()
	defer fr.store.mu.Unlock()

	saved := *flow
	fr.store.flows[flow.ID] = &saved

	return nil
}

func (fr *flowRepository) FlowByID(_ context.Context, id string) (*models.Flow, error) {
	fr.store.mu.RLock()
	defer fr.store.mu.RUnlock()

	flow, ok := fr.store.flows[id]
	if !ok {
		return nil, persistence.ErrFlowNotFound
	}

	found := *flow

	return &found, nil
}

func (fr *flowRepository) Flows(_ context.Context) ([]*models.Flow, error) {
	fr.store.mu.RLock()
	defer fr.store.mu.RUnlock()

	flows := make([]*models.Flow, 0, len(fr.store.flows))
	for _, flow := range fr.store.flows {
		found := *flow
		flows = append(flows, &found)
	}

	slices.SortFunc(flows, func(a, b *models.Flow) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return flows, nil
}

func (fr *flowRepository) AssignNode(_ context.Context, flowID, nodeID string) error {
	fr.store.mu.Lock()
	defer fr.store.mu.Unlock()

	if _, ok := fr.store.flows[flowID]; !ok {
		return persistence.NewFlowError("AssignNode", flowID, nodeID, persistence.ErrFlowNotFound)
	}

	if _, ok := fr.store.nodes[nodeID]; !ok {
		return persistence.NewFlowError("AssignNode", flowID, nodeID, persistence.ErrNodeNotFound)
	}

	if slices.Contains(fr.store.assignments[flowID], nodeID) {
		return nil
	}

	fr.store.assignments[flowID] = append(fr.store.assignments[flowID], nodeID)

	return nil
}

func (fr *flowRepository) Assignments(_ context.Context, flowID string) ([]string, error) {
	fr.store.mu.RLock()
	defer fr.store.mu.RUnlock()

	if _, ok := fr.store.flows[flowID]; !ok {
		return nil, persistence.ErrFlowNotFound
	}

	return slices.Clone(fr.store.assignments[flowID]), nil
}

func (fr *flowRepository) SetEntry(_ context.Context, flowID, nodeID string) error {
	fr.store.mu.Lock()
	defer fr.store.mu.Unlock()

	flow, ok := fr.store.flows[flowID]
	if !ok {
		return persistence.NewFlowError("SetEntry", flowID, nodeID, persistence.ErrFlowNotFound)
	}

	flow.EntryNodeID = nodeID

	return nil
}

func (fr *flowRepository) MarkExit(_ context.Context, flowID, nodeID string) error {
	fr.store.mu.Lock()
	defer fr.store.mu.Unlock()

	if _, ok := fr.store.flows[flowID]; !ok {
		return persistence.NewFlowError("MarkExit", flowID, nodeID, persistence.ErrFlowNotFound)
	}

	exits, ok := fr.store.exits[flowID]
	if !ok {
		exits = make(map[string]struct{})
		fr.store.exits[flowID] = exits
	}

	exits[nodeID] = struct{}{}

	return nil
}

func (fr *flowRepository) ReplaceExits(_ context.Context, flowID string, nodeIDs []string) error {
	fr.store.mu.Lock()
	defer fr.store.mu.Unlock()

	if _, ok := fr.store.flows[flowID]; !ok {
		return persistence.NewFlowError("ReplaceExits", flowID, "", persistence.ErrFlowNotFound)
	}

	exits := make(map[string]struct{}, len(nodeIDs))
	for _, nodeID := range nodeIDs {
		exits[nodeID] = struct{}{}
	}

	fr.store.exits[flowID] = exits

	return nil
}

func (fr *flowRepository) Exits(_ context.Context, flowID string) ([]string, error) {
	fr.store.mu.RLock()
	defer fr.store.mu.RUnlock()

	if _, ok := fr.store.flows[flowID]; !ok {
		return nil, persistence.ErrFlowNotFound
	}

	exits := make([]string, 0, len(fr.store.exits[flowID]))
	for nodeID := range fr.store.exits[flowID] {
		exits = append(exits, nodeID)
	}

	slices.Sort(exits)

	return exits, nil
}
