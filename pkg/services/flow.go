package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/subseq/zini/pkg/eventbus"
	"github.com/subseq/zini/pkg/events"
	"github.com/subseq/zini/pkg/graph"
	"github.com/subseq/zini/pkg/models"
	"github.com/subseq/zini/pkg/persistence"
)

var ErrFlowNotFound = persistence.ErrFlowNotFound

// Flow manages flow definitions: named scopes over the shared node graph
// with an entry node and a set of exit nodes.
type Flow struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
}

// NewFlow creates a new flow service. The publisher may be nil, in which
// case lifecycle events are not emitted.
func NewFlow(persistence persistence.Persistence, publisher eventbus.EventPublisher) *Flow {
	return &Flow{
		persistence: persistence,
		publisher:   publisher,
	}
}

// CreateFlowRequest contains the fields for creating a flow definition.
type CreateFlowRequest struct {
	Name        string `json:"name"        validate:"required"`
	Description string `json:"description"`
	Owner       string `json:"owner"       validate:"required"`
}

// Create adds a new flow definition. Flow names are stored uppercase.
func (f *Flow) Create(ctx context.Context, req CreateFlowRequest) (*models.Flow, error) {
	name := strings.ToUpper(strings.TrimSpace(req.Name))
	if name == "" {
		return nil, NewValidationError("Create", "FLOW_NAME_REQUIRED", "flow name is required", ErrFlowNameRequired)
	}

	owner := strings.TrimSpace(req.Owner)
	if owner == "" {
		return nil, NewValidationError("Create", "OWNER_REQUIRED", "owner cannot be empty", ErrEmptyOwner)
	}

	flow := &models.Flow{
		ID:          uuid.New().String(),
		Name:        name,
		Description: req.Description,
		Owner:       owner,
		CreatedAt:   time.Now().UTC(),
	}

	err := f.persistence.FlowRepository().SaveFlow(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}

	f.publish(ctx, flow.ID, events.FlowCreated{
		BaseEvent: events.NewBaseEvent(events.FlowCreatedEvent),
		FlowID:    flow.ID,
		FlowName:  flow.Name,
		Owner:     flow.Owner,
	})

	return flow, nil
}

// FetchByID retrieves a flow by its ID.
func (f *Flow) FetchByID(ctx context.Context, id string) (*models.Flow, error) {
	return f.persistence.FlowRepository().FlowByID(ctx, id)
}

// List retrieves all flow definitions.
func (f *Flow) List(ctx context.Context) ([]*models.Flow, error) {
	return f.persistence.FlowRepository().Flows(ctx)
}

// AssignNode adds a shared graph node to the flow's scope. Assigning an
// already-assigned node is a no-op.
func (f *Flow) AssignNode(ctx context.Context, flowID, nodeID string) error {
	_, err := f.persistence.FlowRepository().FlowByID(ctx, flowID)
	if err != nil {
		return err
	}

	_, err = f.persistence.GraphRepository().NodeByID(ctx, nodeID)
	if err != nil {
		return err
	}

	err = f.persistence.FlowRepository().AssignNode(ctx, flowID, nodeID)
	if err != nil {
		return fmt.Errorf("failed to assign node: %w", err)
	}

	f.publishGraphUpdated(ctx, flowID, "node_assigned", nodeID)

	return nil
}

// SetEntry sets the flow's single entry node. The node must already be
// assigned to the flow.
func (f *Flow) SetEntry(ctx context.Context, flowID, nodeID string) error {
	err := f.requireAssigned(ctx, flowID, nodeID)
	if err != nil {
		return err
	}

	err = f.persistence.FlowRepository().SetEntry(ctx, flowID, nodeID)
	if err != nil {
		return fmt.Errorf("failed to set entry node: %w", err)
	}

	f.publishGraphUpdated(ctx, flowID, "entry_set", nodeID)

	return nil
}

// MarkExit adds a node to the flow's exit set. The node must already be
// assigned to the flow.
func (f *Flow) MarkExit(ctx context.Context, flowID, nodeID string) error {
	err := f.requireAssigned(ctx, flowID, nodeID)
	if err != nil {
		return err
	}

	err = f.persistence.FlowRepository().MarkExit(ctx, flowID, nodeID)
	if err != nil {
		return fmt.Errorf("failed to mark exit node: %w", err)
	}

	f.publishGraphUpdated(ctx, flowID, "exit_marked", nodeID)

	return nil
}

// ReplaceExits atomically swaps the flow's exit set. Every node must be
// assigned to the flow.
func (f *Flow) ReplaceExits(ctx context.Context, flowID string, nodeIDs []string) error {
	assigned, err := f.persistence.FlowRepository().Assignments(ctx, flowID)
	if err != nil {
		return err
	}

	for _, nodeID := range nodeIDs {
		if !slices.Contains(assigned, nodeID) {
			return &ServiceError{
				Op:      "ReplaceExits",
				Code:    "NODE_NOT_ASSIGNED",
				Message: fmt.Sprintf("node %s is not assigned to flow %s", nodeID, flowID),
				Err:     ErrNodeNotAssigned,
			}
		}
	}

	err = f.persistence.FlowRepository().ReplaceExits(ctx, flowID, nodeIDs)
	if err != nil {
		return fmt.Errorf("failed to replace exits: %w", err)
	}

	f.publishGraphUpdated(ctx, flowID, "exits_replaced", "")

	return nil
}

// Graph assembles a full snapshot of the flow's scoped graph: entry, exits,
// assigned nodes, and the edges between them.
func (f *Flow) Graph(ctx context.Context, flowID string) (*models.FlowGraph, error) {
	flow, err := f.persistence.FlowRepository().FlowByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	assigned, err := f.persistence.FlowRepository().Assignments(ctx, flowID)
	if err != nil {
		return nil, err
	}

	exits, err := f.persistence.FlowRepository().Exits(ctx, flowID)
	if err != nil {
		return nil, err
	}

	assignedSet := make(map[string]struct{}, len(assigned))
	for _, nodeID := range assigned {
		assignedSet[nodeID] = struct{}{}
	}

	nodes := make([]*models.Node, 0, len(assigned))
	nodeByID := make(map[string]*models.Node, len(assigned))

	for _, nodeID := range assigned {
		node, err := f.persistence.GraphRepository().NodeByID(ctx, nodeID)
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, node)
		nodeByID[node.ID] = node
	}

	allEdges, err := f.persistence.GraphRepository().Edges(ctx)
	if err != nil {
		return nil, err
	}

	edges := make([]models.Edge, 0)

	for _, edge := range allEdges {
		_, fromIn := assignedSet[edge.FromNodeID]
		_, toIn := assignedSet[edge.ToNodeID]

		if fromIn && toIn {
			edges = append(edges, edge)
		}
	}

	exitNodes := make([]*models.Node, 0, len(exits))
	for _, exitID := range exits {
		if node, ok := nodeByID[exitID]; ok {
			exitNodes = append(exitNodes, node)
		}
	}

	return &models.FlowGraph{
		FlowID: flowID,
		Entry:  nodeByID[flow.EntryNodeID],
		Exits:  exitNodes,
		Nodes:  nodes,
		Edges:  edges,
	}, nil
}

// Validate checks the flow's scoped graph: the entry must be set and every
// exit reachable from it. Unreachable lists assigned nodes the entry cannot
// reach.
func (f *Flow) Validate(ctx context.Context, flowID string) (*models.FlowValidation, error) {
	flow, err := f.persistence.FlowRepository().FlowByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	assigned, err := f.persistence.FlowRepository().Assignments(ctx, flowID)
	if err != nil {
		return nil, err
	}

	exits, err := f.persistence.FlowRepository().Exits(ctx, flowID)
	if err != nil {
		return nil, err
	}

	validation := &models.FlowValidation{FlowID: flowID}

	if flow.EntryNodeID == "" {
		validation.Unreachable = assigned

		return validation, nil
	}

	view, err := f.scopedView(ctx, assigned)
	if err != nil {
		return nil, err
	}

	validation.Unreachable = view.Unreachable(flow.EntryNodeID)

	reachableExits := 0

	for _, exit := range exits {
		if !slices.Contains(validation.Unreachable, exit) {
			reachableExits++
		}
	}

	// A flow the entry cannot leave is broken outright, not merely flagged.
	if reachableExits == 0 {
		return nil, &ServiceError{
			Op:      "Validate",
			Code:    "UNREACHABLE_EXIT",
			Message: fmt.Sprintf("flow %s has no exit reachable from its entry", flowID),
			Err:     ErrUnreachableExit,
		}
	}

	validation.Valid = reachableExits == len(exits)

	return validation, nil
}

// ImportNode declares a node in a bulk graph import. Names are unique
// within the import and act as references for edges, entry, and exits.
type ImportNode struct {
	Name string `json:"name" validate:"required"`
}

// ImportEdge connects two imported nodes by name.
type ImportEdge struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to"   validate:"required"`
}

// ImportGraphRequest describes a complete scoped graph to build in one call.
type ImportGraphRequest struct {
	Nodes []ImportNode `json:"nodes" validate:"required,min=1,dive"`
	Edges []ImportEdge `json:"edges" validate:"dive"`
	Entry string       `json:"entry" validate:"required"`
	Exits []string     `json:"exits" validate:"required,min=1"`
}

// ImportGraph creates the declared nodes in the shared graph, connects
// them, assigns them all to the flow, and sets the entry and exit markers.
// Returns the resulting snapshot.
func (f *Flow) ImportGraph(ctx context.Context, flowID string, req ImportGraphRequest) (*models.FlowGraph, error) {
	_, err := f.persistence.FlowRepository().FlowByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	idsByName, err := f.validateImport(req)
	if err != nil {
		return nil, err
	}

	for _, node := range req.Nodes {
		created := &models.Node{
			ID:   idsByName[node.Name],
			Name: node.Name,
		}

		err = f.persistence.GraphRepository().SaveNode(ctx, created)
		if err != nil {
			return nil, fmt.Errorf("failed to import node %q: %w", node.Name, err)
		}

		err = f.persistence.FlowRepository().AssignNode(ctx, flowID, created.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to assign imported node %q: %w", node.Name, err)
		}
	}

	for _, edge := range req.Edges {
		err = f.persistence.GraphRepository().SaveEdge(ctx, models.Edge{
			FromNodeID: idsByName[edge.From],
			ToNodeID:   idsByName[edge.To],
		})
		if err != nil && !errors.Is(err, persistence.ErrDuplicateEdge) {
			return nil, fmt.Errorf("failed to import edge %q -> %q: %w", edge.From, edge.To, err)
		}
	}

	err = f.persistence.FlowRepository().SetEntry(ctx, flowID, idsByName[req.Entry])
	if err != nil {
		return nil, fmt.Errorf("failed to set imported entry: %w", err)
	}

	exitIDs := make([]string, 0, len(req.Exits))
	for _, exit := range req.Exits {
		exitIDs = append(exitIDs, idsByName[exit])
	}

	err = f.persistence.FlowRepository().ReplaceExits(ctx, flowID, exitIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to set imported exits: %w", err)
	}

	f.publishGraphUpdated(ctx, flowID, "graph_imported", "")

	return f.Graph(ctx, flowID)
}

func (f *Flow) validateImport(req ImportGraphRequest) (map[string]string, error) {
	if len(req.Nodes) == 0 {
		return nil, NewValidationError("ImportGraph", "NODES_REQUIRED", "import must declare at least one node", ErrInvalidRequest)
	}

	idsByName := make(map[string]string, len(req.Nodes))

	for _, node := range req.Nodes {
		name := strings.TrimSpace(node.Name)
		if name == "" {
			return nil, NewValidationError("ImportGraph", "NODE_NAME_REQUIRED", "node name is required", ErrNodeNameRequired)
		}

		if _, dup := idsByName[name]; dup {
			return nil, NewValidationError("ImportGraph", "DUPLICATE_NODE_NAME",
				fmt.Sprintf("duplicate node name %q", name), ErrInvalidRequest)
		}

		idsByName[name] = uuid.New().String()
	}

	for _, edge := range req.Edges {
		if edge.From == edge.To {
			return nil, NewValidationError("ImportGraph", "SELF_EDGE", "edge endpoints must differ", ErrSelfEdge)
		}

		for _, name := range []string{edge.From, edge.To} {
			if _, ok := idsByName[name]; !ok {
				return nil, NewValidationError("ImportGraph", "UNKNOWN_NODE_NAME",
					fmt.Sprintf("edge references undeclared node %q", name), ErrInvalidRequest)
			}
		}
	}

	if _, ok := idsByName[req.Entry]; !ok {
		return nil, NewValidationError("ImportGraph", "UNKNOWN_NODE_NAME",
			fmt.Sprintf("entry references undeclared node %q", req.Entry), ErrInvalidRequest)
	}

	for _, exit := range req.Exits {
		if _, ok := idsByName[exit]; !ok {
			return nil, NewValidationError("ImportGraph", "UNKNOWN_NODE_NAME",
				fmt.Sprintf("exit references undeclared node %q", exit), ErrInvalidRequest)
		}
	}

	return idsByName, nil
}

func (f *Flow) requireAssigned(ctx context.Context, flowID, nodeID string) error {
	assigned, err := f.persistence.FlowRepository().Assignments(ctx, flowID)
	if err != nil {
		return err
	}

	if !slices.Contains(assigned, nodeID) {
		return &ServiceError{
			Op:      "requireAssigned",
			Code:    "NODE_NOT_ASSIGNED",
			Message: fmt.Sprintf("node %s is not assigned to flow %s", nodeID, flowID),
			Err:     ErrNodeNotAssigned,
		}
	}

	return nil
}

func (f *Flow) scopedView(ctx context.Context, assigned []string) (*graph.View, error) {
	edges, err := f.persistence.GraphRepository().Edges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}

	return graph.NewView(assigned, edges), nil
}

func (f *Flow) publish(ctx context.Context, key string, event eventbus.Event) {
	if f.publisher == nil {
		return
	}

	_ = f.publisher.Publish(ctx, key, event)
}

func (f *Flow) publishGraphUpdated(ctx context.Context, flowID, change, nodeID string) {
	f.publish(ctx, flowID, events.FlowGraphUpdated{
		BaseEvent: events.NewBaseEvent(events.FlowGraphUpdatedEvent),
		FlowID:    flowID,
		Change:    change,
		NodeID:    nodeID,
	})
}
