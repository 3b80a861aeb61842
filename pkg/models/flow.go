package models

import "time"

// Flow is a named workflow definition over the shared node graph. A flow
// selects nodes via assignment, designates one entry node and at least one
// exit node, and inherits graph edges restricted to its assigned nodes.
type Flow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"        validate:"required,min=3"`
	Description string    `json:"description"`
	Owner       string    `json:"owner"       validate:"required"`
	EntryNodeID string    `json:"entry_node_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// FlowGraph is the denormalized snapshot of a flow: its entry and exit
// nodes, assigned nodes, and the scoped edge set.
type FlowGraph struct {
	FlowID string  `json:"flow_id"`
	Entry  *Node   `json:"entry,omitempty"`
	Exits  []*Node `json:"exits"`
	Nodes  []*Node `json:"nodes"`
	Edges  []Edge  `json:"edges"`
}

// FlowValidation reports the result of a flow reachability check. Assigned
// nodes the entry cannot reach are flagged but not fatal; a flow with no
// reachable exit fails validation outright.
type FlowValidation struct {
	FlowID      string   `json:"flow_id"`
	Valid       bool     `json:"valid"`
	Unreachable []string `json:"unreachable,omitempty"`
}
