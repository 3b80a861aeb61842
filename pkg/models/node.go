// Package models defines the core domain models for flow tracking and job escalation.
package models

// Node is a reusable workflow state. Nodes are global: the same node may be
// assigned to any number of flows.
type Node struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required,min=1"`
}

// Edge is a permitted transition between two nodes. Edges live on the shared
// graph, not on a flow; a flow scopes them by intersecting with its assigned
// node set. Nodes and edges are append-only so historical flow definitions
// stay valid.
type Edge struct {
	FromNodeID string `json:"from_node_id" validate:"required"`
	ToNodeID   string `json:"to_node_id"   validate:"required"`
}
