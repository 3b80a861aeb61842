package models

// TaskFlowPosition is a task's live position within one enrolled flow. A
// task may be enrolled in several flows concurrently; each (task, flow)
// pair is tracked independently.
//
// OrderAdded is an insertion sequence number kept for display ordering
// only; it carries no transition semantics.
type TaskFlowPosition struct {
	TaskID        string `json:"task_id"`
	FlowID        string `json:"flow_id"`
	CurrentNodeID string `json:"current_node_id"`
	OrderAdded    int64  `json:"order_added"`
}
