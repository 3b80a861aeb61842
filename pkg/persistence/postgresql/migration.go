package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Shared workflow node graph. Nodes and edges are append-only so
			-- historical flow definitions never dangle.
			CREATE TABLE flow_nodes (
				id UUID PRIMARY KEY,
				node_name VARCHAR(255) NOT NULL
			);

			CREATE TABLE flow_node_edges (
				from_node_id UUID NOT NULL REFERENCES flow_nodes(id),
				to_node_id UUID NOT NULL REFERENCES flow_nodes(id),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (from_node_id, to_node_id)
			);

			CREATE INDEX idx_flow_node_edges_from ON flow_node_edges(from_node_id);

			CREATE TABLE flows (
				id UUID PRIMARY KEY,
				flow_name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				owner VARCHAR(255) NOT NULL,
				entry_node_id UUID REFERENCES flow_nodes(id),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_flows_owner ON flows(owner);

			CREATE TABLE flow_assignments (
				flow_id UUID NOT NULL REFERENCES flows(id),
				node_id UUID NOT NULL REFERENCES flow_nodes(id),
				PRIMARY KEY (flow_id, node_id)
			);

			CREATE TABLE flow_exits (
				flow_id UUID NOT NULL REFERENCES flows(id),
				node_id UUID NOT NULL REFERENCES flow_nodes(id),
				PRIMARY KEY (flow_id, node_id)
			);
		`,
		2: `
			-- Per-(task, flow) position records. The composite primary key is
			-- the enrollment write-once guard; order_added is display order only.
			CREATE TABLE task_flow_positions (
				task_id UUID NOT NULL,
				flow_id UUID NOT NULL REFERENCES flows(id),
				current_node_id UUID NOT NULL REFERENCES flow_nodes(id),
				order_added BIGSERIAL,
				PRIMARY KEY (task_id, flow_id)
			);

			CREATE INDEX idx_task_flow_positions_task ON task_flow_positions(task_id);
		`,
		3: `
			-- Job lifecycle and escalation chain. job_results and
			-- help_resolutions use the parent id as primary key: the unique
			-- constraint closes the concurrent write-once race at the store.
			CREATE TABLE jobs (
				id UUID PRIMARY KEY,
				project_id UUID NOT NULL,
				task_id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				created_by UUID NOT NULL,
				assignee UUID NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_jobs_project ON jobs(project_id);
			CREATE INDEX idx_jobs_task ON jobs(task_id);
			CREATE INDEX idx_jobs_assignee ON jobs(assignee);

			CREATE TABLE job_results (
				job_id UUID PRIMARY KEY REFERENCES jobs(id),
				completion_time TIMESTAMP WITH TIME ZONE NOT NULL,
				succeeded BOOLEAN NOT NULL,
				job_log TEXT NOT NULL DEFAULT ''
			);

			CREATE TABLE help_requests (
				id UUID PRIMARY KEY,
				job_id UUID NOT NULL REFERENCES jobs(id),
				request TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_help_requests_job ON help_requests(job_id);

			CREATE TABLE help_resolutions (
				help_id UUID PRIMARY KEY REFERENCES help_requests(id),
				result TEXT NOT NULL
			);

			CREATE TABLE resolution_actions (
				id UUID PRIMARY KEY,
				help_id UUID NOT NULL REFERENCES help_requests(id),
				action_taken TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_resolution_actions_help ON resolution_actions(help_id);

			CREATE TABLE resolution_files (
				id UUID PRIMARY KEY,
				action_id UUID NOT NULL REFERENCES resolution_actions(id) ON DELETE CASCADE,
				file_name VARCHAR(1024) NOT NULL
			);

			CREATE INDEX idx_resolution_files_action ON resolution_files(action_id);
		`,
	}
}
