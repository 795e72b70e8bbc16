package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Live flow definitions. Steps, fields and triggers live inside
			-- the document; structural history lives in step_snapshots.
			CREATE TABLE flows (
				id UUID PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'inactive')),
				initial BOOLEAN NOT NULL DEFAULT FALSE,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_flows_status ON flows(status);
			CREATE INDEX idx_flows_initial ON flows(initial);

			-- Immutable step snapshots, append-only.
			CREATE TABLE step_snapshots (
				step_id UUID NOT NULL,
				version INTEGER NOT NULL,
				step JSONB NOT NULL,
				taken_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (step_id, version)
			);

			CREATE TABLE cases (
				id UUID PRIMARY KEY,
				initial_flow_id UUID NOT NULL,
				flow_version INTEGER NOT NULL DEFAULT 1,
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'pending', 'finished', 'transfer', 'inactive')),
				responsible_user_id VARCHAR(255),
				responsible_group_id VARCHAR(255),
				disabled_steps JSONB NOT NULL DEFAULT '[]',
				resolution_state_id UUID,
				original_case_id UUID,
				case_steps JSONB NOT NULL DEFAULT '[]',
				created_by VARCHAR(255) NOT NULL,
				updated_by VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_cases_initial_flow_id ON cases(initial_flow_id);
			CREATE INDEX idx_cases_status ON cases(status);
			CREATE INDEX idx_cases_created_by ON cases(created_by);

			-- Append-only audit log.
			CREATE TABLE case_log_entries (
				id UUID PRIMARY KEY,
				case_id UUID NOT NULL REFERENCES cases(id),
				action VARCHAR(50) NOT NULL,
				user_id VARCHAR(255),
				flow_id UUID,
				flow_version INTEGER,
				step_id UUID,
				before_user_id VARCHAR(255),
				after_user_id VARCHAR(255),
				before_group_id VARCHAR(255),
				after_group_id VARCHAR(255),
				new_flow_id UUID,
				child_case_id UUID,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_case_log_entries_case_id ON case_log_entries(case_id);
		`,
	}
}
