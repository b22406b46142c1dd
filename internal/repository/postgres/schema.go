package postgres

var schema = []string{
	`CREATE TABLE IF NOT EXISTS stations (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		order_index INTEGER NOT NULL DEFAULT 0,
		transformer_capacity_kw NUMERIC(12,2) NOT NULL DEFAULT 0,
		max_demand_kw NUMERIC(12,2) NOT NULL DEFAULT 0,
		available_power_kw NUMERIC(12,2) NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'green',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS bars (
		id BIGSERIAL PRIMARY KEY,
		station_id BIGINT NOT NULL REFERENCES stations(id),
		name TEXT NOT NULL,
		bar_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'operative',
		capacity_kw NUMERIC(12,2) NOT NULL DEFAULT 0,
		capacity_a NUMERIC(12,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bars_station ON bars(station_id)`,
	`CREATE TABLE IF NOT EXISTS circuits (
		id BIGSERIAL PRIMARY KEY,
		bar_id BIGINT NOT NULL REFERENCES bars(id),
		secondary_bar_id BIGINT REFERENCES bars(id),
		denomination TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		description TEXT,
		local_item TEXT,
		pi_kw NUMERIC(12,2) NOT NULL,
		fd NUMERIC(6,4) NOT NULL,
		md_kw NUMERIC(12,2) NOT NULL,
		status TEXT NOT NULL,
		is_ups BOOLEAN NOT NULL DEFAULT false,
		reserve_since DATE,
		reserve_expires_at DATE,
		client_last_contact DATE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_circuits_bar ON circuits(bar_id)`,
	`CREATE INDEX IF NOT EXISTS idx_circuits_reserve ON circuits(status, reserve_expires_at)`,
	`CREATE TABLE IF NOT EXISTS sub_circuits (
		id BIGSERIAL PRIMARY KEY,
		circuit_id BIGINT NOT NULL REFERENCES circuits(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT,
		itm TEXT,
		mm2 TEXT,
		pi_kw NUMERIC(12,2) NOT NULL,
		fd NUMERIC(6,4) NOT NULL,
		md_kw NUMERIC(12,2) NOT NULL,
		status TEXT NOT NULL,
		reserve_since DATE,
		reserve_expires_at DATE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sub_circuits_circuit ON sub_circuits(circuit_id)`,
	`CREATE TABLE IF NOT EXISTS observations (
		id BIGSERIAL PRIMARY KEY,
		circuit_id BIGINT REFERENCES circuits(id) ON DELETE CASCADE,
		sub_circuit_id BIGINT REFERENCES sub_circuits(id) ON DELETE CASCADE,
		bar_id BIGINT REFERENCES bars(id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL,
		severity TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGSERIAL PRIMARY KEY,
		station_id BIGINT REFERENCES stations(id) ON DELETE SET NULL,
		circuit_id BIGINT REFERENCES circuits(id) ON DELETE SET NULL,
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT false,
		is_dismissed BOOLEAN NOT NULL DEFAULT false,
		extended_until DATE,
		auto_delete_at DATE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_circuit ON notifications(circuit_id, type)`,
	`CREATE TABLE IF NOT EXISTS requests (
		id BIGSERIAL PRIMARY KEY,
		requester_id BIGINT NOT NULL,
		station_id BIGINT NOT NULL REFERENCES stations(id),
		bar_type TEXT NOT NULL,
		circuit_id BIGINT REFERENCES circuits(id) ON DELETE SET NULL,
		local_item TEXT,
		requested_load_kw NUMERIC(12,2) NOT NULL,
		fd NUMERIC(6,4) NOT NULL,
		sub_circuit_name TEXT,
		sub_circuit_description TEXT,
		sub_circuit_itm TEXT,
		sub_circuit_mm2 TEXT,
		justification TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		rejection_reason TEXT,
		reviewed_by BIGINT,
		reviewed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		user_role TEXT NOT NULL,
		user_name TEXT NOT NULL,
		action_date TIMESTAMPTZ NOT NULL DEFAULT now(),
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id BIGINT,
		details JSONB,
		is_flagged BOOLEAN NOT NULL DEFAULT false,
		flag_reason TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS backups (
		id BIGSERIAL PRIMARY KEY,
		created_by BIGINT NOT NULL,
		file_name TEXT NOT NULL,
		description TEXT,
		document BYTEA NOT NULL,
		includes_audit BOOLEAN NOT NULL DEFAULT false,
		size_bytes BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}
