package repository

// Schema definitions for FuelGuard.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    provider TEXT NOT NULL,
    card_id TEXT NOT NULL,
    vehicle_id TEXT NOT NULL,
    driver_id TEXT NOT NULL DEFAULT '',
    timestamp TIMESTAMP NOT NULL,
    liters REAL NOT NULL,
    price_per_liter REAL NOT NULL,
    total_amount REAL NOT NULL,
    fuel_type TEXT NOT NULL,
    station_id TEXT NOT NULL,
    station_lat REAL NOT NULL,
    station_lon REAL NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_tenant ON transactions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_transactions_vehicle ON transactions(tenant_id, vehicle_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_card ON transactions(tenant_id, card_id);
`

const schemaVehicles = `
CREATE TABLE IF NOT EXISTS vehicles (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT '',
    tank_capacity REAL NOT NULL,
    reg_number TEXT NOT NULL DEFAULT '',
    project_id TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_vehicles_tenant ON vehicles(tenant_id);
CREATE INDEX IF NOT EXISTS idx_vehicles_project ON vehicles(tenant_id, project_id);
`

const schemaProjects = `
CREATE TABLE IF NOT EXISTS projects (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    geofence_lat REAL NOT NULL,
    geofence_lon REAL NOT NULL,
    geofence_radius_km REAL NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    start_date TIMESTAMP,
    end_date TIMESTAMP,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_projects_tenant ON projects(tenant_id);
`

const schemaWorkers = `
CREATE TABLE IF NOT EXISTS workers (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    schedule_start TEXT NOT NULL,
    schedule_end TEXT NOT NULL,
    project_ids TEXT NOT NULL DEFAULT '[]',
    active INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_workers_tenant ON workers(tenant_id);
`

const schemaAnomalies = `
CREATE TABLE IF NOT EXISTS anomalies (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    vehicle_id TEXT NOT NULL DEFAULT '',
    is_anomalous INTEGER NOT NULL,
    severity TEXT NOT NULL,
    risk_score INTEGER NOT NULL,
    reasons TEXT NOT NULL DEFAULT '[]',
    rule_ids TEXT NOT NULL DEFAULT '[]',
    detected_at TIMESTAMP NOT NULL,
    reviewed INTEGER NOT NULL DEFAULT 0,
    reviewed_by TEXT NOT NULL DEFAULT '',
    reviewed_at TIMESTAMP,
    review_notes TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending',
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_anomalies_tenant ON anomalies(tenant_id);
CREATE INDEX IF NOT EXISTS idx_anomalies_tx ON anomalies(tenant_id, transaction_id);
CREATE INDEX IF NOT EXISTS idx_anomalies_severity ON anomalies(tenant_id, severity);
CREATE INDEX IF NOT EXISTS idx_anomalies_status ON anomalies(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_anomalies_detected ON anomalies(tenant_id, detected_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaVehicles,
		schemaProjects,
		schemaWorkers,
		schemaAnomalies,
	}
}
