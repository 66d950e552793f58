// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a transaction with tenant isolation.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tenantID string, tx *domain.Transaction) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transactions (
			id, tenant_id, provider, card_id, vehicle_id, driver_id,
			timestamp, liters, price_per_liter, total_amount, fuel_type,
			station_id, station_lat, station_lon, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tenantID, tx.Provider, tx.CardID, tx.VehicleID, tx.DriverID,
		tx.Timestamp, tx.Liters, tx.PricePerLiter, tx.TotalAmount, tx.FuelType,
		tx.StationID, tx.StationLat, tx.StationLon, createdAt,
	)
	return err
}

const transactionColumns = `id, tenant_id, provider, card_id, vehicle_id, driver_id,
	timestamp, liters, price_per_liter, total_amount, fuel_type,
	station_id, station_lat, station_lon, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(
		&tx.ID, &tx.TenantID, &tx.Provider, &tx.CardID, &tx.VehicleID, &tx.DriverID,
		&tx.Timestamp, &tx.Liters, &tx.PricePerLiter, &tx.TotalAmount, &tx.FuelType,
		&tx.StationID, &tx.StationLat, &tx.StationLon, &tx.CreatedAt,
	)
	return tx, err
}

// GetTransaction retrieves a transaction by ID with tenant isolation.
func (r *SQLRepository) GetTransaction(ctx context.Context, tenantID string, txID string) (*domain.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE tenant_id = ? AND id = ?`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListTransactionsByVehicle retrieves a vehicle's transactions since the
// given time, oldest first.
func (r *SQLRepository) ListTransactionsByVehicle(ctx context.Context, tenantID string, vehicleID string, since time.Time) ([]domain.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE tenant_id = ? AND vehicle_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, vehicleID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// UpsertVehicle inserts or replaces a vehicle with tenant isolation.
func (r *SQLRepository) UpsertVehicle(ctx context.Context, tenantID string, v *domain.Vehicle) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO vehicles (id, tenant_id, type, tank_capacity, reg_number, project_id, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			type = excluded.type,
			tank_capacity = excluded.tank_capacity,
			reg_number = excluded.reg_number,
			project_id = excluded.project_id,
			status = excluded.status
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		v.ID, tenantID, v.Type, v.TankCapacity, v.RegNumber, v.ProjectID, string(v.Status),
	)
	return err
}

// ListVehicles retrieves all vehicles for a tenant.
func (r *SQLRepository) ListVehicles(ctx context.Context, tenantID string) ([]domain.Vehicle, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, type, tank_capacity, reg_number, project_id, status
		FROM vehicles
		WHERE tenant_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []domain.Vehicle
	for rows.Next() {
		var v domain.Vehicle
		var status string
		if err := rows.Scan(&v.ID, &v.Type, &v.TankCapacity, &v.RegNumber, &v.ProjectID, &status); err != nil {
			return nil, err
		}
		v.Status = domain.VehicleStatus(status)
		vehicles = append(vehicles, v)
	}

	return vehicles, rows.Err()
}

// UpsertProject inserts or replaces a project with tenant isolation.
func (r *SQLRepository) UpsertProject(ctx context.Context, tenantID string, p *domain.Project) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO projects (id, tenant_id, name, geofence_lat, geofence_lon, geofence_radius_km, active, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			geofence_lat = excluded.geofence_lat,
			geofence_lon = excluded.geofence_lon,
			geofence_radius_km = excluded.geofence_radius_km,
			active = excluded.active,
			start_date = excluded.start_date,
			end_date = excluded.end_date
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ID, tenantID, p.Name, p.GeofenceLat, p.GeofenceLon, p.GeofenceRadiusKm,
		boolToInt(p.Active), nullableTime(p.StartDate), nullableTime(p.EndDate),
	)
	return err
}

// ListProjects retrieves all projects for a tenant.
func (r *SQLRepository) ListProjects(ctx context.Context, tenantID string) ([]domain.Project, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, geofence_lat, geofence_lon, geofence_radius_km, active, start_date, end_date
		FROM projects
		WHERE tenant_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		var active int
		var start, end sql.NullTime
		if err := rows.Scan(&p.ID, &p.Name, &p.GeofenceLat, &p.GeofenceLon, &p.GeofenceRadiusKm, &active, &start, &end); err != nil {
			return nil, err
		}
		p.Active = active == 1
		if start.Valid {
			t := start.Time
			p.StartDate = &t
		}
		if end.Valid {
			t := end.Time
			p.EndDate = &t
		}
		projects = append(projects, p)
	}

	return projects, rows.Err()
}

// UpsertWorker inserts or replaces a worker with tenant isolation.
func (r *SQLRepository) UpsertWorker(ctx context.Context, tenantID string, w *domain.Worker) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	projectIDs, _ := json.Marshal(w.ProjectIDs)

	query := `
		INSERT INTO workers (id, tenant_id, name, schedule_start, schedule_end, project_ids, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			schedule_start = excluded.schedule_start,
			schedule_end = excluded.schedule_end,
			project_ids = excluded.project_ids,
			active = excluded.active
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		w.ID, tenantID, w.Name, w.ScheduleStart, w.ScheduleEnd, string(projectIDs), boolToInt(w.Active),
	)
	return err
}

// ListWorkers retrieves all workers for a tenant.
func (r *SQLRepository) ListWorkers(ctx context.Context, tenantID string) ([]domain.Worker, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, schedule_start, schedule_end, project_ids, active
		FROM workers
		WHERE tenant_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []domain.Worker
	for rows.Next() {
		var w domain.Worker
		var projectIDs string
		var active int
		if err := rows.Scan(&w.ID, &w.Name, &w.ScheduleStart, &w.ScheduleEnd, &projectIDs, &active); err != nil {
			return nil, err
		}
		w.Active = active == 1
		if projectIDs != "" {
			json.Unmarshal([]byte(projectIDs), &w.ProjectIDs)
		}
		workers = append(workers, w)
	}

	return workers, rows.Err()
}

// SaveAnomaly stores a detection result with tenant isolation.
func (r *SQLRepository) SaveAnomaly(ctx context.Context, tenantID string, a *domain.Anomaly) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if a.ID == "" {
		return fmt.Errorf("%w: anomaly ID is required", ErrInvalidInput)
	}

	reasons, _ := json.Marshal(a.Reasons)
	ruleIDs, _ := json.Marshal(a.RuleIDs)

	status := a.Status
	if status == "" {
		status = domain.ReviewPending
	}

	query := `
		INSERT INTO anomalies (
			id, tenant_id, transaction_id, vehicle_id, is_anomalous,
			severity, risk_score, reasons, rule_ids, detected_at,
			reviewed, reviewed_by, reviewed_at, review_notes, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, tenantID, a.TransactionID, a.VehicleID, boolToInt(a.IsAnomalous),
		string(a.Severity), a.RiskScore, string(reasons), string(ruleIDs), a.DetectedAt,
		boolToInt(a.Reviewed), a.ReviewedBy, nullableTime(a.ReviewedAt), a.ReviewNotes, status,
	)
	return err
}

const anomalyColumns = `id, tenant_id, transaction_id, vehicle_id, is_anomalous,
	severity, risk_score, reasons, rule_ids, detected_at,
	reviewed, reviewed_by, reviewed_at, review_notes, status`

func scanAnomaly(row interface{ Scan(...any) error }) (domain.Anomaly, error) {
	var a domain.Anomaly
	var anomalous, reviewed int
	var severity, reasons, ruleIDs string
	var reviewedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.TenantID, &a.TransactionID, &a.VehicleID, &anomalous,
		&severity, &a.RiskScore, &reasons, &ruleIDs, &a.DetectedAt,
		&reviewed, &a.ReviewedBy, &reviewedAt, &a.ReviewNotes, &a.Status,
	)
	if err != nil {
		return a, err
	}

	a.IsAnomalous = anomalous == 1
	a.Severity = domain.Severity(severity)
	a.Reviewed = reviewed == 1
	if reviewedAt.Valid {
		t := reviewedAt.Time
		a.ReviewedAt = &t
	}
	json.Unmarshal([]byte(reasons), &a.Reasons)
	json.Unmarshal([]byte(ruleIDs), &a.RuleIDs)
	return a, nil
}

// GetAnomaly retrieves an anomaly by ID with tenant isolation.
func (r *SQLRepository) GetAnomaly(ctx context.Context, tenantID string, anomalyID string) (*domain.Anomaly, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT ` + anomalyColumns + ` FROM anomalies WHERE tenant_id = ? AND id = ?`

	a, err := scanAnomaly(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, anomalyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAnomalies retrieves anomalies matching the filter, newest first.
func (r *SQLRepository) ListAnomalies(ctx context.Context, tenantID string, filter domain.AnomalyFilter) ([]domain.Anomaly, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	var (
		conds = []string{"tenant_id = ?"}
		args  = []any{tenantID}
	)

	if filter.Severity != "" {
		conds = append(conds, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Reviewed != nil {
		conds = append(conds, "reviewed = ?")
		args = append(args, boolToInt(*filter.Reviewed))
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "detected_at >= ?")
		args = append(args, filter.Since)
	}
	if !filter.Until.IsZero() {
		conds = append(conds, "detected_at <= ?")
		args = append(args, filter.Until)
	}

	query := `SELECT ` + anomalyColumns + ` FROM anomalies WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY detected_at DESC, id DESC`

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var anomalies []domain.Anomaly
	for rows.Next() {
		a, err := scanAnomaly(rows)
		if err != nil {
			return nil, err
		}
		anomalies = append(anomalies, a)
	}

	return anomalies, rows.Err()
}

// ReviewAnomaly records a reviewer's verdict. The engine's detection
// fields are never touched.
func (r *SQLRepository) ReviewAnomaly(ctx context.Context, tenantID string, anomalyID string, review domain.AnomalyReview) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	switch review.Status {
	case domain.ReviewPending, domain.ReviewConfirmed, domain.ReviewFalsePositive, domain.ReviewResolved:
	default:
		return fmt.Errorf("%w: unknown review status %q", ErrInvalidInput, review.Status)
	}

	query := `
		UPDATE anomalies
		SET reviewed = 1, reviewed_by = ?, reviewed_at = ?, review_notes = ?, status = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		review.ReviewedBy, time.Now().UTC(), review.ReviewNotes, review.Status,
		tenantID, anomalyID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Stats aggregates detection outcomes for a tenant.
func (r *SQLRepository) Stats(ctx context.Context, tenantID string) (*domain.StatsSummary, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	summary := &domain.StatsSummary{}

	query := `SELECT COUNT(*) FROM transactions WHERE tenant_id = ?`
	if err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID).Scan(&summary.TotalTransactions); err != nil {
		return nil, err
	}

	query = `
		SELECT COUNT(*),
		       COALESCE(AVG(risk_score), 0),
		       COALESCE(SUM(CASE WHEN severity = 'Critical' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN severity = 'High' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN severity = 'Medium' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN severity = 'Low' THEN 1 ELSE 0 END), 0)
		FROM anomalies
		WHERE tenant_id = ? AND is_anomalous = 1
	`
	if err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID).Scan(
		&summary.TotalAnomalies, &summary.AverageRiskScore,
		&summary.CriticalAnomalies, &summary.HighAnomalies,
		&summary.MediumAnomalies, &summary.LowAnomalies,
	); err != nil {
		return nil, err
	}

	return summary, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
