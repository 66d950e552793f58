package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fuelguard/fuelguard/internal/detect"
	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/metrics"
	"github.com/fuelguard/fuelguard/internal/provider"
	"github.com/fuelguard/fuelguard/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	detector *detect.Detector
	sync     *provider.Service
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, detector *detect.Detector, sync *provider.Service, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		detector: detector,
		sync:     sync,
		version:  version,
	}
}

// DetectResponse is the response for POST /detect.
type DetectResponse struct {
	Results  []domain.AnomalyResult   `json:"results"`
	Errors   []domain.EvaluationError `json:"errors,omitempty"`
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Detect handles POST /detect requests. The request carries the
// transactions and the complete reference snapshot; detection is
// synchronous and stateless, nothing is persisted.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req domain.DetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions are required",
		})
		return
	}

	result, err := h.detector.DetectBatch(ctx, &req)
	if err != nil {
		slog.Error("batch detection failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "detection failed",
		})
		return
	}

	elapsed := time.Since(start)
	metrics.RecordBatch(result, elapsed)

	resp := DetectResponse{
		Results: result.Results,
		Errors:  result.Errors,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = elapsed.Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// IngestTransaction handles POST /transactions. The transaction is
// validated and handed to the event bus; the async worker persists and
// scores it.
func (h *Handler) IngestTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if tx.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction_id is required",
		})
		return
	}
	if tx.Timestamp.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "timestamp is required",
		})
		return
	}
	if tx.Liters <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "liters must be positive",
		})
		return
	}
	if tx.PricePerLiter <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "price_per_liter must be positive",
		})
		return
	}

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	tx.TenantID = tenantID
	tx.CreatedAt = time.Now().UTC()

	payload, err := json.Marshal(tx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode transaction",
		})
		return
	}

	if err := h.bus.Publish(ctx, tenantID, domain.TopicTransactionIngested, payload); err != nil {
		slog.Error("failed to publish transaction", "transaction_id", tx.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue transaction",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":         "accepted",
		"transaction_id": tx.ID,
	})
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	txID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, tenantID, txID)
	if err != nil {
		writeRepoError(w, "transaction", txID, err)
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// UpsertVehicles handles PUT /vehicles with a JSON array of vehicles.
func (h *Handler) UpsertVehicles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var vehicles []domain.Vehicle
	if err := json.NewDecoder(r.Body).Decode(&vehicles); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	for i := range vehicles {
		if err := h.repo.UpsertVehicle(ctx, tenantID, &vehicles[i]); err != nil {
			writeRepoError(w, "vehicle", vehicles[i].ID, err)
			return
		}
	}

	h.invalidateSnapshot(r, tenantID)
	writeJSON(w, http.StatusOK, map[string]int{"count": len(vehicles)})
}

// ListVehicles returns the tenant's vehicles.
func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	vehicles, err := h.repo.ListVehicles(ctx, tenantID)
	if err != nil {
		writeRepoError(w, "vehicles", "", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vehicles": vehicles,
		"count":    len(vehicles),
	})
}

// UpsertProjects handles PUT /projects with a JSON array of projects.
func (h *Handler) UpsertProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var projects []domain.Project
	if err := json.NewDecoder(r.Body).Decode(&projects); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	for i := range projects {
		if err := h.repo.UpsertProject(ctx, tenantID, &projects[i]); err != nil {
			writeRepoError(w, "project", projects[i].ID, err)
			return
		}
	}

	h.invalidateSnapshot(r, tenantID)
	writeJSON(w, http.StatusOK, map[string]int{"count": len(projects)})
}

// ListProjects returns the tenant's projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	projects, err := h.repo.ListProjects(ctx, tenantID)
	if err != nil {
		writeRepoError(w, "projects", "", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"projects": projects,
		"count":    len(projects),
	})
}

// UpsertWorkers handles PUT /workers with a JSON array of workers.
func (h *Handler) UpsertWorkers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var workers []domain.Worker
	if err := json.NewDecoder(r.Body).Decode(&workers); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	for i := range workers {
		if err := h.repo.UpsertWorker(ctx, tenantID, &workers[i]); err != nil {
			writeRepoError(w, "worker", workers[i].ID, err)
			return
		}
	}

	h.invalidateSnapshot(r, tenantID)
	writeJSON(w, http.StatusOK, map[string]int{"count": len(workers)})
}

// ListWorkers returns the tenant's workers.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	workers, err := h.repo.ListWorkers(ctx, tenantID)
	if err != nil {
		writeRepoError(w, "workers", "", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workers": workers,
		"count":   len(workers),
	})
}

// ListAnomalies returns anomalies matching the query filters:
// severity, status, reviewed, since, until, limit, offset.
func (h *Handler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	filter, err := parseAnomalyFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	anomalies, err := h.repo.ListAnomalies(ctx, tenantID, filter)
	if err != nil {
		writeRepoError(w, "anomalies", "", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"anomalies": anomalies,
		"count":     len(anomalies),
	})
}

// GetAnomaly retrieves an anomaly by ID.
func (h *Handler) GetAnomaly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	anomalyID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	anomaly, err := h.repo.GetAnomaly(ctx, tenantID, anomalyID)
	if err != nil {
		writeRepoError(w, "anomaly", anomalyID, err)
		return
	}

	writeJSON(w, http.StatusOK, anomaly)
}

// ReviewAnomaly handles POST /anomalies/{id}/review. The review only
// touches workflow fields, the detection verdict is immutable.
func (h *Handler) ReviewAnomaly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	anomalyID := chi.URLParam(r, "id")

	var review domain.AnomalyReview
	if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if review.ReviewedBy == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "reviewed_by is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.ReviewAnomaly(ctx, tenantID, anomalyID, review); err != nil {
		writeRepoError(w, "anomaly", anomalyID, err)
		return
	}

	slog.Info("anomaly reviewed",
		"anomaly_id", anomalyID,
		"tenant_id", tenantID,
		"status", review.Status,
		"reviewed_by", review.ReviewedBy,
	)

	anomaly, err := h.repo.GetAnomaly(ctx, tenantID, anomalyID)
	if err != nil {
		writeRepoError(w, "anomaly", anomalyID, err)
		return
	}

	writeJSON(w, http.StatusOK, anomaly)
}

// ListProviders returns the registered fuel-card providers.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	if h.sync == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "provider sync not available",
		})
		return
	}

	providers := h.sync.Providers()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": providers,
		"count":     len(providers),
	})
}

// SyncProvider handles POST /providers/{name}/sync. The optional from
// and until query parameters (RFC3339) default to the last 7 days.
func (h *Handler) SyncProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	name := chi.URLParam(r, "name")

	if h.sync == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "provider sync not available",
		})
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -7)
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "from must be RFC3339",
			})
			return
		}
		from = parsed
	}
	if v := q.Get("until"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "until must be RFC3339",
			})
			return
		}
		to = parsed
	}

	result, err := h.sync.Sync(ctx, tenantID, name, from, to)
	if err != nil {
		if errors.Is(err, provider.ErrUnknownProvider) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "provider not found",
			})
			return
		}
		slog.Error("provider sync failed", "provider", name, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":  "provider sync failed",
			"result": result,
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Stats returns the tenant's detection statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	stats, err := h.repo.Stats(ctx, tenantID)
	if err != nil {
		writeRepoError(w, "stats", "", err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// invalidateSnapshot drops the cached reference snapshot after a
// reference-data write so the worker reloads fresh data.
func (h *Handler) invalidateSnapshot(r *http.Request, tenantID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(r.Context(), tenantID, domain.SnapshotCacheKey); err != nil {
		slog.Warn("failed to invalidate reference snapshot",
			"tenant_id", tenantID,
			"error", err,
		)
	}
}

func parseAnomalyFilter(r *http.Request) (domain.AnomalyFilter, error) {
	var filter domain.AnomalyFilter
	q := r.URL.Query()

	filter.Severity = domain.Severity(q.Get("severity"))
	filter.Status = q.Get("status")

	if v := q.Get("reviewed"); v != "" {
		reviewed, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("reviewed must be true or false")
		}
		filter.Reviewed = &reviewed
	}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("since must be RFC3339")
		}
		filter.Since = since
	}

	if v := q.Get("until"); v != "" {
		until, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("until must be RFC3339")
		}
		filter.Until = until
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return filter, errors.New("limit must be a non-negative integer")
		}
		filter.Limit = limit
	}

	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}

	return filter, nil
}

func writeRepoError(w http.ResponseWriter, entity string, id string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": entity + " not found",
		})
	case errors.Is(err, repository.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	default:
		slog.Error("repository operation failed", "entity", entity, "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
