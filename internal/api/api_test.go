package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/fuelguard/fuelguard/internal/bus"
	"github.com/fuelguard/fuelguard/internal/cache"
	"github.com/fuelguard/fuelguard/internal/detect"
	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/provider"
	"github.com/fuelguard/fuelguard/internal/repository"
)

// createTestServer wires a server against SQLite, the LRU cache and the
// channel bus.
func createTestServer(t *testing.T, rateLimit int) *Server {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "fuelguard-api-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	lru := cache.NewLRUCache(100)
	t.Cleanup(func() { lru.Close() })

	eventBus := bus.NewChannelBus(10)
	t.Cleanup(func() { eventBus.Close() })

	detector := detect.New(domain.DefaultDetectionConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	sync := provider.NewService(repo, eventBus)
	sync.Register(provider.NewOKQ8Client(provider.Credentials{
		"client_id":     "cid",
		"client_secret": "secret",
	}))

	cfg := domain.ServerConfig{
		Host:               "localhost",
		Port:               8080,
		ReadTimeout:        30,
		WriteTimeout:       30,
		RateLimitPerMinute: rateLimit,
	}

	return NewServer(cfg, repo, lru, eventBus, detector, sync, "test-v1")
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestDetectEndpoint(t *testing.T) {
	server := createTestServer(t, 0)

	detectReq := domain.DetectRequest{
		Transactions: []domain.Transaction{
			{
				ID:            "T1",
				Provider:      domain.ProviderOKQ8,
				CardID:        "card-1",
				VehicleID:     "V001",
				Timestamp:     time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
				Liters:        500,
				PricePerLiter: 12.20,
				TotalAmount:   6100,
				FuelType:      "diesel",
				StationID:     "ST-1",
			},
		},
		Vehicles: []domain.Vehicle{
			{ID: "V001", TankCapacity: 400, Status: domain.VehicleActive},
		},
	}

	t.Run("SuccessfulDetection", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/detect", detectReq)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp DetectResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if len(resp.Results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(resp.Results))
		}
		result := resp.Results[0]
		if !result.IsAnomalous {
			t.Error("expected anomalous result")
		}
		if result.RiskScore != 30 || result.Severity != domain.SeverityMedium {
			t.Errorf("score = %d, severity = %s", result.RiskScore, result.Severity)
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("version = %s", resp.Metadata.Version)
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
	})

	t.Run("MalformedTransactionsReported", func(t *testing.T) {
		req := detectReq
		req.Transactions = append([]domain.Transaction{
			{ID: "", Timestamp: time.Now(), Liters: 10, PricePerLiter: 10},
		}, req.Transactions...)

		rr := doJSON(t, server, http.MethodPost, "/detect", req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp DetectResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if len(resp.Results) != 1 || len(resp.Errors) != 1 {
			t.Errorf("results = %d, errors = %d", len(resp.Results), len(resp.Errors))
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/detect", domain.DetectRequest{})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/detect", detectReq)

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestIngestEndpoint(t *testing.T) {
	server := createTestServer(t, 0)
	eventBus := server.Handler().bus

	received := make(chan *domain.Message, 1)
	_, err := eventBus.Subscribe(context.Background(), "tenant-001", domain.TopicTransactionIngested, func(ctx context.Context, msg *domain.Message) error {
		received <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	tx := domain.Transaction{
		ID:            "tx-100",
		Provider:      domain.ProviderPreem,
		CardID:        "card-1",
		VehicleID:     "V001",
		Timestamp:     time.Now().UTC(),
		Liters:        40,
		PricePerLiter: 13.10,
		TotalAmount:   524,
		FuelType:      "diesel",
	}

	t.Run("Accepted", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/transactions", tx)

		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		select {
		case msg := <-received:
			var queued domain.Transaction
			if err := json.Unmarshal(msg.Payload, &queued); err != nil {
				t.Fatalf("failed to parse queued transaction: %v", err)
			}
			if queued.ID != "tx-100" {
				t.Errorf("queued id = %s", queued.ID)
			}
			if queued.TenantID != "tenant-001" {
				t.Errorf("tenant must be stamped from the header, got %q", queued.TenantID)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("transaction was not published to the bus")
		}
	})

	t.Run("Validation", func(t *testing.T) {
		cases := map[string]domain.Transaction{
			"MissingID":        {Timestamp: time.Now(), Liters: 10, PricePerLiter: 10},
			"MissingTimestamp": {ID: "x", Liters: 10, PricePerLiter: 10},
			"ZeroLiters":       {ID: "x", Timestamp: time.Now(), PricePerLiter: 10},
			"NegativePrice":    {ID: "x", Timestamp: time.Now(), Liters: 10, PricePerLiter: -1},
		}

		for name, bad := range cases {
			t.Run(name, func(t *testing.T) {
				rr := doJSON(t, server, http.MethodPost, "/transactions", bad)
				if rr.Code != http.StatusBadRequest {
					t.Errorf("expected status 400, got %d", rr.Code)
				}
			})
		}
	})
}

func TestReferenceEndpoints(t *testing.T) {
	server := createTestServer(t, 0)

	t.Run("Vehicles", func(t *testing.T) {
		vehicles := []domain.Vehicle{
			{ID: "V001", Type: "truck", TankCapacity: 400, Status: domain.VehicleActive},
			{ID: "V002", Type: "van", TankCapacity: 80, Status: domain.VehicleInactive},
		}

		rr := doJSON(t, server, http.MethodPut, "/vehicles", vehicles)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = doJSON(t, server, http.MethodGet, "/vehicles", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Vehicles []domain.Vehicle `json:"vehicles"`
			Count    int              `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 2 {
			t.Errorf("count = %d", resp.Count)
		}
	})

	t.Run("Projects", func(t *testing.T) {
		projects := []domain.Project{
			{ID: "P001", Name: "Site North", GeofenceLat: 59.33, GeofenceLon: 18.07, GeofenceRadiusKm: 25, Active: true},
		}

		rr := doJSON(t, server, http.MethodPut, "/projects", projects)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = doJSON(t, server, http.MethodGet, "/projects", nil)
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("count = %d", resp.Count)
		}
	})

	t.Run("Workers", func(t *testing.T) {
		workers := []domain.Worker{
			{ID: "W001", Name: "Kim", ScheduleStart: "06:00", ScheduleEnd: "18:00", Active: true},
		}

		rr := doJSON(t, server, http.MethodPut, "/workers", workers)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = doJSON(t, server, http.MethodGet, "/workers", nil)
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("count = %d", resp.Count)
		}
	})

	t.Run("InvalidBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/vehicles", bytes.NewBufferString(`{"not":"an array"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestAnomalyEndpoints(t *testing.T) {
	server := createTestServer(t, 0)
	repo := server.Handler().repo
	ctx := context.Background()

	anomaly := &domain.Anomaly{
		ID:       "an-001",
		TenantID: "tenant-001",
		AnomalyResult: domain.AnomalyResult{
			TransactionID: "tx-001",
			VehicleID:     "V001",
			IsAnomalous:   true,
			Severity:      domain.SeverityHigh,
			RiskScore:     55,
			Reasons:       []string{"Fueled volume exceeds tank capacity"},
			RuleIDs:       []string{"tank_capacity"},
			DetectedAt:    time.Now().UTC().Truncate(time.Second),
		},
		Status: domain.ReviewPending,
	}
	if err := repo.SaveAnomaly(ctx, "tenant-001", anomaly); err != nil {
		t.Fatalf("SaveAnomaly failed: %v", err)
	}

	t.Run("List", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/anomalies?severity=High", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			Anomalies []domain.Anomaly `json:"anomalies"`
			Count     int              `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 || resp.Anomalies[0].ID != "an-001" {
			t.Errorf("unexpected listing: %+v", resp)
		}
	})

	t.Run("ListBadFilter", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/anomalies?reviewed=maybe", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("Get", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/anomalies/an-001", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var got domain.Anomaly
		json.Unmarshal(rr.Body.Bytes(), &got)
		if got.RiskScore != 55 || got.Status != domain.ReviewPending {
			t.Errorf("unexpected anomaly: %+v", got)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/anomalies/nope", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("Review", func(t *testing.T) {
		review := domain.AnomalyReview{
			ReviewedBy:  "analyst-1",
			ReviewNotes: "confirmed with the site manager",
			Status:      domain.ReviewConfirmed,
		}

		rr := doJSON(t, server, http.MethodPost, "/anomalies/an-001/review", review)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var got domain.Anomaly
		json.Unmarshal(rr.Body.Bytes(), &got)
		if !got.Reviewed || got.Status != domain.ReviewConfirmed || got.ReviewedBy != "analyst-1" {
			t.Errorf("review not applied: %+v", got)
		}
		// Detection fields stay untouched.
		if got.RiskScore != 55 || got.Severity != domain.SeverityHigh {
			t.Errorf("verdict must be immutable: %+v", got)
		}
	})

	t.Run("ReviewInvalidStatus", func(t *testing.T) {
		review := domain.AnomalyReview{ReviewedBy: "analyst-1", Status: "bogus"}

		rr := doJSON(t, server, http.MethodPost, "/anomalies/an-001/review", review)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ReviewMissingReviewer", func(t *testing.T) {
		review := domain.AnomalyReview{Status: domain.ReviewConfirmed}

		rr := doJSON(t, server, http.MethodPost, "/anomalies/an-001/review", review)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/stats", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var stats domain.StatsSummary
		json.Unmarshal(rr.Body.Bytes(), &stats)
		if stats.TotalAnomalies != 1 || stats.HighAnomalies != 1 {
			t.Errorf("unexpected stats: %+v", stats)
		}
	})
}

func TestProviderEndpoints(t *testing.T) {
	server := createTestServer(t, 0)

	t.Run("List", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/providers", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Providers []string `json:"providers"`
			Count     int      `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 || resp.Providers[0] != domain.ProviderOKQ8 {
			t.Errorf("unexpected providers: %+v", resp)
		}
	})

	t.Run("Sync", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/providers/okq8/sync", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var result struct {
			Provider string `json:"provider"`
			Fetched  int    `json:"fetched"`
			Created  int    `json:"created"`
		}
		json.Unmarshal(rr.Body.Bytes(), &result)
		if result.Provider != domain.ProviderOKQ8 || result.Fetched == 0 {
			t.Errorf("unexpected sync result: %+v", result)
		}
	})

	t.Run("SyncUnknown", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/providers/texaco/sync", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("SyncBadRange", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/providers/okq8/sync?from=yesterday", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer(t, 0)

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestRateLimit(t *testing.T) {
	server := createTestServer(t, 2)

	for i := 0; i < 2; i++ {
		rr := doJSON(t, server, http.MethodGet, "/vehicles", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i+1, rr.Code)
		}
	}

	rr := doJSON(t, server, http.MethodGet, "/vehicles", nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429 after limit, got %d", rr.Code)
	}
}

func TestMiddleware(t *testing.T) {
	t.Run("TenantMiddlewareExtractsID", func(t *testing.T) {
		var capturedTenantID string

		handler := TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedTenantID = GetTenantID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Tenant-ID", "my-tenant-123")

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedTenantID != "my-tenant-123" {
			t.Errorf("expected tenant ID 'my-tenant-123', got '%s'", capturedTenantID)
		}
	})

	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})
}
