// Seed tool for local development. Populates the repository with a
// small demo fleet and a week of transactions, then runs detection
// over the batch and stores the verdicts.
//
// Usage:
//
//	go run ./cmd/seed -db ./fuelguard.db -tenant default
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/fuelguard/fuelguard/internal/detect"
	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/repository"
)

func main() {
	dbPath := flag.String("db", "./fuelguard.db", "SQLite database path")
	tenantID := flag.String("tenant", "default", "Tenant ID to seed")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: *dbPath,
	})
	if err != nil {
		slog.Error("failed to open repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	ctx := context.Background()

	projects := demoProjects()
	workers := demoWorkers()
	vehicles := demoVehicles()
	transactions := demoTransactions(lastMonday())

	for i := range projects {
		if err := repo.UpsertProject(ctx, *tenantID, &projects[i]); err != nil {
			fail("seed project", err)
		}
	}
	for i := range workers {
		if err := repo.UpsertWorker(ctx, *tenantID, &workers[i]); err != nil {
			fail("seed worker", err)
		}
	}
	for i := range vehicles {
		if err := repo.UpsertVehicle(ctx, *tenantID, &vehicles[i]); err != nil {
			fail("seed vehicle", err)
		}
	}
	for i := range transactions {
		transactions[i].TenantID = *tenantID
		if err := repo.SaveTransaction(ctx, *tenantID, &transactions[i]); err != nil {
			fail("seed transaction", err)
		}
	}

	slog.Info("reference data seeded",
		"projects", len(projects),
		"workers", len(workers),
		"vehicles", len(vehicles),
		"transactions", len(transactions),
	)

	// Score the seeded batch with the stock configuration and persist
	// the verdicts so the review endpoints have data to show.
	detector := detect.New(domain.DefaultDetectionConfig(), logger)
	resp, err := detector.DetectBatch(ctx, &domain.DetectRequest{
		Transactions: transactions,
		Vehicles:     vehicles,
		Projects:     projects,
		Workers:      workers,
	})
	if err != nil {
		fail("detect seeded batch", err)
	}

	anomalous := 0
	for i := range resp.Results {
		result := resp.Results[i]
		anomaly := &domain.Anomaly{
			ID:            uuid.New().String(),
			TenantID:      *tenantID,
			AnomalyResult: result,
			Status:        domain.ReviewPending,
		}
		if err := repo.SaveAnomaly(ctx, *tenantID, anomaly); err != nil {
			fail("save anomaly", err)
		}
		if result.IsAnomalous {
			anomalous++
			fmt.Printf("  %-6s score=%-3d %-8s %v\n",
				result.TransactionID, result.RiskScore, result.Severity, result.Reasons)
		}
	}

	slog.Info("seed complete",
		"tenant_id", *tenantID,
		"scored", len(resp.Results),
		"anomalous", anomalous,
	)
}

func fail(what string, err error) {
	slog.Error("seeding failed", "step", what, "error", err)
	os.Exit(1)
}

// lastMonday anchors the demo week so the weekend scenarios always
// land on a Saturday and Sunday.
func lastMonday() time.Time {
	now := time.Now().UTC()
	offset := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -offset-7)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

func demoProjects() []domain.Project {
	return []domain.Project{
		{
			ID:               "P001",
			Name:             "Stockholm City Center Construction",
			GeofenceLat:      59.3293,
			GeofenceLon:      18.0686,
			GeofenceRadiusKm: 5.0,
			Active:           true,
		},
		{
			ID:               "P002",
			Name:             "Gothenburg Harbor Expansion",
			GeofenceLat:      57.7089,
			GeofenceLon:      11.9746,
			GeofenceRadiusKm: 10.0,
			Active:           true,
		},
	}
}

func demoWorkers() []domain.Worker {
	return []domain.Worker{
		{
			ID:            "W001",
			Name:          "Erik Andersson",
			ScheduleStart: "07:00",
			ScheduleEnd:   "16:00",
			ProjectIDs:    []string{"P001"},
			Active:        true,
		},
		{
			ID:            "W002",
			Name:          "Anna Johansson",
			ScheduleStart: "06:00",
			ScheduleEnd:   "15:00",
			ProjectIDs:    []string{"P002"},
			Active:        true,
		},
	}
}

func demoVehicles() []domain.Vehicle {
	return []domain.Vehicle{
		{
			ID:           "V001",
			Type:         "Excavator",
			TankCapacity: 200,
			RegNumber:    "ABC-123",
			ProjectID:    "P001",
			Status:       domain.VehicleActive,
		},
		{
			ID:           "V002",
			Type:         "Dump Truck",
			TankCapacity: 300,
			RegNumber:    "XYZ-789",
			ProjectID:    "P001",
			Status:       domain.VehicleActive,
		},
		{
			ID:           "V003",
			Type:         "Crane",
			TankCapacity: 150,
			RegNumber:    "DEF-456",
			ProjectID:    "P002",
			Status:       domain.VehicleActive,
		},
	}
}

// demoTransactions is a week of fuelings: two clean, four staged to
// trip different rules.
func demoTransactions(monday time.Time) []domain.Transaction {
	return []domain.Transaction{
		{
			ID: "TX001", Provider: domain.ProviderOKQ8, CardID: "CARD001",
			VehicleID: "V001", DriverID: "W001",
			Timestamp: monday.Add(10 * time.Hour),
			Liters:    50, PricePerLiter: 18.5, TotalAmount: 925,
			FuelType: "diesel", StationID: "S001", StationLat: 59.33, StationLon: 18.07,
		},
		{
			ID: "TX002", Provider: domain.ProviderPreem, CardID: "CARD002",
			VehicleID: "V002", DriverID: "W001",
			Timestamp: monday.Add(24*time.Hour + 11*time.Hour),
			Liters:    75, PricePerLiter: 18.2, TotalAmount: 1365,
			FuelType: "diesel", StationID: "S002", StationLat: 59.32, StationLon: 18.08,
		},
		// Out of hours: 22:00 against a 07:00-16:00 schedule.
		{
			ID: "TX003", Provider: domain.ProviderShell, CardID: "CARD001",
			VehicleID: "V001", DriverID: "W001",
			Timestamp: monday.Add(2*24*time.Hour + 22*time.Hour),
			Liters:    45, PricePerLiter: 19.0, TotalAmount: 855,
			FuelType: "diesel", StationID: "S003", StationLat: 59.31, StationLon: 18.06,
		},
		// Tank capacity: 180 L into a 150 L crane.
		{
			ID: "TX004", Provider: domain.ProviderCircleK, CardID: "CARD003",
			VehicleID: "V003", DriverID: "W002",
			Timestamp: monday.Add(3*24*time.Hour + 13*time.Hour),
			Liters:    180, PricePerLiter: 18.8, TotalAmount: 3384,
			FuelType: "diesel", StationID: "S004", StationLat: 57.71, StationLon: 11.98,
		},
		// Weekend fueling on Saturday afternoon.
		{
			ID: "TX005", Provider: domain.ProviderOKQ8, CardID: "CARD002",
			VehicleID: "V002", DriverID: "W001",
			Timestamp: monday.Add(5*24*time.Hour + 14*time.Hour),
			Liters:    60, PricePerLiter: 20.5, TotalAmount: 1230,
			FuelType: "diesel", StationID: "S001", StationLat: 59.33, StationLon: 18.07,
		},
		// Multiple violations: 03:00 Sunday, over capacity, outlier
		// price, far outside the project geofence.
		{
			ID: "TX006", Provider: domain.ProviderShell, CardID: "CARD001",
			VehicleID: "V001", DriverID: "W001",
			Timestamp: monday.Add(6*24*time.Hour + 3*time.Hour),
			Liters:    250, PricePerLiter: 25.0, TotalAmount: 6250,
			FuelType: "diesel", StationID: "S999", StationLat: 60.5, StationLon: 19.5,
		},
	}
}
