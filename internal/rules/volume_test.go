package rules

import (
	"testing"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/refdata"
)

func fleetIndex() *refdata.Index {
	return refdata.New(
		[]domain.Vehicle{
			{ID: "V001", TankCapacity: 400, Status: domain.VehicleActive},
			{ID: "V002", TankCapacity: 80, Status: domain.VehicleInactive},
		},
		nil, nil,
	)
}

func TestCheckTankCapacity(t *testing.T) {
	idx := fleetIndex()

	tests := []struct {
		name    string
		vehicle string
		liters  float64
		fires   bool
	}{
		{"within capacity", "V001", 350, false},
		{"exactly at capacity", "V001", 400, false},
		{"over capacity", "V001", 450, true},
		{"unknown vehicle", "V999", 9000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := domain.Transaction{ID: "T1", VehicleID: tt.vehicle, Liters: tt.liters, Timestamp: tuesday}
			rc := contextWith(idx, []domain.Transaction{tx}, 0)

			reason, fired := checkTankCapacity(&tx, rc)
			if fired != tt.fires {
				t.Errorf("fired = %v, want %v (reason %q)", fired, tt.fires, reason)
			}
		})
	}
}

func TestCheckInactiveVehicle(t *testing.T) {
	idx := fleetIndex()

	tests := []struct {
		name    string
		vehicle string
		fires   bool
	}{
		{"active vehicle", "V001", false},
		{"inactive vehicle", "V002", true},
		{"unknown vehicle", "V999", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := domain.Transaction{ID: "T1", VehicleID: tt.vehicle, Liters: 40, Timestamp: tuesday}
			rc := contextWith(idx, []domain.Transaction{tx}, 0)

			_, fired := checkInactiveVehicle(&tx, rc)
			if fired != tt.fires {
				t.Errorf("fired = %v, want %v", fired, tt.fires)
			}
		})
	}
}

func TestCheckDoubleDipping(t *testing.T) {
	idx := fleetIndex()
	mk := func(id string, ts time.Time) domain.Transaction {
		return domain.Transaction{ID: id, VehicleID: "V001", Liters: 40, Timestamp: ts}
	}

	t.Run("ten minute gap fires on second only", func(t *testing.T) {
		history := []domain.Transaction{
			mk("T1", tuesday),
			mk("T2", tuesday.Add(10*time.Minute)),
		}

		if _, fired := checkDoubleDipping(&history[0], contextWith(idx, history, 0)); fired {
			t.Error("first of the pair must not fire")
		}
		if _, fired := checkDoubleDipping(&history[1], contextWith(idx, history, 1)); !fired {
			t.Error("second of the pair must fire")
		}
	})

	t.Run("gap at exactly the window fires", func(t *testing.T) {
		history := []domain.Transaction{
			mk("T1", tuesday),
			mk("T2", tuesday.Add(30*time.Minute)),
		}

		if _, fired := checkDoubleDipping(&history[1], contextWith(idx, history, 1)); !fired {
			t.Error("gap equal to the window must fire")
		}
	})

	t.Run("gap beyond the window does not fire", func(t *testing.T) {
		history := []domain.Transaction{
			mk("T1", tuesday),
			mk("T2", tuesday.Add(31*time.Minute)),
		}

		if reason, fired := checkDoubleDipping(&history[1], contextWith(idx, history, 1)); fired {
			t.Errorf("expected no firing, got %q", reason)
		}
	})
}

func TestCheckExcessFrequency(t *testing.T) {
	idx := fleetIndex()
	mk := func(id string, ts time.Time) domain.Transaction {
		return domain.Transaction{ID: id, VehicleID: "V001", Liters: 40, Timestamp: ts}
	}

	t.Run("fourth fueling in a day fires", func(t *testing.T) {
		history := []domain.Transaction{
			mk("T1", tuesday),
			mk("T2", tuesday.Add(4*time.Hour)),
			mk("T3", tuesday.Add(8*time.Hour)),
			mk("T4", tuesday.Add(12*time.Hour)),
		}

		if _, fired := checkExcessFrequency(&history[3], contextWith(idx, history, 3)); !fired {
			t.Error("expected fourth fueling within 24h to fire")
		}
		// At the third fueling the window holds only three.
		if _, fired := checkExcessFrequency(&history[2], contextWith(idx, history, 2)); fired {
			t.Error("three fuelings within the window must not fire")
		}
	})

	t.Run("old fuelings age out of the window", func(t *testing.T) {
		history := []domain.Transaction{
			mk("T1", tuesday.Add(-30*time.Hour)),
			mk("T2", tuesday),
			mk("T3", tuesday.Add(4*time.Hour)),
			mk("T4", tuesday.Add(8*time.Hour)),
		}

		if _, fired := checkExcessFrequency(&history[3], contextWith(idx, history, 3)); fired {
			t.Error("aged-out fueling must not count toward the window")
		}
	})
}
