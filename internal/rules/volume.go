package rules

import (
	"fmt"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

// checkTankCapacity fires when the purchased volume exceeds the
// vehicle's tank capacity.
func checkTankCapacity(tx *domain.Transaction, rc *Context) (string, bool) {
	vehicle, ok := rc.Index.Vehicle(tx.VehicleID)
	if !ok {
		return "", false
	}

	if tx.Liters <= vehicle.TankCapacity {
		return "", false
	}

	return fmt.Sprintf("Volume %.1f L exceeds tank capacity %.1f L of vehicle %s",
		tx.Liters, vehicle.TankCapacity, vehicle.ID), true
}

// checkInactiveVehicle fires when the vehicle resolves and is marked
// inactive. Fuel purchases against parked-up vehicles are a classic
// card-sharing pattern.
func checkInactiveVehicle(tx *domain.Transaction, rc *Context) (string, bool) {
	vehicle, ok := rc.Index.Vehicle(tx.VehicleID)
	if !ok {
		return "", false
	}

	if vehicle.Status != domain.VehicleInactive {
		return "", false
	}

	return fmt.Sprintf("Vehicle %s is marked inactive", vehicle.ID), true
}

// checkDoubleDipping fires when an earlier transaction for the same
// vehicle falls within the double-dip window. Only prior history is
// considered, so the first of a close pair never fires.
func checkDoubleDipping(tx *domain.Transaction, rc *Context) (string, bool) {
	window := time.Duration(rc.Config.DoubleDipWindowMinutes) * time.Minute

	for i := rc.Pos - 1; i >= 0; i-- {
		gap := tx.Timestamp.Sub(rc.History[i].Timestamp)
		if gap > window {
			// History is sorted; older entries are further away.
			break
		}
		return fmt.Sprintf("Previous fueling only %.0f minutes earlier (double-dip window %d minutes)",
			gap.Minutes(), rc.Config.DoubleDipWindowMinutes), true
	}

	return "", false
}

// checkExcessFrequency fires when the number of fuelings for the
// vehicle within the rolling window ending at this transaction exceeds
// the configured threshold. The count includes the transaction itself.
func checkExcessFrequency(tx *domain.Transaction, rc *Context) (string, bool) {
	window := time.Duration(rc.Config.FrequencyWindowHours) * time.Hour
	cutoff := tx.Timestamp.Add(-window)

	count := 0
	for i := range rc.History {
		ts := rc.History[i].Timestamp
		if ts.Before(cutoff) || ts.After(tx.Timestamp) {
			continue
		}
		count++
	}

	if count <= rc.Config.FrequencyThreshold {
		return "", false
	}

	return fmt.Sprintf("%d fuelings within %d hours (limit %d)",
		count, rc.Config.FrequencyWindowHours, rc.Config.FrequencyThreshold), true
}
