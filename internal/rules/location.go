package rules

import (
	"fmt"

	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/geo"
)

// checkGeofence fires when the station lies outside the geofence of the
// vehicle's assigned project. Vehicles without a resolvable project
// assignment are never flagged.
func checkGeofence(tx *domain.Transaction, rc *Context) (string, bool) {
	vehicle, ok := rc.Index.Vehicle(tx.VehicleID)
	if !ok {
		return "", false
	}
	project, ok := rc.Index.ProjectForVehicle(vehicle)
	if !ok {
		return "", false
	}

	distance := geo.Distance(
		geo.Point{Lat: tx.StationLat, Lon: tx.StationLon},
		geo.Point{Lat: project.GeofenceLat, Lon: project.GeofenceLon},
	)

	if distance <= project.GeofenceRadiusKm {
		return "", false
	}

	return fmt.Sprintf("Station %s is %.1f km from project %s geofence center (radius %.1f km)",
		tx.StationID, distance, project.Name, project.GeofenceRadiusKm), true
}

// checkImpossibleTravel fires when the implied straight-line speed from
// the vehicle's immediately preceding transaction exceeds the plausible
// maximum. The first transaction of a vehicle's history never fires.
// Two purchases at the same instant at different stations imply
// infinite speed and always fire.
func checkImpossibleTravel(tx *domain.Transaction, rc *Context) (string, bool) {
	if rc.Pos <= 0 || rc.Pos >= len(rc.History) {
		return "", false
	}
	prev := rc.History[rc.Pos-1]

	distance := geo.Distance(
		geo.Point{Lat: prev.StationLat, Lon: prev.StationLon},
		geo.Point{Lat: tx.StationLat, Lon: tx.StationLon},
	)

	elapsed := tx.Timestamp.Sub(prev.Timestamp)
	if elapsed <= 0 {
		if distance > 0 {
			return fmt.Sprintf("Simultaneous fuelings %.1f km apart (stations %s and %s)",
				distance, prev.StationID, tx.StationID), true
		}
		return "", false
	}

	speed := distance / elapsed.Hours()
	if speed <= rc.Config.MaxTravelSpeedKmh {
		return "", false
	}

	return fmt.Sprintf("Impossible travel: %.1f km in %.1f h implies %.0f km/h (limit %.0f km/h)",
		distance, elapsed.Hours(), speed, rc.Config.MaxTravelSpeedKmh), true
}
