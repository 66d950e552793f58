package domain

import (
	"time"
)

// VehicleStatus is the operational status of a fleet vehicle.
type VehicleStatus string

const (
	VehicleActive   VehicleStatus = "active"
	VehicleInactive VehicleStatus = "inactive"
)

// Vehicle is a fleet vehicle that fuel cards are issued against.
type Vehicle struct {
	ID           string        `json:"vehicle_id"`
	Type         string        `json:"type"`
	TankCapacity float64       `json:"tank_capacity_liters"`
	RegNumber    string        `json:"reg_number"`
	ProjectID    string        `json:"assigned_project_id,omitempty"`
	Status       VehicleStatus `json:"status"`
}

// Project is a construction or transport project with a circular
// geofence defining where its vehicles are expected to operate.
type Project struct {
	ID               string     `json:"project_id"`
	Name             string     `json:"name"`
	GeofenceLat      float64    `json:"geofence_lat"`
	GeofenceLon      float64    `json:"geofence_lon"`
	GeofenceRadiusKm float64    `json:"geofence_radius_km"`
	Active           bool       `json:"active"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
}

// ActiveOn reports whether the project is active and its date range
// (when set) covers the given instant.
func (p *Project) ActiveOn(t time.Time) bool {
	if !p.Active {
		return false
	}
	if p.StartDate != nil && t.Before(*p.StartDate) {
		return false
	}
	if p.EndDate != nil && t.After(*p.EndDate) {
		return false
	}
	return true
}

// Worker is a driver with a wall-clock work schedule. A worker's ID may
// appear as a transaction's driver ID.
type Worker struct {
	ID   string `json:"worker_id"`
	Name string `json:"name,omitempty"`

	// ScheduleStart and ScheduleEnd are wall-clock times in HH:MM
	// format, no date. End before start means the shift wraps past
	// midnight.
	ScheduleStart string `json:"schedule_start"`
	ScheduleEnd   string `json:"schedule_end"`

	ProjectIDs []string `json:"assigned_project_ids,omitempty"`
	Active     bool     `json:"active"`
}
