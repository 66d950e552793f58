// Package refdata builds per-batch lookup indexes over the reference
// collections (vehicles, projects, workers) supplied to the detection
// engine.
package refdata

import (
	"github.com/fuelguard/fuelguard/internal/domain"
)

// Index provides fast lookups into a single evaluation batch's
// reference snapshot. It is built once per batch and only read
// thereafter; lookups for absent ids report not-found rather than
// failing, so rules depending on missing master data can abstain.
type Index struct {
	vehicles map[string]*domain.Vehicle
	projects map[string]*domain.Project
	workers  map[string]*domain.Worker
}

// New builds an index from the supplied reference collections. Later
// duplicates of an id replace earlier ones.
func New(vehicles []domain.Vehicle, projects []domain.Project, workers []domain.Worker) *Index {
	idx := &Index{
		vehicles: make(map[string]*domain.Vehicle, len(vehicles)),
		projects: make(map[string]*domain.Project, len(projects)),
		workers:  make(map[string]*domain.Worker, len(workers)),
	}

	for i := range vehicles {
		idx.vehicles[vehicles[i].ID] = &vehicles[i]
	}
	for i := range projects {
		idx.projects[projects[i].ID] = &projects[i]
	}
	for i := range workers {
		idx.workers[workers[i].ID] = &workers[i]
	}

	return idx
}

// FromSnapshot builds an index from a cached reference snapshot.
func FromSnapshot(snap *domain.RefSnapshot) *Index {
	if snap == nil {
		return New(nil, nil, nil)
	}
	return New(snap.Vehicles, snap.Projects, snap.Workers)
}

// Vehicle looks up a vehicle by id.
func (idx *Index) Vehicle(id string) (*domain.Vehicle, bool) {
	v, ok := idx.vehicles[id]
	return v, ok
}

// Project looks up a project by id.
func (idx *Index) Project(id string) (*domain.Project, bool) {
	p, ok := idx.projects[id]
	return p, ok
}

// Worker looks up a worker by a transaction's driver id. A worker whose
// id matches the driver id is that transaction's driver.
func (idx *Index) Worker(driverID string) (*domain.Worker, bool) {
	w, ok := idx.workers[driverID]
	return w, ok
}

// ProjectForVehicle resolves the project a vehicle is assigned to.
// Reports false when the vehicle has no assignment or the assigned
// project is not in the snapshot.
func (idx *Index) ProjectForVehicle(v *domain.Vehicle) (*domain.Project, bool) {
	if v == nil || v.ProjectID == "" {
		return nil, false
	}
	return idx.Project(v.ProjectID)
}
