package rules

import (
	"fmt"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

// checkOutOfHours fires when the transaction's driver resolves to a
// worker and the purchase wall-clock time falls outside the worker's
// schedule. The schedule is inclusive at both ends and wraps past
// midnight when end < start.
func checkOutOfHours(tx *domain.Transaction, rc *Context) (string, bool) {
	if tx.DriverID == "" {
		return "", false
	}
	worker, ok := rc.Index.Worker(tx.DriverID)
	if !ok {
		return "", false
	}

	start, err := parseClock(worker.ScheduleStart)
	if err != nil {
		return "", false
	}
	end, err := parseClock(worker.ScheduleEnd)
	if err != nil {
		return "", false
	}

	minute := tx.Timestamp.Hour()*60 + tx.Timestamp.Minute()

	var inside bool
	if start <= end {
		inside = minute >= start && minute <= end
	} else {
		// Overnight shift, e.g. 22:00-06:00.
		inside = minute >= start || minute <= end
	}

	if inside {
		return "", false
	}

	return fmt.Sprintf("Fueling at %s outside worker schedule (%s-%s)",
		tx.Timestamp.Format("15:04"), worker.ScheduleStart, worker.ScheduleEnd), true
}

// checkWeekendFueling fires when the purchase date is a weekend day or
// a configured holiday while the vehicle's assigned project is not
// active for that date.
func checkWeekendFueling(tx *domain.Transaction, rc *Context) (string, bool) {
	vehicle, ok := rc.Index.Vehicle(tx.VehicleID)
	if !ok {
		return "", false
	}
	project, ok := rc.Index.ProjectForVehicle(vehicle)
	if !ok {
		return "", false
	}

	weekday := tx.Timestamp.Weekday()
	weekend := weekday == time.Saturday || weekday == time.Sunday
	holiday := isHoliday(rc.Config, tx.Timestamp)

	if !weekend && !holiday {
		return "", false
	}
	if project.ActiveOn(tx.Timestamp) {
		return "", false
	}

	day := weekday.String()
	if holiday && !weekend {
		day = "holiday " + tx.Timestamp.Format("2006-01-02")
	}

	return fmt.Sprintf("Fueling on %s outside active period of project %s", day, project.Name), true
}

// parseClock parses an HH:MM wall-clock string into minutes since
// midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func isHoliday(cfg domain.DetectionConfig, t time.Time) bool {
	if len(cfg.Holidays) == 0 {
		return false
	}
	date := t.Format("2006-01-02")
	for _, h := range cfg.Holidays {
		if h == date {
			return true
		}
	}
	return false
}
