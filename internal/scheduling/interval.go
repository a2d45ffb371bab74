package scheduling

import (
	"time"

	"github.com/samber/lo"

	"telemed-server/internal/models"
)

// Interval is a half-open time range [Start, End)
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval returns [start, start+minutes)
func NewInterval(start time.Time, minutes int) Interval {
	return Interval{Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}
}

// AppointmentInterval returns the booked range of a
func AppointmentInterval(a models.Appointment) Interval {
	return NewInterval(a.ScheduledTime, a.Duration)
}

// Overlaps reports whether the two ranges share any instant. Touching
// ranges (one ends exactly when the other starts) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// FirstConflict returns the first SCHEDULED appointment whose range overlaps
// candidate, skipping the appointment with id exclude.
func FirstConflict(candidate Interval, existing []models.Appointment, exclude string) (models.Appointment, bool) {
	return lo.Find(existing, func(a models.Appointment) bool {
		return a.ID != exclude &&
			a.Status == models.StatusScheduled &&
			AppointmentInterval(a).Overlaps(candidate)
	})
}
