package appointment

import (
	"time"

	"github.com/google/uuid"
)

const DefaultConflictWindow = 30 * time.Minute

// ConflictDetector decides whether a doctor can take another active
// appointment at a given instant.
type ConflictDetector struct {
	store  *Store
	window time.Duration
}

func NewConflictDetector(store *Store, window time.Duration) *ConflictDetector {
	if window <= 0 {
		window = DefaultConflictWindow
	}
	return &ConflictDetector{store: store, window: window}
}

func (d *ConflictDetector) Window() time.Duration {
	return d.window
}

// HasConflict scans every active appointment of doctorID, skipping excludeID,
// and reports whether any sits strictly closer than the window to candidate.
// A gap of exactly the window is allowed. Pass 0 as excludeID for new
// bookings.
func (d *ConflictDetector) HasConflict(doctorID uuid.UUID, candidate time.Time, excludeID int64) bool {
	_, found := d.FirstConflict(doctorID, candidate, excludeID)
	return found
}

// FirstConflict is HasConflict that also returns the blocking appointment.
func (d *ConflictDetector) FirstConflict(doctorID uuid.UUID, candidate time.Time, excludeID int64) (Appointment, bool) {
	for _, a := range d.store.items {
		if a.ID == excludeID || a.DoctorID != doctorID || !a.IsActive() {
			continue
		}
		if absDuration(candidate.Sub(a.DateTime)) < d.window {
			return a, true
		}
	}
	return Appointment{}, false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
