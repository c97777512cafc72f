package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestConflictDetector(t *testing.T) {
	doctor := uuid.New()
	other := uuid.New()

	store := NewStore()
	booked := store.Insert(Appointment{DoctorID: doctor, DateTime: at(9, 0), Status: StatusConfirmed})
	store.Insert(Appointment{DoctorID: doctor, DateTime: at(12, 0), Status: StatusCompleted})
	store.Insert(Appointment{DoctorID: other, DateTime: at(15, 0), Status: StatusScheduled})

	d := NewConflictDetector(store, 30*time.Minute)

	tests := []struct {
		name      string
		doctor    uuid.UUID
		candidate time.Time
		exclude   int64
		want      bool
	}{
		{name: "inside window", doctor: doctor, candidate: at(9, 10), want: true},
		{name: "before inside window", doctor: doctor, candidate: at(8, 31), want: true},
		{name: "at window edge", doctor: doctor, candidate: at(9, 30), want: false},
		{name: "before window edge", doctor: doctor, candidate: at(8, 30), want: false},
		{name: "self excluded", doctor: doctor, candidate: at(9, 10), exclude: booked, want: false},
		{name: "inactive ignored", doctor: doctor, candidate: at(12, 0), want: false},
		{name: "other doctor", doctor: doctor, candidate: at(15, 0), want: false},
		{name: "other doctor own slot", doctor: other, candidate: at(15, 15), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.HasConflict(tt.doctor, tt.candidate, tt.exclude))
		})
	}

	blocking, found := d.FirstConflict(doctor, at(9, 20), 0)
	assert.True(t, found)
	assert.Equal(t, booked, blocking.ID)
}

func TestConflictDetector_DefaultWindow(t *testing.T) {
	d := NewConflictDetector(NewStore(), 0)
	assert.Equal(t, DefaultConflictWindow, d.Window())

	d = NewConflictDetector(NewStore(), 45*time.Minute)
	assert.Equal(t, 45*time.Minute, d.Window())
}
