package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/config"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []EventLog
}

func (p *recordingPublisher) Publish(ev EventLog) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.EventType)
	}
	return out
}

type fixture struct {
	svc    *Service
	dir    *MemoryDirectory
	clock  *clock.MockClock
	events *recordingPublisher

	drA, drB Doctor
	p1, p2   Patient
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := config.NewTestConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	spec := "General Practice"
	dir := NewMemoryDirectory()
	f := &fixture{
		dir:    dir,
		clock:  clock.NewMockClock(time.Date(2024, 2, 28, 8, 0, 0, 0, time.UTC)),
		events: &recordingPublisher{},
		drA:    dir.AddDoctor(Doctor{Name: "Dr. A", Specialization: &spec}),
		drB:    dir.AddDoctor(Doctor{Name: "Dr. B"}),
		p1:     dir.AddPatient(Patient{Name: "P1"}),
		p2:     dir.AddPatient(Patient{Name: "P2"}),
	}
	f.svc = NewService(dir, f.events, cfg, WithClock(f.clock))
	return f
}

// at returns hh:mm on 2024-03-01 UTC.
func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 1, hour, minute, 0, 0, time.UTC)
}

func (f *fixture) schedule(t *testing.T, p Patient, d Doctor, when time.Time, reason string) Appointment {
	t.Helper()
	a, err := f.svc.Schedule(context.Background(), ScheduleInput{
		PatientID: p.ID,
		DoctorID:  d.ID,
		DateTime:  when,
		Reason:    reason,
	})
	require.NoError(t, err)
	return a
}

func ptr[T any](v T) *T {
	return &v
}
