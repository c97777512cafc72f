package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/config"
)

func TestService_MorningScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, StatusScheduled, first.Status)
	assert.Equal(t, []int64{1}, f.svc.Queue())

	_, err := f.svc.Schedule(ctx, ScheduleInput{PatientID: f.p2.ID, DoctorID: f.drA.ID, DateTime: at(9, 20), Reason: "follow-up"})
	require.ErrorIs(t, err, ErrDoctorConflict)

	second := f.schedule(t, f.p2, f.drA, at(9, 30), "follow-up")
	assert.Equal(t, int64(2), second.ID)

	started, err := f.svc.ProcessNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), started.ID)
	assert.Equal(t, StatusInProgress, started.Status)
	assert.Equal(t, []int64{2}, f.svc.Queue())

	rec, err := f.svc.UndoLast(ctx)
	require.NoError(t, err)
	assert.Equal(t, UndoProcess, rec.Kind)

	restored, err := f.svc.ByID(1)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, restored.Status)
	assert.ElementsMatch(t, []int64{1, 2}, f.svc.Queue())
	assert.Equal(t, []int64{1, 2}, f.svc.Queue(), "undone process returns to the head")
}

func TestService_Schedule_ConflictWindowBoundary(t *testing.T) {
	tests := []struct {
		name     string
		offset   time.Duration
		doctor   func(f *fixture) Doctor
		conflict bool
	}{
		{name: "exactly the window after", offset: 30 * time.Minute, conflict: false},
		{name: "exactly the window before", offset: -30 * time.Minute, conflict: false},
		{name: "one minute short after", offset: 29 * time.Minute, conflict: true},
		{name: "one minute short before", offset: -29 * time.Minute, conflict: true},
		{name: "same instant", offset: 0, conflict: true},
		{name: "same instant other doctor", offset: 0, doctor: func(f *fixture) Doctor { return f.drB }, conflict: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.schedule(t, f.p1, f.drA, at(10, 0), "checkup")

			doctor := f.drA
			if tt.doctor != nil {
				doctor = tt.doctor(f)
			}
			_, err := f.svc.Schedule(context.Background(), ScheduleInput{
				PatientID: f.p2.ID,
				DoctorID:  doctor.ID,
				DateTime:  at(10, 0).Add(tt.offset),
				Reason:    "follow-up",
			})
			if tt.conflict {
				require.ErrorIs(t, err, ErrDoctorConflict)
				assert.True(t, IsConflict(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestService_Schedule_InactiveAppointmentsDoNotBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	_, err := f.svc.Cancel(ctx, a.ID)
	require.NoError(t, err)

	b := f.schedule(t, f.p2, f.drA, at(9, 0), "checkup")
	_, err = f.svc.ProcessNext(ctx)
	require.NoError(t, err)

	// b is in progress now and no longer holds the slot either
	c := f.schedule(t, f.p1, f.drA, at(9, 10), "checkup")
	assert.NotEqual(t, b.ID, c.ID)
}

func TestService_Schedule_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		in      ScheduleInput
		wantErr error
	}{
		{
			name:    "missing patient",
			in:      ScheduleInput{DoctorID: f.drA.ID, DateTime: at(9, 0), Reason: "checkup"},
			wantErr: ErrInvalidAppointment,
		},
		{
			name:    "missing doctor",
			in:      ScheduleInput{PatientID: f.p1.ID, DateTime: at(9, 0), Reason: "checkup"},
			wantErr: ErrInvalidAppointment,
		},
		{
			name:    "missing time",
			in:      ScheduleInput{PatientID: f.p1.ID, DoctorID: f.drA.ID, Reason: "checkup"},
			wantErr: ErrInvalidAppointment,
		},
		{
			name:    "blank reason",
			in:      ScheduleInput{PatientID: f.p1.ID, DoctorID: f.drA.ID, DateTime: at(9, 0), Reason: "   "},
			wantErr: ErrInvalidAppointment,
		},
		{
			name:    "unknown patient",
			in:      ScheduleInput{PatientID: uuid.New(), DoctorID: f.drA.ID, DateTime: at(9, 0), Reason: "checkup"},
			wantErr: ErrPatientNotFound,
		},
		{
			name:    "unknown doctor",
			in:      ScheduleInput{PatientID: f.p1.ID, DoctorID: uuid.New(), DateTime: at(9, 0), Reason: "checkup"},
			wantErr: ErrDoctorNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Schedule(context.Background(), tt.in)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Empty(t, f.svc.All())
	assert.Empty(t, f.svc.Queue())
	assert.Zero(t, f.svc.UndoDepth())
	assert.Zero(t, f.svc.Revision())
}

func TestService_Schedule_FillsDirectoryFields(t *testing.T) {
	f := newFixture(t)

	a := f.schedule(t, f.p1, f.drA, at(9, 0), "  checkup ")

	assert.Equal(t, "P1", a.PatientName)
	assert.Equal(t, "Dr. A", a.DoctorName)
	assert.Equal(t, "General Practice", a.DoctorSpecialization)
	assert.Equal(t, "checkup", a.Reason)
	assert.Equal(t, f.clock.Now(), a.CreatedAt)
}

func TestService_Schedule_QueuedExactlyOnce(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		f.schedule(t, f.p1, f.drA, at(9+i, 0), "checkup")
	}

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, f.svc.Queue())
	for _, a := range f.svc.All() {
		assert.Equal(t, StatusScheduled, a.Status)
	}
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*Patient)
	return p, args.Error(1)
}

func (m *mockDirectory) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*Doctor)
	return d, args.Error(1)
}

func TestService_Schedule_DirectoryFailure(t *testing.T) {
	dir := new(mockDirectory)
	patient := &Patient{ID: uuid.New(), Name: "P1"}
	doctorID := uuid.New()
	down := errors.New("connection refused")

	dir.On("GetPatientByID", mock.Anything, patient.ID).Return(patient, nil)
	dir.On("GetDoctorByID", mock.Anything, doctorID).Return(nil, down)

	svc := NewService(dir, nil, config.NewTestConfig())
	_, err := svc.Schedule(context.Background(), ScheduleInput{
		PatientID: patient.ID,
		DoctorID:  doctorID,
		DateTime:  at(9, 0),
		Reason:    "checkup",
	})

	require.ErrorIs(t, err, down)
	assert.False(t, IsNotFound(err))
	assert.Empty(t, svc.All())
	dir.AssertExpectations(t)
}

func TestService_ConcurrentScheduleNeverDoubleBooks(t *testing.T) {
	f := newFixture(t)

	const callers = 64
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Schedule(context.Background(), ScheduleInput{
				PatientID: f.p1.ID,
				DoctorID:  f.drA.ID,
				DateTime:  at(9, 0).Add(time.Duration(i%20) * time.Minute),
				Reason:    "checkup",
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, ErrDoctorConflict) {
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, conflicts)
	assertSpacing(t, f.svc)
}

// assertSpacing checks that no doctor holds two active appointments closer
// than the conflict window.
func assertSpacing(t *testing.T, svc *Service) {
	t.Helper()
	active := make(map[uuid.UUID][]Appointment)
	for _, a := range svc.All() {
		if a.IsActive() {
			active[a.DoctorID] = append(active[a.DoctorID], a)
		}
	}
	for doctor, list := range active {
		for i := 1; i < len(list); i++ {
			gap := list[i].DateTime.Sub(list[i-1].DateTime)
			assert.GreaterOrEqual(t, gap, svc.ConflictWindow(), "doctor %s: %d and %d", doctor, list[i-1].ID, list[i].ID)
		}
	}
}

func TestService_Update_RescheduleWithinOwnWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	f.schedule(t, f.p2, f.drA, at(10, 0), "follow-up")

	moved, err := f.svc.Update(ctx, a.ID, UpdateInput{DateTime: ptr(at(9, 15))})
	require.NoError(t, err)
	assert.Equal(t, at(9, 15), moved.DateTime)

	_, err = f.svc.Update(ctx, a.ID, UpdateInput{DateTime: ptr(at(9, 45))})
	require.ErrorIs(t, err, ErrDoctorConflict)

	current, err := f.svc.ByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, at(9, 15), current.DateTime)
	assertSpacing(t, f.svc)
}

func TestService_Update_InactiveSkipsConflictCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	f.schedule(t, f.p2, f.drA, at(10, 0), "follow-up")

	_, err := f.svc.Cancel(ctx, a.ID)
	require.NoError(t, err)

	moved, err := f.svc.Update(ctx, a.ID, UpdateInput{DateTime: ptr(at(10, 0))})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, moved.Status)
}

func TestService_Update_Fields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")

	_, err := f.svc.Update(ctx, a.ID, UpdateInput{})
	require.ErrorIs(t, err, ErrInvalidAppointment)

	_, err = f.svc.Update(ctx, a.ID, UpdateInput{Reason: ptr(" ")})
	require.ErrorIs(t, err, ErrInvalidAppointment)

	_, err = f.svc.Update(ctx, 99, UpdateInput{Notes: ptr("x")})
	require.ErrorIs(t, err, ErrAppointmentNotFound)

	updated, err := f.svc.Update(ctx, a.ID, UpdateInput{Reason: ptr("annual physical"), Notes: ptr("fasting")})
	require.NoError(t, err)
	assert.Equal(t, "annual physical", updated.Reason)
	assert.Equal(t, "fasting", updated.Notes)
	assert.Equal(t, StatusScheduled, updated.Status)
	assert.Equal(t, 2, f.svc.UndoDepth())
}

func TestService_Confirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")

	confirmed, err := f.svc.Confirm(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.Equal(t, []int64{a.ID}, f.svc.Queue())

	rev := f.svc.Revision()
	depth := f.svc.UndoDepth()

	_, err = f.svc.Confirm(ctx, a.ID)
	require.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Equal(t, rev, f.svc.Revision())
	assert.Equal(t, depth, f.svc.UndoDepth())
}

func TestService_TransitionsArePermissive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")

	_, err := f.svc.Cancel(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, f.svc.Queue())

	done, err := f.svc.Complete(ctx, a.ID, ptr("came in after all"))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, "came in after all", done.Notes)

	noShow, err := f.svc.MarkNoShow(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, noShow.Status)
	assert.Equal(t, "came in after all", noShow.Notes)

	_, err = f.svc.Cancel(ctx, 42)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.True(t, IsNotFound(err))
}

func TestService_ProcessNext_EmptyQueueChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	_, err := f.svc.Cancel(ctx, a.ID)
	require.NoError(t, err)

	before := f.svc.Export()
	depth := f.svc.UndoDepth()
	rev := f.svc.Revision()

	_, err = f.svc.ProcessNext(ctx)
	require.ErrorIs(t, err, ErrQueueEmpty)
	assert.True(t, IsEmpty(err))

	assert.Empty(t, cmp.Diff(before, f.svc.Export()))
	assert.Equal(t, depth, f.svc.UndoDepth())
	assert.Equal(t, rev, f.svc.Revision())
}

func TestService_ProcessNext_FIFO(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// queue order follows booking order, not appointment time
	late := f.schedule(t, f.p1, f.drA, at(15, 0), "checkup")
	early := f.schedule(t, f.p2, f.drB, at(8, 0), "checkup")

	_, err := f.svc.Confirm(ctx, early.ID)
	require.NoError(t, err)

	peeked, err := f.svc.PeekNext()
	require.NoError(t, err)
	assert.Equal(t, late.ID, peeked.ID)

	first, err := f.svc.ProcessNext(ctx)
	require.NoError(t, err)
	second, err := f.svc.ProcessNext(ctx)
	require.NoError(t, err)

	assert.Equal(t, late.ID, first.ID)
	assert.Equal(t, early.ID, second.ID)
	assert.Equal(t, StatusInProgress, second.Status)
}

func TestService_CancelThenUndoRestoresState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	mid := f.schedule(t, f.p2, f.drA, at(10, 0), "follow-up")
	f.schedule(t, f.p1, f.drB, at(9, 0), "checkup")
	_, err := f.svc.Confirm(ctx, mid.ID)
	require.NoError(t, err)

	before := f.svc.Export()
	depth := f.svc.UndoDepth()

	_, err = f.svc.Cancel(ctx, mid.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, f.svc.Queue())

	rec, err := f.svc.UndoLast(ctx)
	require.NoError(t, err)
	assert.Equal(t, UndoCancel, rec.Kind)
	assert.Equal(t, mid.ID, rec.AppointmentID)

	if diff := cmp.Diff(before, f.svc.Export()); diff != "" {
		t.Errorf("state after undo mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, depth, f.svc.UndoDepth())
}

func TestService_UndoAddRemovesAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")

	rec, err := f.svc.UndoLast(ctx)
	require.NoError(t, err)
	assert.Equal(t, UndoAdd, rec.Kind)

	_, err = f.svc.ByID(a.ID)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NotContains(t, f.svc.Queue(), a.ID)

	// ids are never reused
	b := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	assert.Equal(t, a.ID+1, b.ID)
}

func TestService_UndoIsLIFO(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	_, err := f.svc.Confirm(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, a.ID, UpdateInput{Reason: ptr("physical"), DateTime: ptr(at(11, 0))})
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, a.ID, ptr("all good"))
	require.NoError(t, err)

	var kinds []UndoKind
	for {
		rec, err := f.svc.UndoLast(ctx)
		if errors.Is(err, ErrNothingToUndo) {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, rec.Kind)

		if rec.Kind == UndoUpdate {
			got, err := f.svc.ByID(a.ID)
			require.NoError(t, err)
			assert.Equal(t, "checkup", got.Reason)
			assert.Equal(t, at(9, 0), got.DateTime)
			assert.Equal(t, StatusConfirmed, got.Status)
			assert.Equal(t, []int64{a.ID}, f.svc.Queue())
		}
	}

	assert.Equal(t, []UndoKind{UndoComplete, UndoUpdate, UndoConfirm, UndoAdd}, kinds)
	assert.Empty(t, f.svc.All())
	assert.Empty(t, f.svc.Queue())
}

func TestService_UndoDoesNotRecordItself(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	_, err := f.svc.Cancel(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 2, f.svc.UndoDepth())

	_, err = f.svc.UndoLast(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.UndoDepth())
}

func TestService_UndoEmpty(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UndoLast(context.Background())
	require.ErrorIs(t, err, ErrNothingToUndo)
	assert.True(t, IsEmpty(err))
	assert.Zero(t, f.svc.Revision())
}

func TestService_UndoLimitDropsOldest(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.UndoLimit = 2 })
	ctx := context.Background()

	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	_, err := f.svc.Confirm(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, a.ID, UpdateInput{Notes: ptr("x")})
	require.NoError(t, err)
	assert.Equal(t, 2, f.svc.UndoDepth())

	for i := 0; i < 2; i++ {
		_, err := f.svc.UndoLast(ctx)
		require.NoError(t, err)
	}
	_, err = f.svc.UndoLast(ctx)
	require.ErrorIs(t, err, ErrNothingToUndo)

	// the ADD record was dropped, so the appointment survives
	got, err := f.svc.ByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, got.Status)
}

func TestService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	b := f.schedule(t, f.p2, f.drA, at(10, 0), "checkup")
	_, err := f.svc.Confirm(ctx, a.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, a.ID))

	_, err = f.svc.ByID(a.ID)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.Equal(t, []int64{b.ID}, f.svc.Queue())
	assert.Equal(t, 1, f.svc.UndoDepth())

	rec, err := f.svc.UndoLast(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, rec.AppointmentID)

	err = f.svc.Delete(ctx, a.ID)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestService_ExportRestoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	f.schedule(t, f.p2, f.drA, at(10, 0), "follow-up")
	c := f.schedule(t, f.p1, f.drB, at(9, 0), "checkup")
	_, err := f.svc.ProcessNext(ctx)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, c.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, a.ID))

	st := f.svc.Export()

	restored := NewService(f.dir, nil, config.NewTestConfig())
	require.NoError(t, restored.Restore(st))

	if diff := cmp.Diff(st, restored.Export()); diff != "" {
		t.Errorf("restored state mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, restored.UndoDepth())
	assert.Zero(t, restored.Revision())

	next, err := restored.Schedule(ctx, ScheduleInput{PatientID: f.p2.ID, DoctorID: f.drB.ID, DateTime: at(14, 0), Reason: "checkup"})
	require.NoError(t, err)
	assert.Equal(t, st.NextID, next.ID)
}

func TestService_RestoreRejectsBrokenState(t *testing.T) {
	active := Appointment{ID: 1, DoctorID: uuid.New(), DateTime: at(9, 0), Status: StatusScheduled, Reason: "checkup"}
	done := Appointment{ID: 2, DoctorID: uuid.New(), DateTime: at(9, 0), Status: StatusCompleted, Reason: "checkup"}

	tests := []struct {
		name    string
		st      State
		wantErr error
	}{
		{name: "queued id unknown", st: State{Appointments: []Appointment{active}, Queue: []int64{7}}, wantErr: ErrAppointmentNotFound},
		{name: "queued id inactive", st: State{Appointments: []Appointment{active, done}, Queue: []int64{2}}, wantErr: ErrInvalidAppointment},
		{name: "queued twice", st: State{Appointments: []Appointment{active}, Queue: []int64{1, 1}}, wantErr: ErrInvalidAppointment},
		{name: "duplicate id", st: State{Appointments: []Appointment{active, active}}, wantErr: ErrInvalidAppointment},
		{name: "bad status", st: State{Appointments: []Appointment{{ID: 3, Status: "lost"}}}, wantErr: ErrInvalidAppointment},
		{name: "bad id", st: State{Appointments: []Appointment{{ID: 0, Status: StatusScheduled}}}, wantErr: ErrInvalidAppointment},
		{name: "active not queued", st: State{Appointments: []Appointment{active}}, wantErr: ErrInvalidAppointment},
		{name: "doctor double booked", st: State{
			Appointments: []Appointment{
				active,
				{ID: 3, DoctorID: active.DoctorID, DateTime: at(9, 5), Status: StatusConfirmed, Reason: "checkup"},
			},
			Queue: []int64{1, 3},
		}, wantErr: ErrInvalidAppointment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			existing := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")

			err := f.svc.Restore(tt.st)
			require.ErrorIs(t, err, tt.wantErr)

			// a rejected restore leaves the engine untouched
			_, err = f.svc.ByID(existing.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, f.svc.UndoDepth())
		})
	}
}

func TestService_RestoreAcceptsInactiveOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := uuid.New()

	st := State{
		NextID: 4,
		Appointments: []Appointment{
			{ID: 1, DoctorID: doctor, DateTime: at(9, 0), Status: StatusScheduled, Reason: "checkup"},
			{ID: 2, DoctorID: doctor, DateTime: at(9, 5), Status: StatusCancelled, Reason: "checkup"},
			{ID: 3, DoctorID: doctor, DateTime: at(9, 30), Status: StatusConfirmed, Reason: "checkup"},
		},
		Queue: []int64{1, 3},
	}
	require.NoError(t, f.svc.Restore(st))

	first, err := f.svc.ProcessNext(ctx)
	require.NoError(t, err)
	second, err := f.svc.ProcessNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, []int64{first.ID, second.ID})

	_, err = f.svc.ProcessNext(ctx)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestService_UndoKeepsQueueOrderAfterDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	b := f.schedule(t, f.p1, f.drA, at(10, 0), "checkup")
	c := f.schedule(t, f.p1, f.drA, at(11, 0), "checkup")

	_, err := f.svc.Cancel(ctx, b.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, a.ID))
	assert.Equal(t, []int64{c.ID}, f.svc.Queue())

	rec, err := f.svc.UndoLast(ctx)
	require.NoError(t, err)
	assert.Equal(t, UndoCancel, rec.Kind)
	assert.Equal(t, []int64{b.ID, c.ID}, f.svc.Queue())
}

func TestService_UndoToTailWhenFollowersGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	b := f.schedule(t, f.p1, f.drA, at(10, 0), "checkup")
	c := f.schedule(t, f.p1, f.drA, at(11, 0), "checkup")

	_, err := f.svc.Cancel(ctx, a.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, b.ID))
	require.NoError(t, f.svc.Delete(ctx, c.ID))

	_, err = f.svc.UndoLast(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, f.svc.Queue())
}

func TestService_EventsFollowCommitOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Schedule(ctx, ScheduleInput{
				PatientID: f.p1.ID,
				DoctorID:  f.drA.ID,
				DateTime:  at(0, 0).Add(time.Duration(i) * time.Hour),
				Reason:    "checkup",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// ids are handed out under the lock, so commit order is id order
	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	require.Len(t, f.events.events, n)
	for i, ev := range f.events.events {
		require.NotNil(t, ev.AppointmentID)
		assert.Equal(t, int64(i+1), *ev.AppointmentID)
		assert.True(t, ev.CreatedAt.Equal(f.clock.Now()))
	}
}

func TestService_RejectedMutationPublishesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	_, err := f.svc.Schedule(ctx, ScheduleInput{PatientID: f.p2.ID, DoctorID: f.drA.ID, DateTime: at(9, 10), Reason: "x"})
	require.ErrorIs(t, err, ErrDoctorConflict)
	_, err = f.svc.Complete(ctx, a.ID+99, nil)
	require.ErrorIs(t, err, ErrAppointmentNotFound)

	assert.Equal(t, []string{EventAppointmentScheduled}, f.events.types())
}

func TestService_RevisionCountsCommittedMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	_, _ = f.svc.Schedule(ctx, ScheduleInput{PatientID: f.p1.ID, DoctorID: f.drA.ID, DateTime: at(9, 5), Reason: "x"})
	_, err := f.svc.Confirm(ctx, a.ID)
	require.NoError(t, err)
	_, _ = f.svc.Confirm(ctx, a.ID)

	assert.Equal(t, uint64(2), f.svc.Revision())
}

func TestService_PublishesEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.schedule(t, f.p1, f.drA, at(9, 0), "checkup")
	_, err := f.svc.Confirm(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.svc.ProcessNext(ctx)
	require.NoError(t, err)
	_, err = f.svc.UndoLast(ctx)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, a.ID))

	assert.Equal(t, []string{
		EventAppointmentScheduled,
		EventAppointmentConfirmed,
		EventAppointmentStarted,
		EventAppointmentUndone,
		EventAppointmentDeleted,
	}, f.events.types())

	ev := f.events.events[2]
	require.NotNil(t, ev.AppointmentID)
	assert.Equal(t, a.ID, *ev.AppointmentID)
	assert.JSONEq(t, `{"from":"confirmed","to":"in_progress"}`, string(ev.Payload))
}
