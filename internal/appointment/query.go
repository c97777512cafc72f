package appointment

import (
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// DailyCounts maps every status to the number of appointments in it for one
// calendar day. All statuses are present, zero or not.
type DailyCounts map[Status]int

func (c DailyCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// ByID returns the appointment with the given id.
func (s *Service) ByID(id int64) (Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.store.Get(id)
	if !ok {
		return Appointment{}, errors.Wrapf(ErrAppointmentNotFound, "appointment %d", id)
	}
	return a, nil
}

func (s *Service) All() []Appointment {
	return s.filter(func(Appointment) bool { return true })
}

func (s *Service) ByStatus(status Status) []Appointment {
	return s.filter(func(a Appointment) bool { return a.Status == status })
}

func (s *Service) ByPatient(patientID uuid.UUID) []Appointment {
	return s.filter(func(a Appointment) bool { return a.PatientID == patientID })
}

func (s *Service) ByDoctor(doctorID uuid.UUID) []Appointment {
	return s.filter(func(a Appointment) bool { return a.DoctorID == doctorID })
}

// ByDate returns the appointments on the clinic calendar day containing day.
func (s *Service) ByDate(day time.Time) []Appointment {
	start := s.startOfDay(day)
	end := start.AddDate(0, 0, 1)
	return s.filter(func(a Appointment) bool { return inRange(a.DateTime, start, end) })
}

// ByDateRange returns the appointments from the first calendar day through
// the last one, both inclusive. Swapped bounds are put in order.
func (s *Service) ByDateRange(from, to time.Time) []Appointment {
	start := s.startOfDay(from)
	end := s.startOfDay(to)
	if end.Before(start) {
		start, end = end, start
	}
	end = end.AddDate(0, 0, 1)
	return s.filter(func(a Appointment) bool { return inRange(a.DateTime, start, end) })
}

func (s *Service) DailyStatusCounts(day time.Time) DailyCounts {
	counts := make(DailyCounts, len(allStatuses))
	for _, st := range allStatuses {
		counts[st] = 0
	}
	for _, a := range s.ByDate(day) {
		counts[a.Status]++
	}
	return counts
}

// Queue returns the ids awaiting service, head first.
func (s *Service) Queue() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue.IDs()
}

// PeekNext returns the appointment ProcessNext would start, without
// starting it.
func (s *Service) PeekNext() (Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.queue.Peek()
	if !ok {
		return Appointment{}, ErrQueueEmpty
	}
	a, found := s.store.Get(id)
	if !found {
		return Appointment{}, errors.Wrapf(ErrAppointmentNotFound, "queued appointment %d", id)
	}
	return a, nil
}

func (s *Service) UndoDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.undo.Len()
}

// filter returns matches sorted by date and time, then id.
func (s *Service) filter(keep func(Appointment) bool) []Appointment {
	s.mu.RLock()
	out := make([]Appointment, 0)
	for _, a := range s.store.items {
		if keep(a) {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sortByTime(out)
	return out
}

// sortByTime orders by date and time, then id.
func sortByTime(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if appts[i].DateTime.Equal(appts[j].DateTime) {
			return appts[i].ID < appts[j].ID
		}
		return appts[i].DateTime.Before(appts[j].DateTime)
	})
}

func (s *Service) startOfDay(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
