package appointment

// Store is the keyed container of appointments. It holds no validation logic
// and is not safe for concurrent use on its own; Service serialises access.
type Store struct {
	items  map[int64]Appointment
	nextID int64
}

func NewStore() *Store {
	return &Store{
		items:  make(map[int64]Appointment),
		nextID: 1,
	}
}

// Insert assigns the next id to a and stores it. Ids are never handed out
// twice, even after Remove.
func (s *Store) Insert(a Appointment) int64 {
	a.ID = s.nextID
	s.nextID++
	s.items[a.ID] = a
	return a.ID
}

func (s *Store) Get(id int64) (Appointment, bool) {
	a, ok := s.items[id]
	return a, ok
}

// Put overwrites an existing entry. It reports false when id is unknown.
func (s *Store) Put(a Appointment) bool {
	if _, ok := s.items[a.ID]; !ok {
		return false
	}
	s.items[a.ID] = a
	return true
}

// All returns the entries in no particular order.
func (s *Store) All() []Appointment {
	out := make([]Appointment, 0, len(s.items))
	for _, a := range s.items {
		out = append(out, a)
	}
	return out
}

func (s *Store) Remove(id int64) bool {
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}

func (s *Store) Len() int {
	return len(s.items)
}

// NextID is the id the next Insert will assign.
func (s *Store) NextID() int64 {
	return s.nextID
}

// load replaces the contents wholesale. nextID is raised past the largest
// stored id so restored state can never cause reuse.
func (s *Store) load(nextID int64, items []Appointment) {
	s.items = make(map[int64]Appointment, len(items))
	if nextID < 1 {
		nextID = 1
	}
	for _, a := range items {
		s.items[a.ID] = a
		if a.ID >= nextID {
			nextID = a.ID + 1
		}
	}
	s.nextID = nextID
}
