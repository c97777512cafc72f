package appointment

// Queue is the FIFO of appointment ids awaiting service. An id is present at
// most once. Like Store, it relies on Service for synchronisation.
type Queue struct {
	ids     []int64
	members map[int64]struct{}
}

func NewQueue() *Queue {
	return &Queue{
		ids:     make([]int64, 0, 64),
		members: make(map[int64]struct{}),
	}
}

// Enqueue appends id to the tail. It is a no-op returning false when id is
// already queued.
func (q *Queue) Enqueue(id int64) bool {
	if _, ok := q.members[id]; ok {
		return false
	}
	q.ids = append(q.ids, id)
	q.members[id] = struct{}{}
	return true
}

// InsertBefore places id ahead of the first id in behind that is still
// queued, or at the tail when none is. Like Enqueue it refuses ids that are
// already queued.
func (q *Queue) InsertBefore(id int64, behind []int64) bool {
	if _, ok := q.members[id]; ok {
		return false
	}
	pos := len(q.ids)
	for _, next := range behind {
		if i := q.index(next); i >= 0 {
			pos = i
			break
		}
	}
	q.ids = append(q.ids, 0)
	copy(q.ids[pos+1:], q.ids[pos:])
	q.ids[pos] = id
	q.members[id] = struct{}{}
	return true
}

func (q *Queue) Dequeue() (int64, bool) {
	if len(q.ids) == 0 {
		return 0, false
	}
	id := q.ids[0]
	if len(q.ids) == 1 {
		q.ids = q.ids[:0]
	} else {
		q.ids = q.ids[1:]
	}
	delete(q.members, id)
	return id, true
}

func (q *Queue) Peek() (int64, bool) {
	if len(q.ids) == 0 {
		return 0, false
	}
	return q.ids[0], true
}

// Remove drops id wherever it sits. Absent ids are ignored.
func (q *Queue) Remove(id int64) bool {
	if _, ok := q.members[id]; !ok {
		return false
	}
	delete(q.members, id)
	for i, v := range q.ids {
		if v == id {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			break
		}
	}
	return true
}

// Behind returns a copy of the ids queued after id. ok is false when id is
// not queued.
func (q *Queue) Behind(id int64) (ids []int64, ok bool) {
	i := q.index(id)
	if i < 0 {
		return nil, false
	}
	out := make([]int64, len(q.ids)-i-1)
	copy(out, q.ids[i+1:])
	return out, true
}

func (q *Queue) index(id int64) int {
	if _, ok := q.members[id]; !ok {
		return -1
	}
	for i, v := range q.ids {
		if v == id {
			return i
		}
	}
	return -1
}

func (q *Queue) Contains(id int64) bool {
	_, ok := q.members[id]
	return ok
}

func (q *Queue) Len() int {
	return len(q.ids)
}

// IDs returns a copy of the queue, head first.
func (q *Queue) IDs() []int64 {
	out := make([]int64, len(q.ids))
	copy(out, q.ids)
	return out
}

func (q *Queue) reset() {
	q.ids = q.ids[:0]
	q.members = make(map[int64]struct{})
}
