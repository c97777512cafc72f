package appointment

type UndoKind string

const (
	UndoAdd      UndoKind = "ADD"
	UndoUpdate   UndoKind = "UPDATE"
	UndoConfirm  UndoKind = "CONFIRM"
	UndoCancel   UndoKind = "CANCEL"
	UndoComplete UndoKind = "COMPLETE"
	UndoNoShow   UndoKind = "NO_SHOW"
	UndoProcess  UndoKind = "PROCESS"
)

// UndoRecord reverts one mutating call. Before is nil for UndoAdd, whose
// inverse is removal. Behind holds the ids that were queued after the
// appointment when the call was made, so undo can put it back ahead of them.
type UndoRecord struct {
	Kind          UndoKind
	AppointmentID int64
	Before        *Snapshot
	Behind        []int64
}

// UndoStack is a LIFO of undo records. With a positive limit the oldest
// records are dropped once the limit is reached; zero means unbounded.
type UndoStack struct {
	records []UndoRecord
	limit   int
}

func NewUndoStack(limit int) *UndoStack {
	if limit < 0 {
		limit = 0
	}
	return &UndoStack{limit: limit}
}

func (u *UndoStack) Push(r UndoRecord) {
	if u.limit > 0 && len(u.records) >= u.limit {
		drop := len(u.records) - u.limit + 1
		u.records = append(u.records[:0], u.records[drop:]...)
	}
	u.records = append(u.records, r)
}

func (u *UndoStack) Pop() (UndoRecord, bool) {
	n := len(u.records)
	if n == 0 {
		return UndoRecord{}, false
	}
	r := u.records[n-1]
	u.records[n-1] = UndoRecord{}
	u.records = u.records[:n-1]
	return r, true
}

func (u *UndoStack) Peek() (UndoRecord, bool) {
	if len(u.records) == 0 {
		return UndoRecord{}, false
	}
	return u.records[len(u.records)-1], true
}

func (u *UndoStack) Len() int {
	return len(u.records)
}

// purge removes every record that refers to id. Used by Delete so undo never
// targets an appointment that no longer exists.
func (u *UndoStack) purge(id int64) int {
	kept := u.records[:0]
	removed := 0
	for _, r := range u.records {
		if r.AppointmentID == id {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	for i := len(kept); i < len(u.records); i++ {
		u.records[i] = UndoRecord{}
	}
	u.records = kept
	return removed
}

func (u *UndoStack) reset() {
	u.records = nil
}
