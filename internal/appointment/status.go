package appointment

import (
	"strings"

	"github.com/cockroachdb/errors"
)

var allStatuses = []Status{
	StatusScheduled,
	StatusConfirmed,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusNoShow,
}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", errors.Wrapf(ErrInvalidAppointment, "unknown status %q", raw)
	}
	return s, nil
}

func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) IsActive() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

func (s Status) String() string {
	return string(s)
}

// canConfirm is the only guarded transition. Cancel, complete and no-show are
// accepted from any state.
func canConfirm(current Status) error {
	if current != StatusScheduled {
		return errors.Wrapf(ErrInvalidStatusTransition, "cannot confirm from %s", current)
	}
	return nil
}
