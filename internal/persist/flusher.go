package persist

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

// Engine is the part of the scheduling service the flusher reads.
type Engine interface {
	Export() appointment.State
	Restore(st appointment.State) error
	Revision() uint64
}

// Flusher copies engine state to a StateRepository. Writes are guarded by a
// lock so two processes pointed at the same clinic never interleave them, and
// skipped when nothing changed since the last successful write.
type Flusher struct {
	engine   Engine
	repo     appointment.StateRepository
	locker   redisclient.Locker
	lockKey  string
	interval time.Duration
	log      zerolog.Logger

	lastSaved uint64
	saved     bool
}

func NewFlusher(
	engine Engine,
	repo appointment.StateRepository,
	locker redisclient.Locker,
	clinicID string,
	interval time.Duration,
	log zerolog.Logger,
) *Flusher {
	return &Flusher{
		engine:   engine,
		repo:     repo,
		locker:   locker,
		lockKey:  redisclient.FlushLockKey(clinicID),
		interval: interval,
		log:      log,
	}
}

// Restore loads stored state into the engine. The loaded revision counts as
// saved.
func (f *Flusher) Restore(ctx context.Context) (appointment.State, error) {
	st, err := f.repo.LoadState(ctx)
	if err != nil {
		return appointment.State{}, errors.Wrap(err, "load state")
	}
	if err := f.engine.Restore(st); err != nil {
		return appointment.State{}, errors.Wrap(err, "restore engine")
	}
	f.lastSaved = f.engine.Revision()
	f.saved = true
	return st, nil
}

// FlushOnce writes the current state if it changed. It reports whether a
// write happened.
func (f *Flusher) FlushOnce(ctx context.Context) (bool, error) {
	rev := f.engine.Revision()
	if f.saved && rev == f.lastSaved {
		return false, nil
	}

	st := f.engine.Export()
	err := f.locker.WithLock(ctx, f.lockKey, func(lockCtx context.Context) error {
		return f.repo.SaveState(lockCtx, st)
	})
	if err != nil {
		return false, errors.Wrap(err, "save state")
	}

	// rev was read before Export, so a mutation racing the export is written
	// again on the next tick.
	f.lastSaved = rev
	f.saved = true
	return true, nil
}

// Run flushes every interval until ctx ends, then makes a final attempt on
// a fresh context bounded by finalTimeout.
func (f *Flusher) Run(ctx context.Context, finalTimeout time.Duration) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), finalTimeout)
			f.runOnce(finalCtx)
			cancel()
			return
		case <-ticker.C:
			f.runOnce(ctx)
		}
	}
}

func (f *Flusher) runOnce(ctx context.Context) {
	start := time.Now()
	wrote, err := f.FlushOnce(ctx)
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			f.log.Warn().Err(err).Msg("flush skipped, another writer holds the lock")
			return
		}
		f.log.Error().Err(err).Msg("flush failed")
		return
	}
	if wrote {
		f.log.Debug().Dur("took", time.Since(start)).Msg("state flushed")
	}
}
