package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

const writeTimeout = 5 * time.Second

// Dispatcher moves engine events to an EventSink on a background worker. The
// engine never waits on the database: when the buffer is full the event is
// dropped and logged.
type Dispatcher struct {
	sink   appointment.EventSink
	log    zerolog.Logger
	queue  chan appointment.EventLog
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sink appointment.EventSink, buffer int, log zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 100
	}
	d := &Dispatcher{
		sink:  sink,
		log:   log,
		queue: make(chan appointment.EventLog, buffer),
		done:  make(chan struct{}),
	}

	go d.worker()
	return d
}

func (d *Dispatcher) worker() {
	defer close(d.done)

	for ev := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := d.sink.InsertEvent(ctx, ev)
		cancel()
		if err != nil {
			d.log.Error().Err(err).
				Str("event_type", ev.EventType).
				Msg("failed to insert event log")
		}
	}
}

// Publish queues ev for writing. It never blocks.
func (d *Dispatcher) Publish(ev appointment.EventLog) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn().Str("event_type", ev.EventType).Msg("event dispatcher closed, dropping event")
		return
	}

	select {
	case d.queue <- ev:
	default:
		d.log.Warn().Str("event_type", ev.EventType).Msg("event queue full, dropping event")
	}
}

// Close stops accepting events and waits for the buffered ones to be
// written, or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
