package journal

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"xevsource/internal/logging"
	"xevsource/internal/xevent"
)

const (
	DefaultBatchSize     = 64
	DefaultFlushInterval = 500 * time.Millisecond
	DefaultBuffer        = 1024
)

// RecorderOptions configures a Recorder. Zero values take the defaults.
type RecorderOptions struct {
	BatchSize     int
	FlushInterval time.Duration
	Buffer        int
	Logger        *slog.Logger
	Now           func() time.Time
}

// Recorder observes routed raw events and writes them to a Store in
// batches. It never blocks the dispatch path: when the buffer is full the
// record is dropped and counted.
type Recorder struct {
	store   *Store
	session Session
	opts    RecorderOptions
	logger  *slog.Logger

	records chan Record
	done    chan struct{}
	dropped atomic.Uint64
	written atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// NewRecorder starts a session for display and the background writer.
func NewRecorder(store *Store, display string, opts RecorderOptions) (*Recorder, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default().WithComponent("journal").Logger
	}

	sess, err := store.StartSession(display, opts.Now())
	if err != nil {
		return nil, err
	}
	r := &Recorder{
		store:   store,
		session: sess,
		opts:    opts,
		logger:  logger.With("session", sess.ID),
		records: make(chan Record, opts.Buffer),
		done:    make(chan struct{}),
	}
	go r.writeLoop()
	r.logger.Info("journal session started", "display", display)
	return r, nil
}

// Session returns the session this recorder writes into.
func (r *Recorder) Session() Session { return r.session }

// Dropped returns how many records were discarded on a full buffer.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Written returns how many records reached the database.
func (r *Recorder) Written() uint64 { return r.written.Load() }

// WillProcessXEvent does nothing; events are recorded once routed.
func (r *Recorder) WillProcessXEvent(xevent.Raw) {}

// DidProcessXEvent queues ev for the writer.
func (r *Recorder) DidProcessXEvent(ev xevent.Raw) {
	rec := Record{
		SessionID:  r.session.ID,
		Sequence:   ev.Sequence(),
		Name:       xevent.Name(ev),
		Window:     uint32(xevent.TargetWindow(ev)),
		ServerTime: uint32(xevent.TimeOf(ev)),
		RecordedAt: r.opts.Now(),
	}
	select {
	case r.records <- rec:
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("journal buffer full, dropping records")
		}
	}
}

func (r *Recorder) writeLoop() {
	defer close(r.done)

	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, r.opts.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.store.InsertRecords(r.session.ID, batch); err != nil {
			r.logger.Error("journal write failed", "records", len(batch), "error", err)
		} else {
			r.written.Add(uint64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-r.records:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= r.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close flushes queued records and ends the session. The caller must have
// removed the recorder from the source first; DidProcessXEvent after Close
// panics.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.records)
		<-r.done
		r.closeErr = r.store.EndSession(r.session.ID, r.opts.Now())
		r.logger.Info("journal session ended",
			"written", r.written.Load(), "dropped", r.dropped.Load())
	})
	return r.closeErr
}
