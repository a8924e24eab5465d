package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const flushTimeout = 10 * time.Second

type noteFlushFunc func(ctx context.Context, stepID uuid.UUID, notes string) error

// NoteSaver debounces note edits before they are persisted. Edits are keyed
// by step ID, so concurrent sessions editing different steps never cancel
// each other: only a re-edit of the same step resets its timer, and only an
// explicit cancel for that step drops it. A pending (not yet fired) edit is
// dropped, never fired, when its view navigates away or the saver shuts
// down.
type NoteSaver struct {
	mu       sync.Mutex
	flush    noteFlushFunc
	interval time.Duration
	log      zerolog.Logger
	pending  map[uuid.UUID]*pendingNote
	lastSent map[uuid.UUID]string
}

type pendingNote struct {
	stepID uuid.UUID
	notes  string
	timer  *time.Timer
}

func newNoteSaver(flush noteFlushFunc, interval time.Duration, log zerolog.Logger) *NoteSaver {
	return &NoteSaver{
		flush:    flush,
		interval: interval,
		log:      log,
		pending:  make(map[uuid.UUID]*pendingNote),
		lastSent: make(map[uuid.UUID]string),
	}
}

// Queue schedules a debounced write of notes for the step. Re-queueing the
// same step resets its timer; edits pending for other steps are untouched.
// A value equal to the last flushed one cancels the step's pending edit and
// is skipped.
func (s *NoteSaver) Queue(stepID uuid.UUID, notes string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.pending[stepID]; ok {
		existing.timer.Stop()
		delete(s.pending, stepID)
	}

	if last, ok := s.lastSent[stepID]; ok && last == notes {
		return
	}

	capture := &pendingNote{stepID: stepID, notes: notes}
	capture.timer = time.AfterFunc(s.interval, func() { s.fire(capture) })
	s.pending[stepID] = capture
}

// CancelExcept drops pending edits for the given sibling steps, keeping the
// one targeting keep. Used when a view moves between the steps of one
// project; edits pending for other projects are untouched.
func (s *NoteSaver) CancelExcept(keep uuid.UUID, siblings []uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range siblings {
		if id == keep {
			continue
		}
		if capture, ok := s.pending[id]; ok {
			capture.timer.Stop()
			delete(s.pending, id)
		}
	}
}

// Cancel drops every pending edit. Used on teardown.
func (s *NoteSaver) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, capture := range s.pending {
		capture.timer.Stop()
		delete(s.pending, id)
	}
}

// Flush writes all pending edits immediately, for explicit navigation
// saves. The first flush error is reported; later edits are still written.
func (s *NoteSaver) Flush(ctx context.Context) error {
	s.mu.Lock()
	captures := make([]*pendingNote, 0, len(s.pending))
	for id, capture := range s.pending {
		capture.timer.Stop()
		delete(s.pending, id)
		captures = append(captures, capture)
	}
	s.mu.Unlock()

	var first error
	for _, capture := range captures {
		if err := s.doFlush(ctx, capture); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *NoteSaver) fire(capture *pendingNote) {
	s.mu.Lock()
	if s.pending[capture.stepID] != capture {
		s.mu.Unlock()
		return
	}
	delete(s.pending, capture.stepID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := s.doFlush(ctx, capture); err != nil {
		s.log.Warn().Err(err).Str("step_id", capture.stepID.String()).Msg("autosave flush failed")
	}
}

func (s *NoteSaver) doFlush(ctx context.Context, capture *pendingNote) error {
	if err := s.flush(ctx, capture.stepID, capture.notes); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastSent[capture.stepID] = capture.notes
	s.mu.Unlock()
	return nil
}
