// Package autodelete removes transient bot replies after a delay.
package autodelete

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Deleter interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Gauge receives the number of pending deletions after every change.
type Gauge interface {
	Set(float64)
}

type task struct {
	at        time.Time
	chatID    int64
	messageID int
	seq       uint64
}

type taskHeap []task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}

// Scheduler fires one-shot deletions in due-time order from a single
// goroutine. Deletions cannot be cancelled and their failures are dropped.
// On shutdown every pending deletion is fired early rather than lost.
type Scheduler struct {
	deleter Deleter
	log     *zap.Logger
	gauge   Gauge
	timeout time.Duration
	// drainTimeout bounds the whole shutdown flush.
	drainTimeout time.Duration

	mu    sync.Mutex
	queue taskHeap
	seq   uint64
	wake  chan struct{}
}

func New(deleter Deleter, log *zap.Logger) *Scheduler {
	return &Scheduler{
		deleter: deleter,
		log:     log,
		timeout:      10 * time.Second,
		drainTimeout: 5 * time.Second,
		wake:         make(chan struct{}, 1),
	}
}

func (s *Scheduler) SetGauge(g Gauge) {
	s.gauge = g
}

// Schedule arranges for the message to be deleted after delay.
func (s *Scheduler) Schedule(chatID int64, messageID int, delay time.Duration) {
	s.mu.Lock()
	s.seq++
	heap.Push(&s.queue, task{at: time.Now().Add(delay), chatID: chatID, messageID: messageID, seq: s.seq})
	n := s.queue.Len()
	s.mu.Unlock()
	s.report(n)

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of deletions not yet fired.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Run fires deletions until ctx is cancelled, then flushes whatever is still
// pending before returning.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		due, wait := s.popDue(time.Now())
		for _, t := range due {
			s.fire(ctx, t)
		}
		if len(due) > 0 {
			continue
		}

		var fired <-chan time.Time
		if wait >= 0 {
			timer.Reset(wait)
			fired = timer.C
		}
		select {
		case <-ctx.Done():
			s.drain(ctx)
			return
		case <-s.wake:
			timer.Stop()
		case <-fired:
		}
	}
}

// popDue removes every task due at now and returns the wait until the next
// one, or -1 when the queue is empty.
func (s *Scheduler) popDue(now time.Time) ([]task, time.Duration) {
	s.mu.Lock()
	var due []task
	for s.queue.Len() > 0 && !s.queue[0].at.After(now) {
		due = append(due, heap.Pop(&s.queue).(task))
	}
	wait := time.Duration(-1)
	if s.queue.Len() > 0 {
		wait = s.queue[0].at.Sub(now)
	}
	n := s.queue.Len()
	s.mu.Unlock()

	if len(due) > 0 {
		s.report(n)
	}
	return due, wait
}

// drain fires every queued deletion regardless of its due time, sharing one
// deadline detached from the cancelled run context.
func (s *Scheduler) drain(ctx context.Context) {
	s.mu.Lock()
	pending := make([]task, 0, s.queue.Len())
	for s.queue.Len() > 0 {
		pending = append(pending, heap.Pop(&s.queue).(task))
	}
	s.mu.Unlock()
	if len(pending) == 0 {
		return
	}
	s.report(0)
	s.log.Info("Flushing pending auto-deletes", zap.Int("pending", len(pending)))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.drainTimeout)
	defer cancel()
	for _, t := range pending {
		if ctx.Err() != nil {
			s.log.Warn("Auto-delete flush timed out", zap.Int("abandoned", len(pending)))
			return
		}
		s.fire(ctx, t)
		pending = pending[1:]
	}
}

func (s *Scheduler) fire(ctx context.Context, t task) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.deleter.DeleteMessage(ctx, t.chatID, t.messageID); err != nil {
		s.log.Debug("Auto-delete failed",
			zap.Int64("chat_id", t.chatID),
			zap.Int("message_id", t.messageID),
			zap.Error(err),
		)
	}
}

func (s *Scheduler) report(n int) {
	if s.gauge != nil {
		s.gauge.Set(float64(n))
	}
}
