// Package timerq provides cancellable one-shot and interval timers backed by
// a single dispatch goroutine, so callbacks never overlap and rescheduling a
// pending timer is race-free.
package timerq

import (
	"container/heap"
	"sync"
	"time"
)

type entry struct {
	id       uint64
	at       time.Time
	interval time.Duration // 0 for one-shot
	fn       func()
	index    int
	canceled bool
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *entryHeap) Push(x any)         { e := x.(*entry); e.index = len(*h); *h = append(*h, e) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Queue dispatches timer callbacks from one goroutine. Create with New and
// release with Close.
type Queue struct {
	mu      sync.Mutex
	heap    entryHeap
	entries map[uint64]*entry
	nextID  uint64
	wake    chan struct{}
	done    chan struct{}
	closed  bool

	now func() time.Time // test hook
}

// Cancel releases a scheduled timer. Safe to call multiple times.
type Cancel func()

func New() *Queue {
	q := &Queue{
		entries: make(map[uint64]*entry),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go q.loop()
	return q
}

// RunAt schedules fn once at t. Times in the past fire immediately.
func (q *Queue) RunAt(t time.Time, fn func()) Cancel {
	return q.add(t, 0, fn)
}

// RunEvery schedules fn every interval, first firing one interval from now.
func (q *Queue) RunEvery(interval time.Duration, fn func()) Cancel {
	return q.add(q.now().Add(interval), interval, fn)
}

func (q *Queue) add(at time.Time, interval time.Duration, fn func()) Cancel {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return func() {}
	}
	q.nextID++
	e := &entry{id: q.nextID, at: at, interval: interval, fn: fn}
	heap.Push(&q.heap, e)
	q.entries[e.id] = e
	q.mu.Unlock()

	q.kick()
	id := e.id
	return func() { q.cancel(id) }
}

func (q *Queue) cancel(id uint64) {
	q.mu.Lock()
	if e, ok := q.entries[id]; ok {
		e.canceled = true
		delete(q.entries, id)
	}
	q.mu.Unlock()
	q.kick()
}

func (q *Queue) kick() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Close stops the dispatch goroutine. Pending timers never fire.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.done)
}

func (q *Queue) loop() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		q.mu.Lock()
		var next *entry
		for q.heap.Len() > 0 {
			head := q.heap[0]
			if head.canceled {
				heap.Pop(&q.heap)
				continue
			}
			next = head
			break
		}

		var fire func()
		wait := time.Hour
		if next != nil {
			d := next.at.Sub(q.now())
			if d <= 0 {
				heap.Pop(&q.heap)
				if next.interval > 0 {
					next.at = q.now().Add(next.interval)
					heap.Push(&q.heap, next)
				} else {
					delete(q.entries, next.id)
				}
				fire = next.fn
			} else {
				wait = d
			}
		}
		q.mu.Unlock()

		if fire != nil {
			fire()
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-q.done:
			return
		case <-q.wake:
		case <-timer.C:
		}
	}
}
