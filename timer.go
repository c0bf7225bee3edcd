package eventloop

import (
	"container/heap"
	"time"
)

// TimerID uniquely identifies a scheduled timer within a Loop's lifetime
// (§3: "id is an opaque string unique within the loop's lifetime" — this
// repo uses an opaque integer instead of a string, cheaper to generate and
// compare, without weakening the "opaque, unique" contract).
type TimerID uint64

// timerEntry is one scheduled, one-shot callback (§3 Timer).
type timerEntry struct {
	id       TimerID
	deadline time.Time
	seq      uint64 // insertion order, breaks deadline ties (§3)
	callback func()
	cancelled bool
	index    int // heap index, maintained by container/heap
}

// timerHeap is a min-heap ordered by deadline, ties broken by insertion
// order, so two timers scheduled for the same instant still fire in the
// order they were added rather than in whatever order the heap happens to
// settle on.
type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// timerWheel owns the timer heap and an id->entry index for O(log n)
// cancellation (§4.6: "Cancellation is O(log n) or O(1) ... both
// acceptable").
type timerWheel struct {
	heap    timerHeap
	byID    map[TimerID]*timerEntry
	nextID  TimerID
	nextSeq uint64
}

func newTimerWheel() *timerWheel {
	return &timerWheel{byID: make(map[TimerID]*timerEntry)}
}

func (w *timerWheel) add(deadline time.Time, cb func()) TimerID {
	w.nextID++
	w.nextSeq++
	e := &timerEntry{
		id:       w.nextID,
		deadline: deadline,
		seq:      w.nextSeq,
		callback: cb,
	}
	heap.Push(&w.heap, e)
	w.byID[e.id] = e
	return e.id
}

// cancel removes the timer if it hasn't fired yet. Returns false if the id
// is unknown or already fired/cancelled (§4.6).
func (w *timerWheel) cancel(id TimerID) bool {
	e, ok := w.byID[id]
	if !ok || e.cancelled {
		return false
	}
	e.cancelled = true
	delete(w.byID, id)
	if e.index >= 0 {
		heap.Remove(&w.heap, e.index)
	}
	return true
}

// due pops and returns every timer whose deadline is <= now, in deadline
// (then insertion) order, removing each before returning (§4.1 phase 3:
// "removing each after it fires" — popped here so the caller may run the
// callback, which is free to schedule more work, without re-ordering
// already-popped entries).
func (w *timerWheel) due(now time.Time) []*timerEntry {
	var fired []*timerEntry
	for w.heap.Len() > 0 {
		e := w.heap[0]
		if e.deadline.After(now) {
			break
		}
		heap.Pop(&w.heap)
		delete(w.byID, e.id)
		if !e.cancelled {
			fired = append(fired, e)
		}
	}
	return fired
}

// nextDelay returns max(0, min_deadline-now), or (0, false) if no timer is
// pending (§4.6).
func (w *timerWheel) nextDelay(now time.Time) (time.Duration, bool) {
	if w.heap.Len() == 0 {
		return 0, false
	}
	d := w.heap[0].deadline.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

func (w *timerWheel) len() int {
	return w.heap.Len()
}
