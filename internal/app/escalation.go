package app

import (
	"container/heap"
	"time"
)

// escalationTimer is one armed escalation.
type escalationTimer struct {
	alertID string
	fireAt  time.Time
	index   int
}

// escalationHeap orders timers by fire time.
type escalationHeap []*escalationTimer

func (h escalationHeap) Len() int { return len(h) }

func (h escalationHeap) Less(i, j int) bool {
	if h[i].fireAt.Equal(h[j].fireAt) {
		return h[i].alertID < h[j].alertID
	}
	return h[i].fireAt.Before(h[j].fireAt)
}

func (h escalationHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *escalationHeap) Push(x any) {
	timer := x.(*escalationTimer)
	timer.index = len(*h)
	*h = append(*h, timer)
}

func (h *escalationHeap) Pop() any {
	old := *h
	n := len(old)
	timer := old[n-1]
	old[n-1] = nil
	timer.index = -1
	*h = old[:n-1]
	return timer
}

// escalationQueue is a min-heap of escalation timers with cancellation by alert id.
// At most one timer per alert. Guarded by the Manager mutex.
type escalationQueue struct {
	timers escalationHeap
	byID   map[string]*escalationTimer
}

func newEscalationQueue() *escalationQueue {
	return &escalationQueue{byID: make(map[string]*escalationTimer)}
}

// arm schedules alert escalation, replacing an existing timer of the same alert.
func (q *escalationQueue) arm(alertID string, fireAt time.Time) {
	if timer, ok := q.byID[alertID]; ok {
		timer.fireAt = fireAt
		heap.Fix(&q.timers, timer.index)
		return
	}
	timer := &escalationTimer{alertID: alertID, fireAt: fireAt}
	heap.Push(&q.timers, timer)
	q.byID[alertID] = timer
}

// cancel drops the pending timer of alertID.
// Returns: true when a timer was removed.
func (q *escalationQueue) cancel(alertID string) bool {
	timer, ok := q.byID[alertID]
	if !ok {
		return false
	}
	heap.Remove(&q.timers, timer.index)
	delete(q.byID, alertID)
	return true
}

// popDue removes and returns alert ids whose timers fire at or before now, earliest first.
func (q *escalationQueue) popDue(now time.Time) []string {
	var due []string
	for len(q.timers) > 0 && !q.timers[0].fireAt.After(now) {
		timer := heap.Pop(&q.timers).(*escalationTimer)
		delete(q.byID, timer.alertID)
		due = append(due, timer.alertID)
	}
	return due
}

func (q *escalationQueue) pending(alertID string) (time.Time, bool) {
	timer, ok := q.byID[alertID]
	if !ok {
		return time.Time{}, false
	}
	return timer.fireAt, true
}

func (q *escalationQueue) len() int {
	return len(q.timers)
}
