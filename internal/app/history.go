package app

import (
	"strconv"
	"time"

	"alertcore/internal/domain"
)

const metaOpenForMS = "open_for_ms"

// history is a bounded ring of lifecycle events.
// Guarded by the Manager mutex.
type history struct {
	events []domain.AlertEvent
	next   int
	full   bool
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = 1
	}
	return &history{events: make([]domain.AlertEvent, capacity)}
}

// add stores event, evicting the oldest entry when the ring is full.
func (h *history) add(event domain.AlertEvent) {
	h.events[h.next] = event
	h.next++
	if h.next == len(h.events) {
		h.next = 0
		h.full = true
	}
}

func (h *history) len() int {
	if h.full {
		return len(h.events)
	}
	return h.next
}

// last returns up to limit newest events in chronological order.
// Params: limit; non-positive returns everything retained.
// Returns: copied events.
func (h *history) last(limit int) []domain.AlertEvent {
	size := h.len()
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]domain.AlertEvent, 0, limit)
	start := h.next - limit
	if start < 0 {
		start += len(h.events)
	}
	for i := 0; i < limit; i++ {
		event := h.events[(start+i)%len(h.events)]
		event.Metadata = domain.CloneLabels(event.Metadata)
		out = append(out, event)
	}
	return out
}

// meanTimeToResolve averages open durations recorded on retained resolve events.
func (h *history) meanTimeToResolve() time.Duration {
	var (
		total time.Duration
		count int64
	)
	for i := 0; i < h.len(); i++ {
		event := h.events[i]
		if event.Type != domain.EventResolve {
			continue
		}
		raw, ok := event.Metadata[metaOpenForMS]
		if !ok {
			continue
		}
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		total += time.Duration(ms) * time.Millisecond
		count++
	}
	if count == 0 {
		return 0
	}
	return total / time.Duration(count)
}
