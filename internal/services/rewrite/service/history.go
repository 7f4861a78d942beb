package service

import (
	"slices"

	"recycle/internal/reset"
	"recycle/internal/services/rewrite/domain"
)

var _ reset.Resetter = (*History)(nil)

// History keeps the hops applied during the current request, oldest dropped first
type History struct {
	trail []domain.Hop
	limit int
}

// NewHistory keeps at most limit hops; limit < 1 means 32
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = 32
	}
	return &History{limit: limit}
}

// Record appends hops
func (h *History) Record(hops ...domain.Hop) {
	h.trail = append(h.trail, hops...)
	if over := len(h.trail) - h.limit; over > 0 {
		h.trail = slices.Delete(h.trail, 0, over)
	}
}

// Trail returns a copy of the recorded hops
func (h *History) Trail() []domain.Hop { return slices.Clone(h.trail) }

// Len is the number of recorded hops
func (h *History) Len() int { return len(h.trail) }

// ResetState implements reset.Resetter; the backing array is kept
func (h *History) ResetState() error {
	clear(h.trail)
	h.trail = h.trail[:0]
	return nil
}
