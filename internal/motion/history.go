package motion

import "github.com/ayusman/yubimoji/internal/hand"

// DefaultHistorySize is the number of hand positions kept for trajectory analysis.
const DefaultHistorySize = 12

// History is a fixed-capacity FIFO of hand positions backed by a ring buffer.
// Pushing onto a full history evicts the oldest entry.
type History struct {
	buf  []hand.Point3D
	next int // write index
	size int
}

// NewHistory returns an empty history holding at most capacity positions.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{buf: make([]hand.Point3D, capacity)}
}

// Cap returns the capacity of the history.
func (h *History) Cap() int { return len(h.buf) }

// Len returns the number of stored positions.
func (h *History) Len() int { return h.size }

// Push appends p, evicting the oldest position when full.
func (h *History) Push(p hand.Point3D) {
	h.buf[h.next] = p
	h.next = (h.next + 1) % len(h.buf)
	if h.size < len(h.buf) {
		h.size++
	}
}

// Fill replaces every slot with p, leaving the history full.
func (h *History) Fill(p hand.Point3D) {
	for i := range h.buf {
		h.buf[i] = p
	}
	h.next = 0
	h.size = len(h.buf)
}

// Clear empties the history.
func (h *History) Clear() {
	h.next = 0
	h.size = 0
}

// At returns the i-th stored position, 0 being the oldest.
func (h *History) At(i int) hand.Point3D {
	if i < 0 || i >= h.size {
		return hand.Point3D{}
	}
	start := (h.next - h.size + len(h.buf)) % len(h.buf)
	return h.buf[(start+i)%len(h.buf)]
}

// Mean averages positions in the half-open range [lo, hi), clamped to the
// stored length. An empty range yields the zero point.
func (h *History) Mean(lo, hi int) hand.Point3D {
	if lo < 0 {
		lo = 0
	}
	if hi > h.size {
		hi = h.size
	}
	if hi <= lo {
		return hand.Point3D{}
	}

	var sum hand.Point3D
	for i := lo; i < hi; i++ {
		p := h.At(i)
		sum.X += p.X
		sum.Y += p.Y
		sum.Z += p.Z
	}
	n := float64(hi - lo)
	return hand.Point3D{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}
}

// Snapshot copies the stored positions, oldest first.
func (h *History) Snapshot() []hand.Point3D {
	out := make([]hand.Point3D, h.size)
	for i := range out {
		out[i] = h.At(i)
	}
	return out
}
