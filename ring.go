package boundedring

// ring is the storage behind a Channel: a fixed slice of slots plus the write
// and read cursors. It does no synchronization of its own; every method must
// run inside the channel's critical section.
type ring[T any] struct {
	slots []T
	wpos  int // next slot to write, in [0, len(slots))
	rpos  int // next slot to read, in [0, len(slots))

	// logical positions, never wrapped. writes-reads is the resident count.
	writes uint64
	reads  uint64
}

func newRing[T any](capacity int) ring[T] {
	return ring[T]{slots: make([]T, capacity)}
}

// put stores v at the write cursor and advances it.
// Returns the slot index and the logical position v was written at.
func (r *ring[T]) put(v T) (int, uint64) {
	idx, seq := r.wpos, r.writes
	r.slots[idx] = v
	r.wpos++
	if r.wpos == len(r.slots) {
		r.wpos = 0
	}
	r.writes++
	return idx, seq
}

// take removes the item at the read cursor and advances it.
// The slot is cleared so the ring does not pin consumed values for the GC.
func (r *ring[T]) take() (T, int, uint64) {
	var zero T
	idx, seq := r.rpos, r.reads
	v := r.slots[idx]
	r.slots[idx] = zero
	r.rpos++
	if r.rpos == len(r.slots) {
		r.rpos = 0
	}
	r.reads++
	return v, idx, seq
}

func (r *ring[T]) resident() int {
	return int(r.writes - r.reads)
}
