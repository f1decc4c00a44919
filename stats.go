package boundedring

import "sync/atomic"

// Stats is a point-in-time snapshot of a channel's counters.
type Stats struct {
	Produced uint64
	Consumed uint64

	// calls that found no free slot / no item and had to suspend
	ProduceWaits uint64
	ConsumeWaits uint64

	ProduceCancelled uint64
	ConsumeCancelled uint64

	// high-water mark of resident items, never above capacity
	MaxResident int
}

type stats struct {
	produced uint64
	consumed uint64

	produceWaits uint64
	consumeWaits uint64

	produceCancelled uint64
	consumeCancelled uint64

	maxResident int64
}

func (s *stats) done(op Op) {
	if op == OpProduce {
		atomic.AddUint64(&s.produced, 1)
	} else {
		atomic.AddUint64(&s.consumed, 1)
	}
}

func (s *stats) waited(op Op) {
	if op == OpProduce {
		atomic.AddUint64(&s.produceWaits, 1)
	} else {
		atomic.AddUint64(&s.consumeWaits, 1)
	}
}

func (s *stats) cancelled(op Op) {
	if op == OpProduce {
		atomic.AddUint64(&s.produceCancelled, 1)
	} else {
		atomic.AddUint64(&s.consumeCancelled, 1)
	}
}

// resident runs inside the critical section; atomics keep Stats readers race-free.
func (s *stats) resident(n int) {
	v := int64(n)
	for {
		cur := atomic.LoadInt64(&s.maxResident)
		if v <= cur || atomic.CompareAndSwapInt64(&s.maxResident, cur, v) {
			return
		}
	}
}

func (s *stats) snapshot() Stats {
	return Stats{
		Produced:         atomic.LoadUint64(&s.produced),
		Consumed:         atomic.LoadUint64(&s.consumed),
		ProduceWaits:     atomic.LoadUint64(&s.produceWaits),
		ConsumeWaits:     atomic.LoadUint64(&s.consumeWaits),
		ProduceCancelled: atomic.LoadUint64(&s.produceCancelled),
		ConsumeCancelled: atomic.LoadUint64(&s.consumeCancelled),
		MaxResident:      int(atomic.LoadInt64(&s.maxResident)),
	}
}
