// internal/norm/sequence.go
package norm

import "sync"

// SequenceAssigner owns the per-symbol monotonic counters used when a
// venue supplies no sequence number. Read-then-increment happens under
// one lock, so concurrent callers for the same symbol observe a
// strictly increasing, gap-free series starting at 1.
//
// Counters live only as long as the process; sequence numbers are not
// stable across restarts.
type SequenceAssigner struct {
	mu   sync.Mutex
	last map[string]uint64
}

func NewSequenceAssigner() *SequenceAssigner {
	return &SequenceAssigner{last: make(map[string]uint64)}
}

// Next increments and returns the counter for symbol.
func (a *SequenceAssigner) Next(symbol string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last[symbol]++
	return a.last[symbol]
}
