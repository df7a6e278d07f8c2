package clock

import "sync/atomic"

// Seq is a monotonic logical counter. Every status event carries the
// next value so listeners can order events without relying on wall time.
//
// Seq is safe for concurrent use.
type Seq struct {
	n atomic.Int64
}

// NewSeq returns a counter starting at 0.
func NewSeq() *Seq {
	return &Seq{}
}

// Next increments the counter and returns the new value.
func (s *Seq) Next() int64 {
	return s.n.Add(1)
}

// Current returns the last value handed out.
func (s *Seq) Current() int64 {
	return s.n.Load()
}
