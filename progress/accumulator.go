package progress

import (
	"math"
	"sync/atomic"
)

// Accumulator counts finished work from concurrent goroutines
type Accumulator struct {
	size uint64
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

func (a *Accumulator) Size() uint64 {
	return atomic.LoadUint64(&a.size)
}

func (a *Accumulator) Accumulate(size uint64) uint64 {
	return atomic.AddUint64(&a.size, size)
}

// ScalePercent maps count/size onto the [start, end] percent range of a stage.
// It never reaches end until count == size.
func ScalePercent(count, size uint64, start, end int) int {
	if size == 0 || start >= end {
		return start
	}
	fraction := calcProgress(count, size)
	return start + int(math.Floor(fraction*float64(end-start)))
}

func calcProgress(count, size uint64) (val float64) {
	if count >= size {
		return 1
	}
	val = float64(count) / float64(size)
	val = math.Round(val*1000) / 1000
	val = math.Min(val, 0.99)
	return
}
