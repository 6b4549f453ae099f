package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccumulatorIsSafeForConcurrentUse(t *testing.T) {
	a := NewAccumulator()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Accumulate(2)
		}()
	}
	wg.Wait()
	require.Equal(t, uint64(100), a.Size())
}

func TestScalePercent(t *testing.T) {
	require.Equal(t, 40, ScalePercent(0, 5, 40, 90))
	require.Equal(t, 50, ScalePercent(1, 5, 40, 90))
	require.Equal(t, 89, ScalePercent(999, 1000, 40, 90))
	require.Equal(t, 90, ScalePercent(5, 5, 40, 90))
	require.Equal(t, 40, ScalePercent(3, 0, 40, 90))
}
