package pipe

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallel_PreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	results := Parallel(items, func(n int) int { return n * n }, 3)
	assert.Equal(t, []int{1, 4, 9, 16, 25, 36, 49, 64}, results)
}

func TestParallel_BoundsConcurrency(t *testing.T) {
	var current, max int32
	items := make([]int, 20)

	Parallel(items, func(int) int {
		n := atomic.AddInt32(&current, 1)
		for {
			old := atomic.LoadInt32(&max)
			if n <= old || atomic.CompareAndSwapInt32(&max, old, n) {
				break
			}
		}
		atomic.AddInt32(&current, -1)
		return 0
	}, 4)

	assert.LessOrEqual(t, int(max), 4)
}

func TestParallel_EmptyInput(t *testing.T) {
	results := Parallel([]int{}, func(n int) int { return n }, 4)
	assert.Empty(t, results)
}

func TestParallel_ZeroConcurrencyUsesDefault(t *testing.T) {
	results := Parallel([]int{1, 2, 3}, func(n int) int { return n + 1 }, 0)
	assert.Equal(t, []int{2, 3, 4}, results)
}
