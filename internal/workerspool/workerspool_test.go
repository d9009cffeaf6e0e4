package workerspool

import (
	"sync/atomic"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeamSize(t *testing.T) {
	pool := New()
	pool.SetMaxParallelism(8)
	assert.Equal(t, 8, pool.TeamSize(0, 1000))
	assert.Equal(t, 3, pool.TeamSize(3, 1000))
	assert.Equal(t, 8, pool.TeamSize(32, 1000))
	assert.Equal(t, 5, pool.TeamSize(0, 5))
	assert.Equal(t, 1, pool.TeamSize(0, 0))

	pool.SetMaxParallelism(0)
	assert.GreaterOrEqual(t, pool.MaxParallelism(), 1)
}

func TestStaticRange(t *testing.T) {
	for _, numItems := range []int64{0, 1, 7, 10, 1001} {
		for numWorkers := 1; numWorkers <= 9; numWorkers++ {
			var next int64
			for w := range numWorkers {
				begin, end := StaticRange(numItems, numWorkers, w)
				require.Equal(t, next, begin, "numItems=%d numWorkers=%d worker=%d", numItems, numWorkers, w)
				require.LessOrEqual(t, end-begin, numItems/int64(numWorkers)+1)
				require.GreaterOrEqual(t, end-begin, numItems/int64(numWorkers))
				next = end
			}
			require.Equal(t, numItems, next)
		}
	}
}

func TestRunTeam(t *testing.T) {
	const numItems = 1000
	seen := make([]atomic.Int32, numItems)
	var workers atomic.Int32
	RunTeam(4, numItems, func(workerID int, begin, end int64) {
		workers.Add(1)
		for i := begin; i < end; i++ {
			seen[i].Add(1)
		}
	})
	assert.Equal(t, int32(4), workers.Load())
	for i := range seen {
		require.Equal(t, int32(1), seen[i].Load(), "item %d", i)
	}
}

func TestRunTeamPanics(t *testing.T) {
	err := exceptions.TryCatch[error](func() {
		RunTeam(3, 30, func(workerID int, _, _ int64) {
			if workerID == 2 {
				panic("worker 2 failed")
			}
		})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker 2 failed")

	err = exceptions.TryCatch[error](func() { RunTeam(0, 1, func(int, int64, int64) {}) })
	require.Error(t, err)
}
