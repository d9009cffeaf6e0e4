package predictor

import (
	"sync"

	"github.com/gomlx/treerun/pkg/core/entry"
)

// cacheLineEntries is the number of entries in a 64 bytes cache line.
const cacheLineEntries = uint64(64 / entry.Size)

// scratchStride returns the number of entries reserved per worker for numCol features: rounded up to
// a full cache line, so two workers never write to the same line.
func scratchStride(numCol uint64) uint64 {
	return (numCol + cacheLineEntries - 1) / cacheLineEntries * cacheLineEntries
}

// scratch is an arena of entries, sliced by worker: worker w owns [w*stride, w*stride+numCol).
//
// All entries are missing whenever the arena is not in use by a prediction.
type scratch struct {
	entries []entry.Entry
}

// workerSlice returns the entries owned by workerID.
func (s *scratch) workerSlice(workerID int, stride, numCol uint64) []entry.Entry {
	start := uint64(workerID) * stride
	return s.entries[start : start+numCol]
}

// scratchPool reuses the allocation of arenas across predictions. Only the allocation is reused:
// arenas are returned all-missing, so no row values ever cross predictions.
type scratchPool struct {
	pool sync.Pool
}

// get returns an arena with at least size entries, all missing.
func (sp *scratchPool) get(size uint64) *scratch {
	if s, ok := sp.pool.Get().(*scratch); ok && uint64(len(s.entries)) >= size {
		return s
	}
	return &scratch{entries: entry.NewSlice(int(size))}
}

// put returns a clean arena to the pool.
func (sp *scratchPool) put(s *scratch) {
	sp.pool.Put(s)
}
