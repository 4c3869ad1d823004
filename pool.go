package keydir

// memPool is the fixed-size array of N memory pages addressed directly by
// hash(key) % N. Pages never leave the array; "freeing" a page only
// threads it back onto the lock-free free list for reuse as overflow
// storage in some other chain.
type memPool struct {
	pages []page
	free  freeList
}

func newMemPool(n uint32) *memPool {
	mp := &memPool{pages: make([]page, n)}
	for i := range mp.pages {
		mp.pages[i] = *newPage(uint32(i))
	}
	mp.free.head = maxPageIdx
	mp.threadFreeList()
	return mp
}

// threadFreeList builds the initial free list in strided order (step 16,
// wrapping with an increasing start offset) so pages handed out to
// concurrently-growing chains land on different cache lines instead of in
// a consecutive run.
func (mp *memPool) threadFreeList() {
	n := uint32(len(mp.pages))
	for start := uint32(0); start < freeListStride && start < n; start++ {
		for idx := start; idx < n; idx += freeListStride {
			mp.free.push(mp, idx)
		}
	}
}

func (mp *memPool) nextFreeAt(idx uint32) *uint32 { return &mp.pages[idx].nextFree }
func (mp *memPool) isFreeAt(idx uint32) *uint32   { return &mp.pages[idx].isFree }
func (mp *memPool) lockAt(idx uint32) *pageLatch  { return &mp.pages[idx].mu }

func (mp *memPool) at(idx uint32) *page { return &mp.pages[idx] }

// allocate pops a page for use as overflow storage in some chain other
// than its own hash slot. The returned page is locked.
func (mp *memPool) allocate() (*page, bool) {
	idx, ok := mp.free.pop(mp)
	if !ok {
		return nil, false
	}
	return &mp.pages[idx], true
}
