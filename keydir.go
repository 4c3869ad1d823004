package keydir

import (
	"fmt"
	"sync/atomic"
)

// Options configures Init, grouped into a struct now that the parameter
// count has grown past three.
type Options struct {
	// BaseDir is the directory the swap file is created in.
	BaseDir string

	// NumPages is the fixed size of the in-memory hash table (N).
	NumPages uint32

	// InitialSwapPages is how many swap pages to mmap up front. Zero is
	// valid: the swap file grows lazily on first overflow.
	InitialSwapPages uint32

	// KeepSwapFile, if true, leaves the swap file on disk after creation
	// instead of unlinking it immediately.
	KeepSwapFile bool
}

// Keydir is the in-memory index of a Bitcask-style log store: a
// page-based hash table over a fixed memory pool, overflowing into a
// memory-mapped swap file, with epoch-versioned multi-value entries.
type Keydir struct {
	mem    *memPool
	swap   *swapFile
	fstats *fstatsTable

	epoch    uint64 // atomic: monotonically increasing version stamp
	minEpoch uint64 // atomic: watermark below which in-place overwrite is safe

	refcount int32 // atomic
}

// Init constructs a keydir per Options. NumPages must be at least 1.
func Init(opts Options) (*Keydir, error) {
	if opts.NumPages == 0 {
		return nil, fmt.Errorf("keydir: NumPages must be > 0")
	}
	if opts.BaseDir == "" {
		return nil, fmt.Errorf("keydir: BaseDir must be set")
	}

	mem := newMemPool(opts.NumPages)
	swap, err := newSwapFile(opts.BaseDir, opts.NumPages, opts.InitialSwapPages, opts.KeepSwapFile)
	if err != nil {
		return nil, err
	}

	return &Keydir{
		mem:    mem,
		swap:   swap,
		fstats: newFstatsTable(),
		// With no snapshot reader registered yet, minEpoch starts at
		// maxEpoch so every overwrite is eligible for in-place update;
		// absent any live snapshot, nothing constrains the writer.
		minEpoch: maxEpoch,
		refcount: 1,
	}, nil
}

// Acquire increments the keydir's refcount. Pairs with Release.
func (kd *Keydir) Acquire() {
	atomic.AddInt32(&kd.refcount, 1)
}

// Release decrements the keydir's refcount, tearing down the swap file's
// mappings and descriptor once it reaches zero.
func (kd *Keydir) Release() error {
	if atomic.AddInt32(&kd.refcount, -1) > 0 {
		return nil
	}
	return kd.swap.close()
}

// SetMinEpoch updates the watermark below which put/remove may overwrite a
// record in place instead of appending a new version. It is written by an
// external fold/snapshot-iterator subsystem and only ever read by
// put/remove.
func (kd *Keydir) SetMinEpoch(e uint64) {
	atomic.StoreUint64(&kd.minEpoch, e)
}

func (kd *Keydir) nextEpoch() uint64 {
	return atomic.AddUint64(&kd.epoch, 1)
}

func (kd *Keydir) watermark() uint64 {
	return atomic.LoadUint64(&kd.minEpoch)
}

func (kd *Keydir) bucket(key []byte) *page {
	h := hashKey(key) % uint32(len(kd.mem.pages))
	return kd.mem.at(h)
}
