package keydir

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// swapSegment is one mmap-ed growth of the swap file: base is the segment's
// first page expressed as a swap-local index (0 names the first page of
// the whole swap file), and pages holds one entry per mapped page.
type swapSegment struct {
	base  uint32
	pages []page
}

// swapFile is the mmap-backed overflow page pool. Pages are mapped one
// 4 KiB region at a time per segment, rather than with one mmap call over
// the whole file, so a segment can be grown without disturbing earlier
// mappings.
type swapFile struct {
	growMu sync.Mutex // serializes doubling growth; separate from any page latch

	file   *os.File
	path   string
	keep   bool
	offset uint32 // the unified index of swap-local page 0 (== memPool size)

	segments []*swapSegment
	numPages uint32 // atomic: total pages currently mapped, across all segments

	free freeList
}

func newSwapFile(baseDir string, offset uint32, initialPages uint32, keep bool) (*swapFile, error) {
	path := filepath.Join(baseDir, swapFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("keydir: open swap file: %w", err)
	}

	sf := &swapFile{file: f, path: path, keep: keep, offset: offset}
	sf.free.head = maxPageIdx

	if initialPages > 0 {
		if _, err := sf.growSwap(0, initialPages); err != nil {
			f.Close()
			return nil, err
		}
	}

	if !keep {
		// Unlinking now, with the fd and mappings still live, leaves the
		// pages usable for the process lifetime without littering the
		// base directory afterward.
		if err := os.Remove(path); err != nil {
			warnf("keydir: could not unlink swap file %s: %v", path, err)
		}
	}

	return sf, nil
}

func (sf *swapFile) at(idx uint32) *page {
	local := idx - sf.offset
	for _, seg := range sf.segments {
		if local >= seg.base && local < seg.base+uint32(len(seg.pages)) {
			return &seg.pages[local-seg.base]
		}
	}
	return nil
}

func (sf *swapFile) nextFreeAt(idx uint32) *uint32 { return &sf.at(idx).nextFree }
func (sf *swapFile) isFreeAt(idx uint32) *uint32   { return &sf.at(idx).isFree }
func (sf *swapFile) lockAt(idx uint32) *pageLatch  { return &sf.at(idx).mu }

// growSwap doubles the swap file: it truncates to twice the current size
// and mmaps a new segment the same size as everything mapped so far (or
// `want` pages, for the very first growth). observedTotal guards against
// two callers racing to grow from the same stale total.
//
// A partial mmap failure - disk or address space exhausted partway
// through the new segment - truncates the segment at the first failing
// page and publishes however many pages did map; the caller treats one or
// more mapped pages as a successful (if short) growth.
func (sf *swapFile) growSwap(observedTotal uint32, want uint32) (uint32, error) {
	sf.growMu.Lock()
	defer sf.growMu.Unlock()

	if cur := atomic.LoadUint32(&sf.numPages); cur != observedTotal {
		return cur, nil // someone else already grew the file
	}

	if want == 0 {
		want = 1
	}
	newTotal := observedTotal + want
	if err := sf.file.Truncate(int64(newTotal) * pageSize); err != nil {
		return 0, fmt.Errorf("keydir: truncate swap file: %w", err)
	}

	seg := &swapSegment{base: observedTotal, pages: make([]page, 0, want)}
	var mapped uint32
	for i := uint32(0); i < want; i++ {
		fileOff := int64(observedTotal+i) * pageSize
		data, err := unix.Mmap(int(sf.file.Fd()), fileOff, pageSize,
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			warnf("keydir: swap mmap stopped after %d/%d pages: %v", mapped, want, err)
			break
		}
		p := page{
			data:     data,
			selfIdx:  sf.offset + observedTotal + i,
			prev:     maxPageIdx,
			next:     maxPageIdx,
			nextFree: maxPageIdx,
			altIdx:   maxPageIdx,
		}
		seg.pages = append(seg.pages, p)
		mapped++
	}
	if mapped == 0 {
		return 0, fmt.Errorf("keydir: swap mmap failed for all %d requested pages", want)
	}

	sf.segments = append(sf.segments, seg)
	atomic.StoreUint32(&sf.numPages, observedTotal+mapped)

	for start := uint32(0); start < freeListStride && start < mapped; start++ {
		for i := start; i < mapped; i += freeListStride {
			sf.free.push(sf, sf.offset+observedTotal+i)
		}
	}
	return mapped, nil
}

// allocate pops a swap page, growing the file whenever the free list is
// empty. It makes up to three pop attempts, growing the file after each
// failed one, to cover the rare race where a concurrent allocate already
// consumed the freshly grown segment.
func (sf *swapFile) allocate() (*page, bool) {
	for attempts := 0; attempts < 3; attempts++ {
		barrier()
		if idx, ok := sf.free.pop(sf); ok {
			return sf.at(idx), true
		}
		observed := atomic.LoadUint32(&sf.numPages)
		if _, err := sf.growSwap(observed, observed); err != nil {
			return nil, false
		}
	}
	return nil, false
}

// close tears down every mapping, truncates the swap file to zero bytes
// and closes its descriptor. Truncating on the way down (as opposed to
// only during growth) keeps a long-lived process from leaving a
// full-size swap file behind across restarts that reuse the same path.
func (sf *swapFile) close() error {
	for _, seg := range sf.segments {
		for i := range seg.pages {
			if err := unix.Munmap(seg.pages[i].data); err != nil {
				warnf("keydir: munmap swap page failed: %v", err)
			}
		}
	}
	if err := sf.file.Truncate(0); err != nil {
		warnf("keydir: truncate swap file to zero on close failed: %v", err)
	}
	return sf.file.Close()
}
