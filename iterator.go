package keydir

// scanIter holds the ordered vector of locked pages spanning a chain's
// virtual byte stream, extended lazily as a scan or write needs to reach
// further into the chain.
//
// Go's append already gives a small inline backing array promoted to a
// larger heap array on growth, so no separate fixed-size-array-then-
// heap-array type is needed for the page vector.
type scanIter struct {
	kd    *Keydir
	pages []*page
}

func newScanIter(kd *Keydir, head *page) *scanIter {
	it := &scanIter{kd: kd, pages: make([]*page, 0, 8)}
	it.pages = append(it.pages, head)
	return it
}

// lockChainHead resolves base (already locked) to the true chain head:
// when base.altIdx names a swap page, that page is locked and becomes the
// head while base itself is unlocked. Lookups always lock the base page
// first, then follow altIdx before touching any data.
func (kd *Keydir) lockChainHead(base *page) *page {
	if base.altIdx == maxPageIdx {
		return base
	}
	alt := kd.pageAt(base.altIdx)
	alt.mu.Lock()
	base.mu.Unlock()
	return alt
}

// ensure extends the held page vector, locking pages already linked via
// next, until it covers the byte range [0, need). When the chain does not
// reach that far and grow is true, it allocates and links fresh pages
// (marking newly used memory pages borrowed) until it does. With grow
// false, running off the end of an existing chain is reported as restart:
// the caller's view of chain.size was stale.
func (it *scanIter) ensure(need uint32, grow bool) Code {
	for uint32(len(it.pages))*pageSize < need {
		last := it.pages[len(it.pages)-1]
		nIdx := last.next
		if nIdx == maxPageIdx {
			if !grow {
				return restart
			}
			np, code := it.kd.allocatePage()
			if code != Ok {
				return code
			}
			if np.selfIdx < it.kd.memPageCount() {
				np.isBorrowed = 1
			}
			np.prev = last.selfIdx
			np.next = maxPageIdx
			last.next = np.selfIdx
			it.pages = append(it.pages, np)
			continue
		}
		np := it.kd.pageAt(nIdx)
		np.mu.Lock()
		it.pages = append(it.pages, np)
	}
	return Ok
}

// readAt gathers n bytes starting at virtual offset off out of the held
// pages into a freshly allocated slice. Callers must ensure(off+n, false)
// first.
func (it *scanIter) readAt(off, n uint32) []byte {
	buf := make([]byte, n)
	pos, remain := off, n
	for remain > 0 {
		pIdx := pos / pageSize
		pOff := pos % pageSize
		chunk := pageSize - pOff
		if chunk > remain {
			chunk = remain
		}
		copy(buf[n-remain:], it.pages[pIdx].data[pOff:pOff+chunk])
		pos += chunk
		remain -= chunk
	}
	return buf
}

// writeAt scatters data into the held pages starting at virtual offset
// off. Callers must ensure(off+len(data), true) first.
func (it *scanIter) writeAt(off uint32, data []byte) {
	pos, remain := off, uint32(len(data))
	for remain > 0 {
		pIdx := pos / pageSize
		pOff := pos % pageSize
		chunk := pageSize - pOff
		if chunk > remain {
			chunk = remain
		}
		copy(it.pages[pIdx].data[pOff:pOff+chunk], data[uint32(len(data))-remain:])
		pos += chunk
		remain -= chunk
	}
}

// release unlocks every held page mutex in vector order - the same order
// they were acquired in, so this never creates a lock-order cycle against
// a concurrent operation walking the same chain.
func (it *scanIter) release() {
	for _, p := range it.pages {
		p.mu.Unlock()
	}
}
