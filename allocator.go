package keydir

import "sync/atomic"

// pageAt resolves a unified page index to its page, whichever pool it
// lives in.
func (kd *Keydir) pageAt(idx uint32) *page {
	if idx < uint32(len(kd.mem.pages)) {
		return kd.mem.at(idx)
	}
	return kd.swap.at(idx)
}

func (kd *Keydir) memPageCount() uint32 {
	return uint32(len(kd.mem.pages))
}

// allocatePage returns a fresh overflow page: memory preferred, swap as
// fallback (page allocator responsibility). The returned page is
// locked.
func (kd *Keydir) allocatePage() (*page, Code) {
	if p, ok := kd.mem.allocate(); ok {
		return p, Ok
	}
	if p, ok := kd.swap.allocate(); ok {
		return p, Ok
	}
	return nil, NoMem
}

// reclaim evicts a borrower from an idle base page so the page's own hash
// slot can host a brand-new chain .
//
// base is locked on entry and remains locked (now carrying no data) on
// return. base.prev identifies the borrower's chain; reclaim relinks that
// chain's predecessor onto a freshly allocated replacement page carrying a
// copy of base's contents, then frees base of its former data.
func (kd *Keydir) reclaim(base *page) Code {
	prevIdx := base.prev
	if prevIdx == maxPageIdx {
		// A borrowed page always has a prev pointer into its owner's
		// chain; this would mean the bookkeeping lied about is_borrowed.
		return restart
	}
	prev := kd.pageAt(prevIdx)

	if !prev.mu.TryTake() {
		// Lock order here runs owner-chain-order (prev before base); drop
		// base and re-acquire in that order to avoid deadlocking against
		// an operation walking the same chain forward.
		base.mu.Unlock()
		prev.mu.Lock()
		base.mu.Lock()
		if base.prev != prevIdx || atomic.LoadUint32(&base.isBorrowed) == 0 {
			prev.mu.Unlock()
			return restart
		}
	}

	repl, code := kd.allocatePage()
	if code != Ok {
		prev.mu.Unlock()
		return code
	}
	if repl.selfIdx < kd.memPageCount() {
		repl.isBorrowed = 1
	}

	var succ *page
	succIdx := base.next
	if succIdx != maxPageIdx {
		succ = kd.pageAt(succIdx)
		succ.mu.Lock()
		succ.prev = repl.selfIdx
	}

	copy(repl.data, base.data)
	repl.prev = base.prev
	repl.next = base.next
	repl.dataSize = base.dataSize
	repl.deadBytes = base.deadBytes

	prev.next = repl.selfIdx

	if succ != nil {
		succ.mu.Unlock()
	}
	prev.mu.Unlock()
	repl.mu.Unlock()

	base.reset()
	atomic.StoreUint32(&base.isBorrowed, 0)

	return Ok
}

// spill relocates a base memory page's resident chain data onto a single
// freshly allocated swap page (the "alt page"); the chain then continues
// to grow on swap. The base page keeps only the altIdx pointer to the alt
// page: it is not pushed back onto the memory free list, so it is not lent
// to other chains afterwards.
//
// Trigger: write_prep needs to grow a not-yet-spilled base page past its
// own page capacity while the memory free list is empty.
//
// it.pages[0] is replaced by the new alt page; base is unlocked and
// dropped from the iterator since it plays no further part in this
// operation.
func (kd *Keydir) spill(it *scanIter) Code {
	base := it.pages[0]

	alt, ok := kd.swap.allocate()
	if !ok {
		return NoMem
	}

	copy(alt.data, base.data)
	alt.dataSize = base.dataSize
	alt.next = base.next
	alt.prev = maxPageIdx

	base.altIdx = alt.selfIdx
	base.dataSize = 0
	base.next = maxPageIdx

	it.pages[0] = alt
	base.mu.Unlock()
	return Ok
}
