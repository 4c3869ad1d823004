package keydir

import "bytes"

// Get looks up key as of epoch: pass maxEpoch for "latest". It returns
// Found with the matching entry, or NotFound.
func (kd *Keydir) Get(key []byte, epoch uint64) (Code, Entry) {
	base := kd.bucket(key)
	base.mu.Lock()
	head := kd.lockChainHead(base)

	it := newScanIter(kd, head)
	defer it.release()

	code, e := kd.scanChain(it, key, epoch)
	if code != Found {
		// Lookup never fails for reasons other than "not found"; an
		// internal restart token has no meaning to an external caller.
		return NotFound, Entry{}
	}
	return Found, e
}

// scanChain walks the records held by it record-by-record looking for key,
// and on a match resolves the version visible as of epoch. Used by Get;
// Put and Remove locate the key's primary slot with findPrimary instead.
func (kd *Keydir) scanChain(it *scanIter, key []byte, epoch uint64) (Code, Entry) {
	size := it.pages[0].dataSize
	var offset uint32

	for offset < size {
		if c := it.ensure(offset+entryHeaderSize, false); c != Ok {
			return c, Entry{}
		}
		hdr := decodeHeader(it.readAt(offset, entryHeaderSize))
		stride := paddedEntrySize(hdr.keySize)

		if hdr.keySize > 0 {
			if c := it.ensure(offset+entryHeaderSize+hdr.keySize, false); c != Ok {
				return c, Entry{}
			}
			k := it.readAt(offset+entryHeaderSize, hdr.keySize)
			if bytes.Equal(k, key) {
				found, resolved, keyBytes := kd.scanToEpoch(it, offset, hdr, epoch)
				if !found {
					return NotFound, Entry{}
				}
				if resolved.tombstone() {
					return NotFound, Entry{}
				}
				return Found, entryFromHeader(resolved, keyBytes)
			}
		}

		offset += stride
	}
	return NotFound, Entry{}
}

// scanToEpoch resolves the version of the record found at primaryOff
// (whose header is primary) visible as of epoch, walking the version
// chain via next in decreasing-epoch order when the primary itself is too
// new.
func (kd *Keydir) scanToEpoch(it *scanIter, primaryOff uint32, primary entryHeader, epoch uint64) (bool, entryHeader, []byte) {
	keyBytes := it.readAt(primaryOff+entryHeaderSize, primary.keySize)

	if primary.epoch <= epoch {
		return true, primary, keyBytes
	}

	cur := primary
	for cur.verNext != 0 {
		off := cur.verNext
		if c := it.ensure(off+entryHeaderSize, false); c != Ok {
			return false, entryHeader{}, nil
		}
		cur = decodeHeader(it.readAt(off, entryHeaderSize))
		if cur.epoch <= epoch {
			return true, cur, keyBytes
		}
	}
	return false, entryHeader{}, nil
}
