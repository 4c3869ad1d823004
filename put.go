package keydir

import (
	"bytes"
	"math"
	"sync/atomic"
)

// findPrimary scans the chain held by it for key's bucket-visible record
// (the slot with key_size > 0 matching key), returning its header and
// byte offset. Unlike scanToEpoch it never follows a version chain: put
// and remove always act on the newest version, which by construction is
// always the primary slot itself.
func (kd *Keydir) findPrimary(it *scanIter, key []byte) (found bool, offset uint32, hdr entryHeader, code Code) {
	size := it.pages[0].dataSize
	var off uint32

	for off < size {
		if c := it.ensure(off+entryHeaderSize, false); c != Ok {
			return false, 0, entryHeader{}, c
		}
		h := decodeHeader(it.readAt(off, entryHeaderSize))
		stride := paddedEntrySize(h.keySize)

		if h.keySize > 0 {
			if c := it.ensure(off+entryHeaderSize+h.keySize, false); c != Ok {
				return false, 0, entryHeader{}, c
			}
			k := it.readAt(off+entryHeaderSize, h.keySize)
			if bytes.Equal(k, key) {
				return true, off, h, Ok
			}
		}
		off += stride
	}
	return false, 0, entryHeader{}, Ok
}

// writePrep implements write_prep: it occupies an idle base
// page, reclaims a borrowed one, spills to swap under memory pressure,
// and finally extends the chain so it can hold size additional bytes at
// its current end, returning the offset the caller should write at.
func (kd *Keydir) writePrep(it *scanIter, size uint32) (uint32, Code) {
	head := it.pages[0]

	if head.isFree == 1 {
		head.isFree = 0
	} else if head.altIdx == maxPageIdx && head.dataSize == 0 && head.isBorrowed == 1 {
		if c := kd.reclaim(head); c != Ok {
			return 0, c
		}
		head = it.pages[0]
	}

	offset := head.dataSize
	newSize := uint64(offset) + uint64(size)
	if newSize > math.MaxUint32 {
		return 0, NoMem
	}

	if head.altIdx == maxPageIdx && head.selfIdx < kd.memPageCount() &&
		newSize > pageSize && len(it.pages) == 1 {
		if atomic.LoadUint32(&kd.mem.free.head) == maxPageIdx {
			if c := kd.spill(it); c != Ok {
				return 0, c
			}
			head = it.pages[0]
		}
	}

	if c := it.ensure(uint32(newSize), true); c != Ok {
		return 0, c
	}
	head.dataSize = uint32(newSize)
	return offset, Ok
}

// appendVersion relocates the value currently held at primaryOff (primary)
// into a newly appended, key-less slot at the end of the chain, linking it
// via verNext, and returns the header that should now be written at
// primaryOff to make newEntry/newEpoch the visible version: the primary
// slot always holds the newest value, and the superseded value moves to
// the tail.
func (kd *Keydir) appendVersion(it *scanIter, primaryOff uint32, primary entryHeader, newEntry Entry, newEpoch uint64) (entryHeader, Code) {
	slotSize := paddedEntrySize(0)
	slotOff, code := kd.writePrep(it, slotSize)
	if code != Ok {
		return entryHeader{}, code
	}

	old := primary
	old.keySize = 0
	it.writeAt(slotOff, encodeHeader(old))

	newHdr := entryHeader{
		fileID:    newEntry.FileID,
		totalSize: newEntry.TotalSize,
		epoch:     newEpoch,
		offset:    newEntry.Offset,
		timestamp: newEntry.Timestamp,
		verNext:   slotOff,
		keySize:   primary.keySize,
	}
	return newHdr, Ok
}

// Put inserts or overwrites key's value. A nonzero oldFileID arms the CAS
// precondition (file_id, offset) against the key's current version.
func (kd *Keydir) Put(e Entry, oldFileID uint32, oldOffset uint64) Code {
	for {
		epoch := kd.nextEpoch()

		base := kd.bucket(e.Key)
		base.mu.Lock()
		head := kd.lockChainHead(base)
		it := newScanIter(kd, head)

		found, primaryOff, primary, code := kd.findPrimary(it, e.Key)
		if code == restart {
			it.release()
			debugf("put: restart during findPrimary for key %x", e.Key)
			continue
		}
		if code != Ok {
			it.release()
			return code
		}

		if found {
			if oldFileID != 0 && (primary.fileID != oldFileID || primary.offset != oldOffset) {
				it.release()
				return Modified
			}

			if kd.watermark() > primary.epoch {
				newHdr := primary
				newHdr.fileID = e.FileID
				newHdr.totalSize = e.TotalSize
				newHdr.offset = e.Offset
				newHdr.timestamp = e.Timestamp
				newHdr.epoch = epoch
				it.writeAt(primaryOff, encodeHeader(newHdr))
				it.release()
				return Ok
			}

			newHdr, code := kd.appendVersion(it, primaryOff, primary, e, epoch)
			if code == restart {
				it.release()
				debugf("put: restart during appendVersion for key %x", e.Key)
				continue
			}
			if code != Ok {
				it.release()
				return code
			}
			it.writeAt(primaryOff, encodeHeader(newHdr))
			it.release()
			return Ok
		}

		if oldFileID != 0 {
			it.release()
			return Modified
		}

		size := paddedEntrySize(uint32(len(e.Key)))
		offset, code := kd.writePrep(it, size)
		if code == restart {
			it.release()
			debugf("put: restart during writePrep for key %x", e.Key)
			continue
		}
		if code != Ok {
			it.release()
			return code
		}

		newHdr := entryHeader{
			fileID:    e.FileID,
			totalSize: e.TotalSize,
			epoch:     epoch,
			offset:    e.Offset,
			timestamp: e.Timestamp,
			verNext:   0,
			keySize:   uint32(len(e.Key)),
		}
		it.writeAt(offset, encodeHeader(newHdr))
		it.writeAt(offset+entryHeaderSize, e.Key)
		it.release()
		return Ok
	}
}
