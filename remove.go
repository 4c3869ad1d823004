package keydir

// Remove deletes key. Same structure as Put, but on success it leaves
// behind a tombstone (offset == maxOffset) rather than a live value. A
// nonzero oldFileID arms the same CAS precondition as Put.
func (kd *Keydir) Remove(key []byte, oldFileID uint32, oldOffset uint64) Code {
	for {
		epoch := kd.nextEpoch()

		base := kd.bucket(key)
		base.mu.Lock()
		head := kd.lockChainHead(base)
		it := newScanIter(kd, head)

		found, primaryOff, primary, code := kd.findPrimary(it, key)
		if code == restart {
			it.release()
			debugf("remove: restart during findPrimary for key %x", key)
			continue
		}
		if code != Ok {
			it.release()
			return code
		}

		if !found {
			it.release()
			if oldFileID != 0 {
				return Modified
			}
			return Ok
		}

		if oldFileID != 0 && (primary.fileID != oldFileID || primary.offset != oldOffset) {
			it.release()
			return Modified
		}

		if kd.watermark() > primary.epoch {
			newHdr := primary
			newHdr.offset = maxOffset
			newHdr.epoch = epoch
			it.writeAt(primaryOff, encodeHeader(newHdr))
			it.release()
			return Ok
		}

		tombstone := Entry{
			FileID:    maxFileID,
			TotalSize: 0,
			Offset:    maxOffset,
			Timestamp: primary.timestamp,
		}
		newHdr, code := kd.appendVersion(it, primaryOff, primary, tombstone, epoch)
		if code == restart {
			it.release()
			debugf("remove: restart during appendVersion for key %x", key)
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
}
