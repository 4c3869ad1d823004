package keydir

import "encoding/binary"

// entryHeader is the fixed 36-byte record header:
// file_id(4) total_size(4) epoch(8) offset(8) timestamp(4) next(4) key_size(4).
//
// key_size is nonzero only on a record's primary (bucket-visible) slot;
// older versions appended to the chain carry key_size 0 and are reached
// only by following next from the primary.
type entryHeader struct {
	fileID    uint32
	totalSize uint32
	epoch     uint64
	offset    uint64
	timestamp uint32
	verNext   uint32
	keySize   uint32
}

func encodeHeader(h entryHeader) []byte {
	buf := make([]byte, entryHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.fileID)
	binary.LittleEndian.PutUint32(buf[4:8], h.totalSize)
	binary.LittleEndian.PutUint64(buf[8:16], h.epoch)
	binary.LittleEndian.PutUint64(buf[16:24], h.offset)
	binary.LittleEndian.PutUint32(buf[24:28], h.timestamp)
	binary.LittleEndian.PutUint32(buf[28:32], h.verNext)
	binary.LittleEndian.PutUint32(buf[32:36], h.keySize)
	return buf
}

func decodeHeader(buf []byte) entryHeader {
	return entryHeader{
		fileID:    binary.LittleEndian.Uint32(buf[0:4]),
		totalSize: binary.LittleEndian.Uint32(buf[4:8]),
		epoch:     binary.LittleEndian.Uint64(buf[8:16]),
		offset:    binary.LittleEndian.Uint64(buf[16:24]),
		timestamp: binary.LittleEndian.Uint32(buf[24:28]),
		verNext:   binary.LittleEndian.Uint32(buf[28:32]),
		keySize:   binary.LittleEndian.Uint32(buf[32:36]),
	}
}

// Entry is the value type handed back by Get and accepted by Put: a
// pointer into a caller-managed data file, not the record's payload
// itself - the keydir indexes a log store, it does not store values.
type Entry struct {
	Key       []byte
	FileID    uint32
	TotalSize uint32
	Offset    uint64
	Timestamp uint32
	Epoch     uint64
}

func entryFromHeader(h entryHeader, key []byte) Entry {
	return Entry{
		Key:       key,
		FileID:    h.fileID,
		TotalSize: h.totalSize,
		Offset:    h.offset,
		Timestamp: h.timestamp,
		Epoch:     h.epoch,
	}
}

// tombstone reports whether h represents a deletion marker: a key is
// deleted iff its current version has offset == maxOffset.
func (h entryHeader) tombstone() bool {
	return h.offset == maxOffset
}
