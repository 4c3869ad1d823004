package keydir

import "testing"

func TestEncodeDecodeHeader_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		hdr  entryHeader
	}{
		{
			name: "full entry",
			hdr: entryHeader{
				fileID:    7,
				totalSize: 42,
				epoch:     99,
				offset:    100,
				timestamp: 1000,
				verNext:   0,
				keySize:   5,
			},
		},
		{
			name: "version slot with no key",
			hdr: entryHeader{
				fileID:    maxFileID,
				totalSize: 0,
				epoch:     1,
				offset:    maxOffset,
				timestamp: 5,
				verNext:   40,
				keySize:   0,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := encodeHeader(tt.hdr)
			if len(buf) != entryHeaderSize {
				t.Fatalf("encodeHeader() len = %d, want %d", len(buf), entryHeaderSize)
			}
			got := decodeHeader(buf)
			if got != tt.hdr {
				t.Errorf("decodeHeader(encodeHeader(h)) = %+v, want %+v", got, tt.hdr)
			}
		})
	}
}

func TestPaddedEntrySize(t *testing.T) {
	tests := []struct {
		keySize uint32
		want    uint32
	}{
		{0, 40},
		{1, 40},
		{4, 40},
		{5, 48},
		{12, 48},
	}
	for _, tt := range tests {
		if got := paddedEntrySize(tt.keySize); got != tt.want {
			t.Errorf("paddedEntrySize(%d) = %d, want %d", tt.keySize, got, tt.want)
		}
	}
}

func TestTombstone(t *testing.T) {
	live := entryHeader{offset: 100}
	if live.tombstone() {
		t.Errorf("live entry reported as tombstone")
	}
	dead := entryHeader{offset: maxOffset}
	if !dead.tombstone() {
		t.Errorf("tombstone entry not reported as tombstone")
	}
}
