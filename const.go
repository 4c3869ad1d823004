package keydir

// Sentinel values. They double as "no page"/"no bound"/"deleted"/
// "synthetic id" markers throughout the codec and the allocator, all
// centralized in one block.
const (
	// maxPageIdx names "no page" in the unified page index space (0..N
	// names memory pages, N..N+S names swap pages).
	maxPageIdx = ^uint32(0)

	// maxEpoch requests "no bound" - the latest version.
	maxEpoch = ^uint64(0)

	// maxOffset marks a tombstone entry.
	maxOffset = ^uint64(0)

	// maxFileID is stamped into tombstone entries.
	maxFileID = ^uint32(0)
)

const (
	// pageSize is the fixed page size for both memory and swap pages.
	pageSize = 4096

	// entryHeaderSize is the fixed entry header layout's on-disk size.
	entryHeaderSize = 36

	// entryAlign is the byte boundary every record is padded to.
	entryAlign = 8

	// freeListStride is the strided free-list thread order: step 16,
	// wrapping with an increasing start offset, to spread concurrently
	// borrowed base pages across cache lines instead of handing out
	// consecutive array slots.
	freeListStride = 16

	// swapFileName is the fixed basename of the swap-file backing store.
	swapFileName = "bitcask.swap"
)

// paddedEntrySize returns the on-chain footprint of an entry carrying
// keySize key bytes, rounded up to entryAlign: every record is padded to
// an 8-byte boundary.
func paddedEntrySize(keySize uint32) uint32 {
	n := entryHeaderSize + keySize
	return (n + entryAlign - 1) &^ (entryAlign - 1)
}
