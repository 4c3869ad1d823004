package keydir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestKeydir(t *testing.T, numPages uint32) *Keydir {
	t.Helper()
	kd, err := Init(Options{
		BaseDir:          t.TempDir(),
		NumPages:         numPages,
		InitialSwapPages: 0,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = kd.Release() })
	return kd
}

func TestPutGet_Basic(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		entry Entry
	}{
		{
			name: "simple record",
			key:  "hello",
			entry: Entry{
				FileID:    7,
				Offset:    100,
				TotalSize: 42,
				Timestamp: 1000,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kd := newTestKeydir(t, 16)
			e := tt.entry
			e.Key = []byte(tt.key)

			require.Equal(t, Ok, kd.Put(e, 0, 0))

			code, got := kd.Get([]byte(tt.key), maxEpoch)
			require.Equal(t, Found, code)
			require.Equal(t, tt.entry.FileID, got.FileID)
			require.Equal(t, tt.entry.Offset, got.Offset)
			require.Equal(t, tt.entry.TotalSize, got.TotalSize)
			require.Equal(t, tt.entry.Timestamp, got.Timestamp)
		})
	}
}

// Scenario 2: overwrite without an outstanding snapshot stays a single
// in-place record.
func TestPut_OverwriteInPlace(t *testing.T) {
	kd := newTestKeydir(t, 16)
	key := []byte("hello")

	require.Equal(t, Ok, kd.Put(Entry{Key: key, FileID: 7, Offset: 100, TotalSize: 42, Timestamp: 1000}, 0, 0))
	require.Equal(t, Ok, kd.Put(Entry{Key: key, FileID: 7, Offset: 200, TotalSize: 42, Timestamp: 1001}, 0, 0))

	code, got := kd.Get(key, maxEpoch)
	require.Equal(t, Found, code)
	require.Equal(t, uint64(200), got.Offset)

	base := kd.bucket(key)
	require.Equal(t, paddedEntrySize(uint32(len(key))), base.dataSize, "in-place update must not grow the chain")
}

// Scenario 3: once a fold pins min_epoch, a subsequent overwrite must
// version instead of clobbering.
func TestPut_VersionsUnderSnapshot(t *testing.T) {
	kd := newTestKeydir(t, 16)
	key := []byte("k")

	require.Equal(t, Ok, kd.Put(Entry{Key: key, FileID: 1, Offset: 10, TotalSize: 1, Timestamp: 1}, 0, 0))

	kd.SetMinEpoch(1)
	e0 := kd.epoch

	require.Equal(t, Ok, kd.Put(Entry{Key: key, FileID: 1, Offset: 20, TotalSize: 1, Timestamp: 2}, 0, 0))

	codeOld, gotOld := kd.Get(key, e0)
	require.Equal(t, Found, codeOld)
	require.Equal(t, uint64(10), gotOld.Offset)

	codeNew, gotNew := kd.Get(key, maxEpoch)
	require.Equal(t, Found, codeNew)
	require.Equal(t, uint64(20), gotNew.Offset)

	base := kd.bucket(key)
	require.Greater(t, base.dataSize, paddedEntrySize(uint32(len(key))), "versioned update must grow the chain")
}

// Scenario 4: CAS conflict leaves state untouched.
func TestPut_CASConflict(t *testing.T) {
	kd := newTestKeydir(t, 16)
	key := []byte("k")

	require.Equal(t, Ok, kd.Put(Entry{Key: key, FileID: 1, Offset: 10}, 0, 0))
	require.Equal(t, Ok, kd.Put(Entry{Key: key, FileID: 1, Offset: 20}, 0, 0))

	require.Equal(t, Modified, kd.Put(Entry{Key: key, FileID: 1, Offset: 30}, 1, 10))

	_, got := kd.Get(key, maxEpoch)
	require.Equal(t, uint64(20), got.Offset)
}

// Scenario 5: tombstone then re-insert.
func TestRemove_Tombstone(t *testing.T) {
	kd := newTestKeydir(t, 16)
	key := []byte("k")

	require.Equal(t, Ok, kd.Put(Entry{Key: key, FileID: 1, Offset: 10}, 0, 0))
	require.Equal(t, Ok, kd.Remove(key, 0, 0))

	code, _ := kd.Get(key, maxEpoch)
	require.Equal(t, NotFound, code)

	require.Equal(t, Ok, kd.Put(Entry{Key: key, FileID: 2, Offset: 99}, 0, 0))
	code, got := kd.Get(key, maxEpoch)
	require.Equal(t, Found, code)
	require.Equal(t, uint64(99), got.Offset)
}

func TestRemove_NotFound(t *testing.T) {
	kd := newTestKeydir(t, 16)
	require.Equal(t, Ok, kd.Remove([]byte("never-there"), 0, 0))
	require.Equal(t, Modified, kd.Remove([]byte("never-there"), 1, 1))
}

// Scenario 6: a base page borrowed as another chain's overflow is later
// reclaimed so its own hash slot can host a fresh chain, and the
// borrower's data survives the reclaim.
func TestBorrowAndReclaim(t *testing.T) {
	kd := newTestKeydir(t, 4)

	type kv struct {
		key   string
		entry Entry
	}
	// Group candidate keys by hash slot, so one slot's chain can overflow
	// while the other slots are still idle.
	bySlot := make(map[uint32][][]byte)
	for i := 0; i < 4000; i++ {
		key := make([]byte, 50)
		key[0] = byte('a' + i%26)
		key[1] = byte('A' + (i/26)%26)
		key[2] = byte(i)
		key[3] = byte(i >> 8)
		slot := kd.bucket(key).selfIdx
		bySlot[slot] = append(bySlot[slot], key)
	}
	var written []kv
	put := func(key []byte) {
		i := len(written)
		e := Entry{Key: key, FileID: uint32(i), Offset: uint64(i) * 10, TotalSize: 8, Timestamp: uint32(i)}
		require.Equal(t, Ok, kd.Put(e, 0, 0))
		written = append(written, kv{string(key), e})
	}

	// 100 records of 88 bytes overflow slot 0's base page, so its chain
	// borrows idle base pages of the other slots.
	for _, key := range bySlot[0][:100] {
		put(key)
	}
	borrowed := 0
	for s := uint32(1); s < 4; s++ {
		if kd.mem.at(s).isBorrowed == 1 {
			borrowed++
		}
	}
	require.Greater(t, borrowed, 0, "slot 0's chain must have borrowed an idle base page")

	// Writing to the other slots, highest first, reclaims every borrowed
	// base page; a reclaim may move the borrower onto a still idle base
	// page of a lower slot, which that slot then reclaims in turn.
	for s := uint32(3); s >= 1; s-- {
		for _, key := range bySlot[s][:10] {
			put(key)
		}
	}

	for _, w := range written {
		code, got := kd.Get([]byte(w.key), maxEpoch)
		require.Equal(t, Found, code, "key %q must still be reachable after borrow/reclaim churn", w.key)
		require.Equal(t, w.entry.FileID, got.FileID)
		require.Equal(t, w.entry.Offset, got.Offset)
	}
}

// Scenario 7: forcing swap expansion must not lose any previously written
// key.
func TestSwapSpill(t *testing.T) {
	kd, err := Init(Options{
		BaseDir:          t.TempDir(),
		NumPages:         2,
		InitialSwapPages: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = kd.Release() })

	before := kd.swap.numPages

	type kv struct {
		key   string
		entry Entry
	}
	var written []kv
	for i := 0; i < 600; i++ {
		key := []byte{byte(i), byte(i >> 8), byte(i >> 16), 'x'}
		e := Entry{Key: key, FileID: uint32(i), Offset: uint64(i), TotalSize: 8, Timestamp: uint32(i)}
		require.Equal(t, Ok, kd.Put(e, 0, 0))
		written = append(written, kv{string(key), e})
	}

	require.Greater(t, kd.swap.numPages, before, "swap file must have grown")

	for _, w := range written {
		code, got := kd.Get([]byte(w.key), maxEpoch)
		require.Equal(t, Found, code)
		require.Equal(t, w.entry.Offset, got.Offset)
	}
}

func TestUpdateFstats_CreateOnDemand(t *testing.T) {
	kd := newTestKeydir(t, 4)

	kd.UpdateFstats(1, 1000, maxEpoch, 0, 1, 0, 42, false)
	_, ok := kd.FileStats(1)
	require.False(t, ok, "update with shouldCreate=false must not create an entry")

	kd.UpdateFstats(1, 1000, maxEpoch, 1, 1, 42, 42, true)
	stats, ok := kd.FileStats(1)
	require.True(t, ok)
	require.Equal(t, uint64(1), stats.LiveKeys)
	require.Equal(t, uint64(42), stats.LiveBytes)

	kd.UpdateFstats(1, 2000, maxEpoch, -1, 0, -42, 0, false)
	stats, ok = kd.FileStats(1)
	require.True(t, ok)
	require.Equal(t, uint64(0), stats.LiveKeys)
	require.Equal(t, uint64(0), stats.LiveBytes)
}
