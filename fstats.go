package keydir

import "sync"

// FileStats is the per-data-file counter block: a mapping file_id ->
// counters, updated externally as records move between live/dead states.
// The keydir itself never writes these counters except through
// UpdateFstats.
type FileStats struct {
	LiveKeys        uint64
	TotalKeys       uint64
	LiveBytes       uint64
	TotalBytes      uint64
	OldestTstamp    uint32
	NewestTstamp    uint32
	ExpirationEpoch uint64
}

// fstatsTable is a plain map behind one mutex, matching "all
// accesses take the keydir's stats mutex" literally: the workload here is
// write-heavy (callers update it on every record write or removal) so neither sync.Map's
// read-mostly optimization nor a sharded map buys anything a single lock
// doesn't already give.
type fstatsTable struct {
	mu    sync.Mutex
	table map[uint32]*FileStats
}

func newFstatsTable() *fstatsTable {
	return &fstatsTable{table: make(map[uint32]*FileStats)}
}

// UpdateFstats applies the given counter deltas to file_id's stats block.
// Keys that do not exist are created on demand only when shouldCreate is
// true; otherwise the update is silently dropped, which lets decrement
// paths race safely against a file that has already been pruned.
func (kd *Keydir) UpdateFstats(fileID uint32, tstamp uint32, expirationEpoch uint64,
	dLiveKeys, dTotalKeys int64, dLiveBytes, dTotalBytes int64, shouldCreate bool) {

	ft := kd.fstats
	ft.mu.Lock()
	defer ft.mu.Unlock()

	s, ok := ft.table[fileID]
	if !ok {
		if !shouldCreate {
			return
		}
		s = &FileStats{OldestTstamp: tstamp, NewestTstamp: tstamp}
		ft.table[fileID] = s
	}

	s.LiveKeys = addDelta(s.LiveKeys, dLiveKeys)
	s.TotalKeys = addDelta(s.TotalKeys, dTotalKeys)
	s.LiveBytes = addDelta(s.LiveBytes, dLiveBytes)
	s.TotalBytes = addDelta(s.TotalBytes, dTotalBytes)
	s.ExpirationEpoch = expirationEpoch

	if tstamp != 0 {
		if s.OldestTstamp == 0 || tstamp < s.OldestTstamp {
			s.OldestTstamp = tstamp
		}
		if tstamp > s.NewestTstamp {
			s.NewestTstamp = tstamp
		}
	}
}

// FileStats returns a copy of the current counters for file_id, or false
// if no record exists for it.
func (kd *Keydir) FileStats(fileID uint32) (FileStats, bool) {
	ft := kd.fstats
	ft.mu.Lock()
	defer ft.mu.Unlock()

	s, ok := ft.table[fileID]
	if !ok {
		return FileStats{}, false
	}
	return *s, true
}

func addDelta(v uint64, delta int64) uint64 {
	if delta < 0 {
		d := uint64(-delta)
		if d > v {
			return 0
		}
		return v - d
	}
	return v + uint64(delta)
}
