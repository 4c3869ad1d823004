package keydir

// Code is the result of a keydir operation, returned instead of an error
// for the hot-path calls.
type Code int

const (
	Ok Code = iota
	Found
	NotFound
	Modified
	NoMem

	// restart is internal-only: a scan/write_prep detected a concurrent
	// mutation it cannot safely proceed past and the caller's retry loop
	// must re-enter with a fresh epoch.
	restart
)

func (c Code) String() string {
	switch c {
	case Ok:
		return "ok"
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Modified:
		return "modified"
	case NoMem:
		return "no_mem"
	case restart:
		return "restart"
	default:
		return "unknown"
	}
}
