package keydir

import "log"

// debugf and warnf are thin wrappers over the stdlib logger rather than a
// structured-logging dependency.
var debugEnabled = false

func debugf(format string, args ...interface{}) {
	if debugEnabled {
		log.Printf("DEBUG "+format, args...)
	}
}

func warnf(format string, args ...interface{}) {
	log.Printf("WARN "+format, args...)
}
