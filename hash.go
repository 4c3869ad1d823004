package keydir

import "github.com/spaolacci/murmur3"

// hashKey is the MurmurHash3 (seed 42) key hash; bucket reduces it modulo
// the number of memory pages to select the base page.
func hashKey(key []byte) uint32 {
	return murmur3.Sum32WithSeed(key, 42)
}
