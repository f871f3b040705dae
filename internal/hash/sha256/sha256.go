// Package sha256 provides SHA-256 digests reduced to portable integers.
package sha256

import (
	"crypto/sha256"
	"encoding/binary"
)

// Sum64 returns the first eight bytes of the SHA-256 digest of data as a
// big-endian unsigned integer. The result is identical on every platform.
func Sum64(data []byte) uint64 {
	sum := sha256.Sum256(data)
	return binary.BigEndian.Uint64(sum[:8])
}

// Mod reduces the Sum64 digest of s into [0, m).
func Mod(s string, m uint64) uint64 {
	if m == 0 {
		return 0
	}
	return Sum64([]byte(s)) % m
}
