package registry

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"time"
)

// NewRand returns the PRNG used for start-location shuffles.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// TimeSeed seeds from the system clock, matching how matches were
// historically randomized at registration time.
func TimeSeed() uint64 {
	return uint64(time.Now().UnixNano())
}

// CryptoSeed draws a seed from crypto/rand.
func CryptoSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
