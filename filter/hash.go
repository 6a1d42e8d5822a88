package filter

import (
	"crypto/sha256"
	"math/bits"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Hasher maps a key to k bit positions in [0, m).
type Hasher interface {
	// Probe calls visit with each position in round order and stops
	// as soon as visit returns false.
	Probe(key string, k uint32, m uint64, visit func(pos uint64) bool)
}

// SaltedSHA256 digests "{round}^{key}" with SHA-256 and reduces the
// big-endian digest modulo m. It is the default hasher.
type SaltedSHA256 struct{}

func (SaltedSHA256) Probe(key string, k uint32, m uint64, visit func(pos uint64) bool) {
	buf := make([]byte, 0, len(key)+12)
	for i := uint32(0); i < k; i++ {
		buf = strconv.AppendUint(buf[:0], uint64(i), 10)
		buf = append(buf, '^')
		buf = append(buf, key...)
		sum := sha256.Sum256(buf)
		if !visit(reduce(sum[:], m)) {
			return
		}
	}
}

// reduce returns the big-endian integer in digest modulo m without
// materialising the integer.
func reduce(digest []byte, m uint64) uint64 {
	var r uint64
	for _, b := range digest {
		hi, lo := bits.Mul64(r, 256)
		var carry uint64
		lo, carry = bits.Add64(lo, uint64(b), 0)
		r = bits.Rem64(hi+carry, lo, m)
	}
	return r
}

// XXHashDouble derives the k positions from two xxhash64 digests as
// h1 + i*h2 (mod m).
type XXHashDouble struct{}

func (XXHashDouble) Probe(key string, k uint32, m uint64, visit func(pos uint64) bool) {
	h1 := xxhash.Sum64String(key)

	d := xxhash.New()
	_, _ = d.WriteString("^")
	_, _ = d.WriteString(key)
	// odd step so the sequence does not collapse when m is a power of two
	h2 := d.Sum64() | 1

	for i := uint32(0); i < k; i++ {
		if !visit((h1 + uint64(i)*h2) % m) {
			return
		}
	}
}
