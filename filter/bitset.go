package filter

import (
	"github.com/bits-and-blooms/bitset"
)

// BitSet is a fixed-size bit array. It is not safe for concurrent use;
// BloomFilter guards it with its own lock.
type BitSet struct {
	bits *bitset.BitSet
	size uint64
}

func NewBitSet(size uint64) *BitSet {
	return &BitSet{
		bits: bitset.New(uint(size)),
		size: size,
	}
}

// Set turns bit i on. There is no way to turn it off again.
func (b *BitSet) Set(i uint64) {
	b.bits.Set(uint(i))
}

func (b *BitSet) Test(i uint64) bool {
	return b.bits.Test(uint(i))
}

// Len returns the number of addressable bits.
func (b *BitSet) Len() uint64 {
	return b.size
}

// Count returns the number of bits that are set.
func (b *BitSet) Count() uint64 {
	return uint64(b.bits.Count())
}

// Equal reports whether both sets have the same size and bits.
func (b *BitSet) Equal(o *BitSet) bool {
	return b.size == o.size && b.bits.Equal(o.bits)
}
