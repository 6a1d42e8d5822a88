package filter

import (
	"math"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrInvalidSize      = errors.New("bloom filter size must be positive")
	ErrInvalidHashCount = errors.New("bloom filter hash count must be positive")
	ErrInvalidEstimate  = errors.New("bloom filter estimate out of range")
)

// BloomFilter is an add-only probabilistic set. MightContain never
// reports false for a key that was added.
type BloomFilter struct {
	mu     sync.RWMutex
	bits   *BitSet // Bit array
	k      uint32  // Number of hash functions
	m      uint64  // Number of bits in the filter
	hasher Hasher
}

type Option func(*BloomFilter)

// WithHasher replaces the default SaltedSHA256 hash family.
func WithHasher(h Hasher) Option {
	return func(bf *BloomFilter) {
		if h != nil {
			bf.hasher = h
		}
	}
}

func New(size, k int, opts ...Option) (*BloomFilter, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "size %d", size)
	}
	if k <= 0 || uint64(k) > math.MaxUint32 {
		return nil, errors.Wrapf(ErrInvalidHashCount, "k %d", k)
	}
	bf := &BloomFilter{
		bits:   NewBitSet(uint64(size)),
		k:      uint32(k),
		m:      uint64(size),
		hasher: SaltedSHA256{},
	}
	for _, opt := range opts {
		opt(bf)
	}
	return bf, nil
}

// NewWithEstimates sizes a filter for expectedItems keys at the given
// false positive rate.
func NewWithEstimates(expectedItems int, falsePositiveRate float64, opts ...Option) (*BloomFilter, error) {
	if expectedItems <= 0 || falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		return nil, errors.Wrapf(ErrInvalidEstimate, "items %d, rate %v", expectedItems, falsePositiveRate)
	}
	// m = -n*ln(p)/(ln(2)²)
	m := math.Ceil(-float64(expectedItems) * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2))
	// k = (m/n)*ln(2)
	k := math.Max(1, math.Round(m/float64(expectedItems)*math.Ln2))
	return New(int(m), int(k), opts...)
}

func (bf *BloomFilter) Add(key string) {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	bf.hasher.Probe(key, bf.k, bf.m, func(pos uint64) bool {
		bf.bits.Set(pos)
		return true
	})
}

func (bf *BloomFilter) MightContain(key string) bool {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	found := true
	bf.hasher.Probe(key, bf.k, bf.m, func(pos uint64) bool {
		found = bf.bits.Test(pos)
		return found
	})
	return found
}

func (bf *BloomFilter) Size() uint64 {
	return bf.m
}

func (bf *BloomFilter) HashCount() uint32 {
	return bf.k
}

// FillRatio is the fraction of bits currently set.
func (bf *BloomFilter) FillRatio() float64 {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	return float64(bf.bits.Count()) / float64(bf.m)
}

// EstimatedFalsePositiveRate returns (1 - e^(-kn/m))^k for n stored keys.
func (bf *BloomFilter) EstimatedFalsePositiveRate(n uint64) float64 {
	k := float64(bf.k)
	return math.Pow(1-math.Exp(-k*float64(n)/float64(bf.m)), k)
}
