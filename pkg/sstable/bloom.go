package sstable

import (
	"hash/fnv"
	"math"
)

// BloomFilter is built in memory when a table is opened; it is not part of
// the file format.
type BloomFilter struct {
	bits   []uint64
	size   uint32
	hashes int
}

// NewBloomFilter sizes a filter for expectedItems keys at the given false
// positive rate.
func NewBloomFilter(expectedItems uint32, falsePositiveRate float64) *BloomFilter {
	size := calculateOptimalSize(expectedItems, falsePositiveRate)
	return &BloomFilter{
		bits:   make([]uint64, (size+63)/64),
		size:   size,
		hashes: calculateHashCount(expectedItems, size),
	}
}

// Add adds a key to the bloom filter
func (bf *BloomFilter) Add(key []byte) {
	h1, h2 := bf.hash(key)
	for i := 0; i < bf.hashes; i++ {
		idx := (h1 + uint32(i)*h2) % bf.size
		bf.bits[idx/64] |= 1 << (idx % 64)
	}
}

// MayContain checks if a key might be in the bloom filter
func (bf *BloomFilter) MayContain(key []byte) bool {
	h1, h2 := bf.hash(key)
	for i := 0; i < bf.hashes; i++ {
		idx := (h1 + uint32(i)*h2) % bf.size
		if bf.bits[idx/64]&(1<<(idx%64)) == 0 {
			return false
		}
	}
	return true
}

// hash derives the two base hashes for double hashing from one 64-bit FNV-1a.
func (bf *BloomFilter) hash(key []byte) (uint32, uint32) {
	h := fnv.New64a()
	_, _ = h.Write(key)
	sum := h.Sum64()
	return uint32(sum), uint32(sum>>32) | 1
}

// m = -(n * ln(p)) / (ln(2)^2)
func calculateOptimalSize(expectedItems uint32, falsePositiveRate float64) uint32 {
	if expectedItems == 0 {
		expectedItems = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = defaultBloomFPRate
	}
	m := -float64(expectedItems) * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)
	if m < 64 {
		m = 64
	}
	return uint32(math.Ceil(m))
}

// k = (m/n) * ln(2)
func calculateHashCount(expectedItems uint32, size uint32) int {
	if expectedItems == 0 {
		expectedItems = 1
	}
	k := int(math.Round(float64(size) / float64(expectedItems) * math.Ln2))
	if k < 1 {
		k = 1
	}
	if k > 10 {
		k = 10
	}
	return k
}
