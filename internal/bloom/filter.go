// Package bloom provides the per-partition document presence filter. Engines
// consult it before hitting storage so operations on ids that were never
// indexed cost nothing. No false negatives: an added id always tests present.
package bloom

import (
	"math"
	"sync"

	"github.com/spaolacci/murmur3"
)

// Filter is a murmur3 double-hashing bloom filter over document ids.
type Filter struct {
	mu        sync.RWMutex
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     uint64
}

// New creates a filter sized for the expected number of documents and target
// false positive rate. Out-of-range arguments fall back to 1000 documents at
// 1% false positives.
func New(expectedDocs int, targetFPR float64) *Filter {
	numBits, numHashes := optimalParameters(expectedDocs, targetFPR)
	numWords := (numBits + 63) / 64
	return &Filter{
		bits:      make([]uint64, numWords),
		numBits:   uint64(numWords * 64),
		numHashes: uint64(numHashes),
	}
}

// optimalParameters derives the bit and hash counts from the standard bloom
// sizing formulas: m = -n*ln(p)/ln(2)^2, k = (m/n)*ln(2).
func optimalParameters(expectedDocs int, targetFPR float64) (numBits, numHashes int) {
	if expectedDocs <= 0 {
		expectedDocs = 1000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}

	n := float64(expectedDocs)
	m := -n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)
	numBits = int(math.Ceil(m))
	numHashes = int(math.Ceil(m / n * math.Ln2))

	if numBits < 64 {
		numBits = 64
	}
	if numHashes < 1 {
		numHashes = 1
	}
	return numBits, numHashes
}

// Add records a document id.
func (f *Filter) Add(docID string) {
	h1, h2 := murmur3.Sum128([]byte(docID))

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		f.bits[pos/64] |= 1 << (pos % 64)
	}
	f.count++
}

// MightContain reports whether the id may have been added. False means the
// id was definitely never added; true may be a false positive.
func (f *Filter) MightContain(docID string) bool {
	h1, h2 := murmur3.Sum128([]byte(docID))

	f.mu.RLock()
	defer f.mu.RUnlock()
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// Count returns the number of ids added.
func (f *Filter) Count() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// FalsePositiveRate estimates the current false positive probability from
// the fill ratio: (1 - e^(-k*n/m))^k.
func (f *Filter) FalsePositiveRate() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.count == 0 {
		return 0
	}
	k := float64(f.numHashes)
	n := float64(f.count)
	m := float64(f.numBits)
	return math.Pow(1-math.Exp(-k*n/m), k)
}
