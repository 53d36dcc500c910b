package partition

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaolacci/murmur3"
)

// defaultTokenSpace is the number of virtual data partitions the reference
// router hashes keys into.
const defaultTokenSpace = 1024

// TokenRouter is a reference Affinity implementation backed by murmur3,
// for standalone deployments and tests. Production deployments inject the
// host engine's own partition function instead.
type TokenRouter struct {
	space int
}

// NewTokenRouter builds a router over the default virtual partition space.
func NewTokenRouter() *TokenRouter {
	return &TokenRouter{space: defaultTokenSpace}
}

// NewTokenRouterWithSpace builds a router with an explicit virtual partition
// count. Non-positive counts fall back to the default.
func NewTokenRouterWithSpace(space int) *TokenRouter {
	if space <= 0 {
		space = defaultTokenSpace
	}
	return &TokenRouter{space: space}
}

// Partition hashes the key into the virtual partition space.
func (r *TokenRouter) Partition(key any) int {
	h := murmur3.Sum32(keyBytes(key))
	return int(h % uint32(r.space))
}

// keyBytes produces a stable byte rendering of a key for hashing.
func keyBytes(key any) []byte {
	switch k := key.(type) {
	case []byte:
		return k
	case string:
		return []byte(k)
	case int:
		return int64Bytes(int64(k))
	case int32:
		return int64Bytes(int64(k))
	case int64:
		return int64Bytes(k)
	case uint64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], k)
		return b[:]
	case float64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(k))
		return b[:]
	default:
		return []byte(fmt.Sprintf("%v", k))
	}
}

func int64Bytes(v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return b[:]
}
