// Package keyspace embeds PGP keys into a fixed-dimensional Euclidean space.
// The embedding orders peers by similarity; it is not a cryptographic object.
package keyspace

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/crypto/sha3"

	"github.com/kipa-net/kipa/pkg/types"
)

// embeddingCacheSize bounds the number of cached key embeddings. Every
// distance sort re-embeds its inputs, so the cache is hit constantly during
// a search.
const embeddingCacheSize = 4096

var embeddingCache *lru.Cache

func init() {
	embeddingCache, _ = lru.New(embeddingCacheSize)
}

// KeySpace is a point in ℤⁿ derived from a key.
type KeySpace struct {
	coords []int32
}

// FromKey deterministically embeds a key into n signed 32-bit coordinates:
// SHAKE-256 over the key material, squeezed to 4·n bytes, each big-endian
// 4-byte chunk reinterpreted as an int32. Stable across runs and platforms.
func FromKey(key *types.Key, n int) *KeySpace {
	cacheKey := fmt.Sprintf("%s/%d", key.ID(), n)
	if cached, ok := embeddingCache.Get(cacheKey); ok {
		return cached.(*KeySpace)
	}

	buf := make([]byte, 4*n)
	sha3.ShakeSum256(buf, key.Material())

	coords := make([]int32, n)
	for i := 0; i < n; i++ {
		coords[i] = int32(binary.BigEndian.Uint32(buf[i*4 : i*4+4]))
	}
	ks := &KeySpace{coords: coords}
	embeddingCache.Add(cacheKey, ks)
	return ks
}

// Dimension returns n.
func (k *KeySpace) Dimension() int { return len(k.coords) }

// Coordinates returns a copy of the coordinate vector.
func (k *KeySpace) Coordinates() []int32 {
	return append([]int32(nil), k.coords...)
}

func (k *KeySpace) String() string {
	return fmt.Sprintf("KeySpace%v", k.coords)
}

// Distance is the Euclidean distance between two points, computed in
// float64 so that 32-bit coordinate differences cannot overflow.
func Distance(a, b *KeySpace) float64 {
	var sum float64
	for i := range a.coords {
		d := float64(a.coords[i]) - float64(b.coords[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Angle is the angle swept anticlockwise at pivot from b−pivot to a−pivot,
// normalised to [0, 2π). The orientation comes from the first two
// coordinates, which is all the default two-dimensional space has.
func Angle(a, b, pivot *KeySpace) float64 {
	va := sub(a, pivot)
	vb := sub(b, pivot)

	var dot, magA, magB float64
	for i := range va {
		dot += va[i] * vb[i]
		magA += va[i] * va[i]
		magB += vb[i] * vb[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	cos = math.Max(-1, math.Min(1, cos))
	angle := math.Acos(cos)

	var cross float64
	if len(va) >= 2 {
		cross = vb[0]*va[1] - vb[1]*va[0]
	}
	if cross < 0 {
		angle = 2*math.Pi - angle
	}
	return math.Mod(angle, 2*math.Pi)
}

func sub(a, b *KeySpace) []float64 {
	out := make([]float64, len(a.coords))
	for i := range a.coords {
		out[i] = float64(a.coords[i]) - float64(b.coords[i])
	}
	return out
}

// SortNodesByDistance stably sorts nodes ascending by distance from pivot.
func SortNodesByDistance(nodes []*types.Node, pivot *KeySpace, dim int) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return Distance(FromKey(nodes[i].Key, dim), pivot) <
			Distance(FromKey(nodes[j].Key, dim), pivot)
	})
}

// SortNodesByAngle stably sorts nodes by the signed angle at centre from
// reference to each node, normalised to [0, 2π). Used to pick a directionally
// diverse subset of peers.
func SortNodesByAngle(nodes []*types.Node, centre, reference *KeySpace, dim int) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return Angle(FromKey(nodes[i].Key, dim), reference, centre) <
			Angle(FromKey(nodes[j].Key, dim), reference, centre)
	})
}
