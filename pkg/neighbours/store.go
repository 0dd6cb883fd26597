// Package neighbours holds the bounded set of peers closest to the local key.
package neighbours

import (
	"sync"

	"go.uber.org/zap"

	"github.com/kipa-net/kipa/pkg/keyspace"
	"github.com/kipa-net/kipa/pkg/types"
)

// Store keeps at most capacity nodes, ordered ascending by key-space
// distance from the local key. All operations are atomic with respect to
// one another.
type Store struct {
	localKey   *types.Key
	localSpace *keyspace.KeySpace
	capacity   int
	dim        int
	logger     *zap.Logger

	mu    sync.Mutex
	nodes []*types.Node
}

// NewStore creates an empty store for the given local key.
func NewStore(localKey *types.Key, capacity, dim int, logger *zap.Logger) *Store {
	return &Store{
		localKey:   localKey,
		localSpace: keyspace.FromKey(localKey, dim),
		capacity:   capacity,
		dim:        dim,
		logger:     logger,
	}
}

// ConsiderCandidate inserts the node if it improves connectivity to the
// local key. Idempotent: the local node and already-stored nodes are no-ops.
// Otherwise the node is inserted, the store re-sorted by distance to the
// local key, and truncated to capacity.
func (s *Store) ConsiderCandidate(node *types.Node) {
	if node.Key.Equal(s.localKey) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.nodes {
		if existing.Equal(node) {
			return
		}
	}

	s.nodes = append(s.nodes, node)
	keyspace.SortNodesByDistance(s.nodes, s.localSpace, s.dim)
	if len(s.nodes) > s.capacity {
		dropped := s.nodes[s.capacity:]
		s.nodes = s.nodes[:s.capacity]
		for _, d := range dropped {
			s.logger.Sugar().Debugw("Dropped furthest neighbour", "node", d.String())
		}
	}

	s.logger.Sugar().Debugw("Considered neighbour candidate",
		"node", node.String(), "stored", len(s.nodes))
}

// GetAll returns a snapshot ordered ascending by distance from the local key.
func (s *Store) GetAll() []*types.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.Node(nil), s.nodes...)
}

// GetNClosest returns up to n stored neighbours ordered ascending by
// distance to the target key.
func (s *Store) GetNClosest(target *types.Key, n int) []*types.Node {
	s.mu.Lock()
	snapshot := append([]*types.Node(nil), s.nodes...)
	s.mu.Unlock()

	keyspace.SortNodesByDistance(snapshot, keyspace.FromKey(target, s.dim), s.dim)
	if len(snapshot) > n {
		snapshot = snapshot[:n]
	}
	return snapshot
}

// Len returns the number of stored neighbours.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}
