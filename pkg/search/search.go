// Package search implements the concurrent iterative traversal of the
// overlay: a best-first expansion over key-space distance, driven by remote
// query replies.
package search

import (
	"container/heap"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kipa-net/kipa/pkg/keyspace"
	"github.com/kipa-net/kipa/pkg/types"
)

// CallbackAction says whether a search keeps going after a callback.
type CallbackAction int

const (
	// Continue keeps the search running.
	Continue CallbackAction = iota
	// Return terminates the search; the first Return wins.
	Return
)

// CallbackResult is what a search callback decides.
type CallbackResult struct {
	Action CallbackAction
	Node   *types.Node
}

// ContinueSearch keeps searching.
func ContinueSearch() CallbackResult { return CallbackResult{Action: Continue} }

// ReturnNode terminates the search yielding the given node.
func ReturnNode(n *types.Node) CallbackResult {
	return CallbackResult{Action: Return, Node: n}
}

// ReturnEmpty terminates the search without a node (used by connect).
func ReturnEmpty() CallbackResult { return CallbackResult{Action: Return} }

// Callback observes a node during a search. Callbacks run under the
// search-wide lock, so they may maintain their own state without further
// synchronisation. A callback error aborts the whole search.
type Callback func(n *types.Node) (CallbackResult, error)

// QueryFunc issues the Query RPC to a remote node, asking for its
// neighbours closest to target.
type QueryFunc func(n *types.Node, target *types.Key) ([]*types.Node, error)

// Outcome is a non-nil result of a search terminated by a Return. Node is
// nil when the terminating callback carried no node.
type Outcome struct {
	Node *types.Node
}

// GraphSearch runs searches over the overlay. Safe for concurrent use; each
// invocation owns its own frontier.
type GraphSearch struct {
	query       QueryFunc
	dim         int
	concurrency int
	logger      *zap.Logger
}

// NewGraphSearch creates a search engine issuing RPCs through query.
func NewGraphSearch(query QueryFunc, dim, concurrency int, logger *zap.Logger) *GraphSearch {
	return &GraphSearch{query: query, dim: dim, concurrency: concurrency, logger: logger}
}

type frontierEntry struct {
	node     *types.Node
	distance float64
	seq      int
}

// frontierQueue is a min-heap on distance; ties broken by insertion order.
type frontierQueue []*frontierEntry

func (q frontierQueue) Len() int { return len(q) }
func (q frontierQueue) Less(i, j int) bool {
	if q[i].distance != q[j].distance {
		return q[i].distance < q[j].distance
	}
	return q[i].seq < q[j].seq
}
func (q frontierQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *frontierQueue) Push(x interface{}) { *q = append(*q, x.(*frontierEntry)) }
func (q *frontierQueue) Pop() interface{} {
	old := *q
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return entry
}

type searchState struct {
	mu   sync.Mutex
	cond *sync.Cond

	frontier frontierQueue
	seen     mapset.Set[string]
	nextSeq  int
	inFlight int

	outcome *Outcome
	fatal   error
	stopped bool
}

func (st *searchState) terminated() bool {
	return st.stopped || st.outcome != nil || st.fatal != nil
}

// Search visits nodes in order of increasing key-space distance to target
// until a callback returns Return (yielding a non-nil Outcome), the frontier
// and in-flight set are both exhausted, or the timeout elapses (both
// yielding nil). Guarantees, per distinct key: onFound fires exactly once,
// on first observation; onExplored fires exactly once, after that node's own
// query completed; onFound precedes onExplored.
func (g *GraphSearch) Search(
	target *types.Key,
	initial []*types.Node,
	onFound Callback,
	onExplored Callback,
	timeout time.Duration,
) (*Outcome, error) {
	searchID := uuid.NewString()[:8]
	log := g.logger.Sugar().With("search_id", searchID, "target", target.ID())
	log.Debugw("Starting graph search", "initial_nodes", len(initial))

	st := &searchState{seen: mapset.NewThreadUnsafeSet[string]()}
	st.cond = sync.NewCond(&st.mu)
	targetSpace := keyspace.FromKey(target, g.dim)

	st.mu.Lock()
	for _, n := range initial {
		if err := g.offer(st, n, targetSpace, onFound); err != nil {
			st.mu.Unlock()
			return nil, err
		}
	}
	if st.outcome != nil {
		outcome := st.outcome
		st.mu.Unlock()
		return outcome, nil
	}
	st.mu.Unlock()

	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, func() {
			st.mu.Lock()
			if !st.terminated() {
				log.Debugw("Search deadline elapsed")
				st.stopped = true
			}
			st.cond.Broadcast()
			st.mu.Unlock()
		})
	}

	var wg sync.WaitGroup
	for i := 0; i < g.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.worker(st, target, targetSpace, onFound, onExplored, log)
		}()
	}
	wg.Wait()
	if timer != nil {
		timer.Stop()
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.fatal != nil {
		return nil, st.fatal
	}
	if st.outcome != nil {
		log.Debugw("Search returned", "explored", st.seen.Cardinality())
		return st.outcome, nil
	}
	log.Debugw("Search exhausted", "explored", st.seen.Cardinality())
	return nil, nil
}

// offer inserts a node into the frontier if never seen, firing onFound.
// Caller holds st.mu.
func (g *GraphSearch) offer(st *searchState, n *types.Node, targetSpace *keyspace.KeySpace, onFound Callback) error {
	if st.seen.Contains(n.Key.ID()) {
		return nil
	}
	st.seen.Add(n.Key.ID())

	result, err := onFound(n)
	if err != nil {
		st.fatal = err
		st.cond.Broadcast()
		return err
	}
	if result.Action == Return && st.outcome == nil {
		st.outcome = &Outcome{Node: result.Node}
		st.cond.Broadcast()
		return nil
	}

	heap.Push(&st.frontier, &frontierEntry{
		node:     n,
		distance: keyspace.Distance(keyspace.FromKey(n.Key, g.dim), targetSpace),
		seq:      st.nextSeq,
	})
	st.nextSeq++
	return nil
}

func (g *GraphSearch) worker(
	st *searchState,
	target *types.Key,
	targetSpace *keyspace.KeySpace,
	onFound Callback,
	onExplored Callback,
	log *zap.SugaredLogger,
) {
	for {
		st.mu.Lock()
		for !st.terminated() && st.frontier.Len() == 0 && st.inFlight > 0 {
			st.cond.Wait()
		}
		if st.terminated() || (st.frontier.Len() == 0 && st.inFlight == 0) {
			st.cond.Broadcast()
			st.mu.Unlock()
			return
		}

		entry := heap.Pop(&st.frontier).(*frontierEntry)
		st.inFlight++
		st.mu.Unlock()

		// The RPC runs outside the search lock.
		nodes, err := g.query(entry.node, target)
		if err != nil {
			// Per-RPC failures downgrade to an empty reply.
			log.Debugw("Query failed, treating as empty reply",
				"node", entry.node.String(), "error", err)
			nodes = nil
		}

		st.mu.Lock()
		st.inFlight--
		if st.terminated() {
			// Late reply after termination: discard.
			st.cond.Broadcast()
			st.mu.Unlock()
			return
		}

		for _, n := range nodes {
			if err := g.offer(st, n, targetSpace, onFound); err != nil || st.terminated() {
				break
			}
		}
		if !st.terminated() {
			result, err := onExplored(entry.node)
			if err != nil {
				st.fatal = err
			} else if result.Action == Return && st.outcome == nil {
				st.outcome = &Outcome{Node: result.Node}
			}
		}
		st.cond.Broadcast()
		st.mu.Unlock()
	}
}
