package node

import (
	"fmt"
	"sort"

	"github.com/kipa-net/kipa/pkg/keyspace"
	"github.com/kipa-net/kipa/pkg/search"
	"github.com/kipa-net/kipa/pkg/types"
)

// Receive dispatches an inbound request that already passed transport
// checks. Every request from a node sender strengthens the overlay by
// feeding the sender into the neighbours store; CLI requests do not.
func (n *Node) Receive(req *types.RequestMessage) (types.ResponsePayload, error) {
	n.logger.Sugar().Infow("Received request",
		"sender", req.Sender.String(), "payload", req.Payload.String(), "id", req.ID)

	if !req.Sender.IsCli() {
		n.store.ConsiderCandidate(req.Sender.Node)
	}

	switch p := req.Payload.(type) {
	case types.QueryRequest:
		return types.QueryResponse{Nodes: n.store.GetNClosest(p.Key, 1)}, nil
	case types.SearchRequest:
		found, err := n.Search(p.Key)
		if err != nil {
			return nil, err
		}
		return types.SearchResponse{Node: found}, nil
	case types.ConnectRequest:
		if err := n.Connect(p.Node); err != nil {
			return nil, err
		}
		return types.ConnectResponse{}, nil
	case types.ListNeighboursRequest:
		return types.ListNeighboursResponse{Nodes: n.store.GetAll()}, nil
	default:
		return nil, types.NewInternalError(fmt.Sprintf("unhandled request payload %T", req.Payload))
	}
}

// queryNode is the query function injected into the graph search: one Query
// RPC, unwrapped to the returned nodes, failing on payload-tag mismatch.
func (n *Node) queryNode(remote *types.Node, target *types.Key) ([]*types.Node, error) {
	resp, err := n.client.Send(remote, types.QueryRequest{Key: target}, n.cfg.QueryTimeout)
	if err != nil {
		return nil, err
	}
	switch p := resp.Payload.(type) {
	case types.QueryResponse:
		return p.Nodes, nil
	case types.ErrorResponse:
		return nil, p.Err
	default:
		return nil, types.NewExternalError(
			fmt.Sprintf("unexpected response %s to query request", resp.Payload))
	}
}

// Search locates the owner of target by expanding from the current
// neighbours. Returns nil when the reachable overlay is exhausted.
func (n *Node) Search(target *types.Key) (*types.Node, error) {
	onFound := func(candidate *types.Node) (search.CallbackResult, error) {
		if candidate.Key.Equal(target) {
			return search.ReturnNode(candidate), nil
		}
		return search.ContinueSearch(), nil
	}
	onExplored := func(*types.Node) (search.CallbackResult, error) {
		return search.ContinueSearch(), nil
	}

	outcome, err := n.searcher.Search(
		target, n.store.GetAll(), onFound, onExplored, n.cfg.SearchTimeout)
	if err != nil {
		return nil, err
	}
	if outcome == nil {
		return nil, nil
	}
	if outcome.Node == nil {
		return nil, types.NewInternalError("search terminated without a node")
	}
	return outcome.Node, nil
}

// connectEntry tracks one of the closest-to-self nodes during a connect and
// whether its own query has completed.
type connectEntry struct {
	node     *types.Node
	explored bool
}

// Connect joins the network: search for our own key starting from the
// bootstrap node, feeding every observation into the neighbours store, until
// the closest nodes to ourselves have all been explored.
func (n *Node) Connect(bootstrap *types.Node) error {
	localSpace := keyspace.FromKey(n.localKey, n.cfg.KeySpaceSize)
	dim := n.cfg.KeySpaceSize

	// Callbacks run under the search lock; nClosest needs no extra guard.
	nClosest := make([]*connectEntry, 0, n.cfg.ConnectSearchSize+1)

	onFound := func(candidate *types.Node) (search.CallbackResult, error) {
		n.store.ConsiderCandidate(candidate)

		nClosest = append(nClosest, &connectEntry{node: candidate})
		sort.SliceStable(nClosest, func(i, j int) bool {
			return keyspace.Distance(keyspace.FromKey(nClosest[i].node.Key, dim), localSpace) <
				keyspace.Distance(keyspace.FromKey(nClosest[j].node.Key, dim), localSpace)
		})
		if len(nClosest) > n.cfg.ConnectSearchSize {
			nClosest = nClosest[:n.cfg.ConnectSearchSize]
		}
		return search.ContinueSearch(), nil
	}

	onExplored := func(candidate *types.Node) (search.CallbackResult, error) {
		for _, entry := range nClosest {
			if entry.node.Equal(candidate) {
				entry.explored = true
			}
		}
		for _, entry := range nClosest {
			if !entry.explored {
				return search.ContinueSearch(), nil
			}
		}
		return search.ReturnEmpty(), nil
	}

	_, err := n.searcher.Search(
		n.localKey, []*types.Node{bootstrap}, onFound, onExplored, n.cfg.SearchTimeout)
	return err
}
