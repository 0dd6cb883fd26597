package node

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kipa-net/kipa/pkg/config"
	"github.com/kipa-net/kipa/pkg/pgp"
	"github.com/kipa-net/kipa/pkg/testutil"
	"github.com/kipa-net/kipa/pkg/types"
	"github.com/kipa-net/kipa/pkg/wire"
)

// newOfflineNode builds a node without starting its servers; enough for
// dispatch paths that never leave the process.
func newOfflineNode(t *testing.T) *Node {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Port = 0
	secret := testutil.CreateTestSecretKey(t, "00000000")
	n, err := NewNode(cfg, secret, pgp.NewNullKeyHandler(), wire.NewJSONCodec(), zap.NewNop())
	require.NoError(t, err)
	return n
}

func Test_Receive(t *testing.T) {
	t.Run("NodeSenderJoinsStore", func(t *testing.T) {
		n := newOfflineNode(t)
		sender := testutil.CreateTestNode(t, "AAAAAAAA", 20001)

		resp, err := n.Receive(&types.RequestMessage{
			ID:      1,
			Version: config.ProtocolVersion,
			Sender:  types.NewNodeSender(sender),
			Payload: types.QueryRequest{Key: testutil.CreateTestKey(t, "BBBBBBBB")},
		})
		require.NoError(t, err)

		// The sender was considered before the lookup, so it is the reply.
		query := resp.(types.QueryResponse)
		require.Len(t, query.Nodes, 1)
		require.True(t, sender.Equal(query.Nodes[0]))
		require.Len(t, n.Neighbours(), 1)
	})

	t.Run("CliSenderLeavesStoreAlone", func(t *testing.T) {
		n := newOfflineNode(t)

		resp, err := n.Receive(&types.RequestMessage{
			ID:      2,
			Version: config.ProtocolVersion,
			Sender:  types.NewCliSender(),
			Payload: types.QueryRequest{Key: testutil.CreateTestKey(t, "BBBBBBBB")},
		})
		require.NoError(t, err)
		require.Empty(t, resp.(types.QueryResponse).Nodes)
		require.Empty(t, n.Neighbours())
	})

	t.Run("ListNeighboursSnapshot", func(t *testing.T) {
		n := newOfflineNode(t)
		sender := testutil.CreateTestNode(t, "AAAAAAAA", 20001)
		_, err := n.Receive(&types.RequestMessage{
			ID:      3,
			Version: config.ProtocolVersion,
			Sender:  types.NewNodeSender(sender),
			Payload: types.ListNeighboursRequest{},
		})
		require.NoError(t, err)

		resp, err := n.Receive(&types.RequestMessage{
			ID:      4,
			Version: config.ProtocolVersion,
			Sender:  types.NewCliSender(),
			Payload: types.ListNeighboursRequest{},
		})
		require.NoError(t, err)
		list := resp.(types.ListNeighboursResponse)
		require.Len(t, list.Nodes, 1)
		require.True(t, sender.Equal(list.Nodes[0]))
	})

	t.Run("SearchWithEmptyStore", func(t *testing.T) {
		n := newOfflineNode(t)
		resp, err := n.Receive(&types.RequestMessage{
			ID:      5,
			Version: config.ProtocolVersion,
			Sender:  types.NewCliSender(),
			Payload: types.SearchRequest{Key: testutil.CreateTestKey(t, "BBBBBBBB")},
		})
		require.NoError(t, err)
		require.Nil(t, resp.(types.SearchResponse).Node)
	})
}
