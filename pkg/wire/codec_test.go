package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kipa-net/kipa/pkg/testutil"
	"github.com/kipa-net/kipa/pkg/types"
)

func Test_JSONCodec(t *testing.T) {
	t.Run("RequestVariants", func(t *testing.T) { testRequestVariants(t) })
	t.Run("ResponseVariants", func(t *testing.T) { testResponseVariants(t) })
	t.Run("SenderIdentity", func(t *testing.T) { testSenderIdentity(t) })
	t.Run("RejectsMalformed", func(t *testing.T) { testRejectsMalformed(t) })
}

func testRequestVariants(t *testing.T) {
	codec := NewJSONCodec()
	key := testutil.CreateTestKey(t, "AAAAAAAA")
	bootstrap := testutil.CreateTestNode(t, "BBBBBBBB", 10842)

	payloads := []types.RequestPayload{
		types.QueryRequest{Key: key},
		types.SearchRequest{Key: key},
		types.ConnectRequest{Node: bootstrap},
		types.ListNeighboursRequest{},
	}
	for _, payload := range payloads {
		msg := &types.RequestMessage{
			ID:      42,
			Version: "0.2.0",
			Sender:  types.NewCliSender(),
			Payload: payload,
		}
		data, err := codec.EncodeRequest(msg)
		require.NoError(t, err)

		decoded, err := codec.DecodeRequest(data)
		require.NoError(t, err)
		require.Equal(t, msg.ID, decoded.ID)
		require.Equal(t, msg.Version, decoded.Version)
		require.IsType(t, payload, decoded.Payload)
	}

	// Key identity survives the trip.
	data, err := codec.EncodeRequest(&types.RequestMessage{
		ID: 1, Version: "0.2.0", Sender: types.NewCliSender(),
		Payload: types.QueryRequest{Key: key},
	})
	require.NoError(t, err)
	decoded, err := codec.DecodeRequest(data)
	require.NoError(t, err)
	require.Equal(t, key.ID(), decoded.Payload.(types.QueryRequest).Key.ID())
	require.Equal(t, key.Material(), decoded.Payload.(types.QueryRequest).Key.Material())
}

func testResponseVariants(t *testing.T) {
	codec := NewJSONCodec()
	found := testutil.CreateTestNode(t, "CCCCCCCC", 20001)

	payloads := []types.ResponsePayload{
		types.QueryResponse{Nodes: []*types.Node{found}},
		types.QueryResponse{},
		types.SearchResponse{Node: found},
		types.SearchResponse{},
		types.ConnectResponse{},
		types.ListNeighboursResponse{Nodes: []*types.Node{found}},
		types.ErrorResponse{Err: types.NewExternalError("peer unreachable")},
	}
	for _, payload := range payloads {
		msg := &types.ResponseMessage{
			ID:      7,
			Version: "0.2.0",
			Sender:  types.NewCliSender(),
			Payload: payload,
		}
		data, err := codec.EncodeResponse(msg)
		require.NoError(t, err)

		decoded, err := codec.DecodeResponse(data)
		require.NoError(t, err)
		require.Equal(t, msg.ID, decoded.ID)
		require.IsType(t, payload, decoded.Payload)
	}

	// Empty search response decodes to a nil node.
	data, err := codec.EncodeResponse(&types.ResponseMessage{
		ID: 8, Version: "0.2.0", Sender: types.NewCliSender(),
		Payload: types.SearchResponse{},
	})
	require.NoError(t, err)
	decoded, err := codec.DecodeResponse(data)
	require.NoError(t, err)
	require.Nil(t, decoded.Payload.(types.SearchResponse).Node)

	// Error kind survives with its fixed wire value.
	data, err = codec.EncodeResponse(&types.ResponseMessage{
		ID: 9, Version: "0.2.0", Sender: types.NewCliSender(),
		Payload: types.ErrorResponse{Err: types.NewParseError("bad frame")},
	})
	require.NoError(t, err)
	decoded, err = codec.DecodeResponse(data)
	require.NoError(t, err)
	apiErr := decoded.Payload.(types.ErrorResponse).Err
	require.Equal(t, types.ApiErrorParse, apiErr.Type)
	require.Equal(t, "bad frame", apiErr.Msg)
}

func testSenderIdentity(t *testing.T) {
	codec := NewJSONCodec()
	sender := testutil.CreateTestNode(t, "DDDDDDDD", 10842)
	key := testutil.CreateTestKey(t, "AAAAAAAA")

	data, err := codec.EncodeRequest(&types.RequestMessage{
		ID: 3, Version: "0.2.0",
		Sender:  types.NewNodeSender(sender),
		Payload: types.QueryRequest{Key: key},
	})
	require.NoError(t, err)

	decoded, err := codec.DecodeRequest(data)
	require.NoError(t, err)
	require.False(t, decoded.Sender.IsCli())
	require.True(t, sender.Equal(decoded.Sender.Node))
	require.Equal(t, sender.Address.String(), decoded.Sender.Node.Address.String())

	// CLI sender round-trips as CLI.
	data, err = codec.EncodeRequest(&types.RequestMessage{
		ID: 4, Version: "0.2.0",
		Sender:  types.NewCliSender(),
		Payload: types.QueryRequest{Key: key},
	})
	require.NoError(t, err)
	decoded, err = codec.DecodeRequest(data)
	require.NoError(t, err)
	require.True(t, decoded.Sender.IsCli())
}

func testRejectsMalformed(t *testing.T) {
	codec := NewJSONCodec()

	// Not JSON at all.
	_, err := codec.DecodeRequest([]byte("not json"))
	require.Error(t, err)

	// No payload variant.
	_, err = codec.DecodeRequest([]byte(`{"id":1,"version":"0.2.0","payload":{}}`))
	require.Error(t, err)

	// Two payload variants at once.
	_, err = codec.DecodeRequest([]byte(
		`{"id":1,"version":"0.2.0","payload":{"listNeighbours":{},"connect":{"node":null}}}`))
	require.Error(t, err)

	_, err = codec.DecodeResponse([]byte(`{"id":1,"version":"0.2.0","payload":{}}`))
	require.Error(t, err)
}
