// Package client talks to a running daemon over its local socket.
package client

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/kipa-net/kipa/pkg/config"
	"github.com/kipa-net/kipa/pkg/types"
	"github.com/kipa-net/kipa/pkg/wire"
)

// LocalClient sends CLI requests to the daemon's unix socket.
type LocalClient struct {
	socketPath string
	codec      wire.Codec
	timeout    time.Duration

	nextID uint32
}

// NewLocalClient creates a client for the daemon at socketPath.
func NewLocalClient(socketPath string, codec wire.Codec, timeout time.Duration) *LocalClient {
	return &LocalClient{socketPath: socketPath, codec: codec, timeout: timeout}
}

// Send delivers one request payload and returns the decoded response
// payload. An ErrorResponse is surfaced as the contained ApiError.
func (c *LocalClient) Send(payload types.RequestPayload) (types.ResponsePayload, error) {
	msg := &types.RequestMessage{
		ID:      atomic.AddUint32(&c.nextID, 1),
		Version: config.ProtocolVersion,
		Sender:  types.NewCliSender(),
		Payload: payload,
	}
	data, err := c.codec.EncodeRequest(msg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request")
	}

	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to daemon at %s", c.socketPath)
	}
	defer func() { _ = conn.Close() }()
	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, errors.Wrap(err, "failed to set socket deadline")
	}

	if err := wire.WriteFrame(conn, data); err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	respData, err := wire.ReadFrame(conn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}
	resp, err := c.codec.DecodeResponse(respData)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode response")
	}

	if errResp, ok := resp.Payload.(types.ErrorResponse); ok {
		return nil, errResp.Err
	}
	return resp.Payload, nil
}

// Query asks the daemon for its neighbours closest to key.
func (c *LocalClient) Query(key *types.Key) ([]*types.Node, error) {
	payload, err := c.Send(types.QueryRequest{Key: key})
	if err != nil {
		return nil, err
	}
	resp, ok := payload.(types.QueryResponse)
	if !ok {
		return nil, errors.Errorf("unexpected response %s to query request", payload)
	}
	return resp.Nodes, nil
}

// Search asks the daemon to locate the owner of key. A nil node means the
// search exhausted the reachable overlay.
func (c *LocalClient) Search(key *types.Key) (*types.Node, error) {
	payload, err := c.Send(types.SearchRequest{Key: key})
	if err != nil {
		return nil, err
	}
	resp, ok := payload.(types.SearchResponse)
	if !ok {
		return nil, errors.Errorf("unexpected response %s to search request", payload)
	}
	return resp.Node, nil
}

// Connect asks the daemon to join the network via the given node.
func (c *LocalClient) Connect(node *types.Node) error {
	payload, err := c.Send(types.ConnectRequest{Node: node})
	if err != nil {
		return err
	}
	if _, ok := payload.(types.ConnectResponse); !ok {
		return errors.Errorf("unexpected response %s to connect request", payload)
	}
	return nil
}

// ListNeighbours fetches the daemon's neighbours store snapshot.
func (c *LocalClient) ListNeighbours() ([]*types.Node, error) {
	payload, err := c.Send(types.ListNeighboursRequest{})
	if err != nil {
		return nil, err
	}
	resp, ok := payload.(types.ListNeighboursResponse)
	if !ok {
		return nil, errors.Errorf("unexpected response %s to list-neighbours request", payload)
	}
	return resp.Nodes, nil
}
