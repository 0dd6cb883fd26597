package transport

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kipa-net/kipa/pkg/config"
	"github.com/kipa-net/kipa/pkg/pgp"
	"github.com/kipa-net/kipa/pkg/types"
	"github.com/kipa-net/kipa/pkg/wire"
)

// Client sends enveloped requests to remote nodes over TCP.
type Client struct {
	codec       wire.Codec
	keyHandler  pgp.IKeyHandler
	localSecret *types.SecretKey
	localNode   *types.Node
	logger      *zap.Logger

	nextID uint32
}

// NewClient creates a global transport client identified as localNode.
func NewClient(
	codec wire.Codec,
	keyHandler pgp.IKeyHandler,
	localSecret *types.SecretKey,
	localNode *types.Node,
	logger *zap.Logger,
) *Client {
	return &Client{
		codec:       codec,
		keyHandler:  keyHandler,
		localSecret: localSecret,
		localNode:   localNode,
		logger:      logger,
	}
}

// Send delivers a request payload to node and returns the decoded response
// message. The timeout covers dialing, writing, and reading the reply.
func (c *Client) Send(node *types.Node, payload types.RequestPayload, timeout time.Duration) (*types.ResponseMessage, error) {
	msg := &types.RequestMessage{
		ID:      atomic.AddUint32(&c.nextID, 1),
		Version: config.ProtocolVersion,
		Sender:  types.NewNodeSender(c.localNode),
		Payload: payload,
	}

	data, err := c.codec.EncodeRequest(msg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request")
	}
	envelope, err := c.keyHandler.EncryptAndSign(data, c.localSecret, node.Key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to seal request envelope")
	}

	conn, err := net.DialTimeout("tcp", node.Address.String(), timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to node %s", node)
	}
	defer func() { _ = conn.Close() }()
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, errors.Wrap(err, "failed to set socket deadline")
	}

	c.logger.Sugar().Debugw("Sending request",
		"node", node.String(), "payload", payload.String(), "id", msg.ID)

	if err := wire.WriteFrame(conn, envelope); err != nil {
		return nil, errors.Wrapf(err, "failed to send request to node %s", node)
	}
	respEnvelope, err := wire.ReadFrame(conn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read response from node %s", node)
	}

	respData, err := c.keyHandler.DecryptAndVerify(respEnvelope, node.Key, c.localSecret)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open response envelope from node %s", node)
	}
	resp, err := c.codec.DecodeResponse(respData)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode response from node %s", node)
	}
	if resp.ID != msg.ID {
		return nil, errors.Errorf("response id %d does not match request id %d", resp.ID, msg.ID)
	}
	return resp, nil
}
