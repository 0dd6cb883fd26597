// Package node wires the daemon together: neighbours store, graph search,
// transports, and the request dispatch between them.
package node

import (
	"net"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kipa-net/kipa/pkg/config"
	"github.com/kipa-net/kipa/pkg/neighbours"
	"github.com/kipa-net/kipa/pkg/pgp"
	"github.com/kipa-net/kipa/pkg/search"
	"github.com/kipa-net/kipa/pkg/transport"
	"github.com/kipa-net/kipa/pkg/types"
	"github.com/kipa-net/kipa/pkg/wire"
)

// Node is a running KIPA participant.
type Node struct {
	cfg         config.Config
	localKey    *types.Key
	localSecret *types.SecretKey
	localNode   *types.Node

	store    *neighbours.Store
	searcher *search.GraphSearch
	client   *transport.Client

	globalServer *transport.GlobalServer
	localServer  *transport.LocalServer

	logger *zap.Logger
}

// NewNode builds a node from its secret identity and pluggable transports.
func NewNode(
	cfg config.Config,
	localSecret *types.SecretKey,
	keyHandler pgp.IKeyHandler,
	codec wire.Codec,
	logger *zap.Logger,
) (*Node, error) {
	localKey := localSecret.Public()
	if localKey == nil {
		return nil, errors.New("local secret key has no public half")
	}

	// The advertised IP is a placeholder: peers learn our routable IP from
	// the connection itself, paired with this port.
	localNode := types.NewNode(localKey,
		types.NewAddress(net.IPv4(127, 0, 0, 1), uint16(cfg.Port)))

	n := &Node{
		cfg:         cfg,
		localKey:    localKey,
		localSecret: localSecret,
		localNode:   localNode,
		store:       neighbours.NewStore(localKey, cfg.NeighboursSize, cfg.KeySpaceSize, logger),
		logger:      logger,
	}
	n.client = transport.NewClient(codec, keyHandler, localSecret, localNode, logger)
	n.searcher = search.NewGraphSearch(n.queryNode, cfg.KeySpaceSize, cfg.SearchConcurrency, logger)
	n.globalServer = transport.NewGlobalServer(
		n, codec, keyHandler, localSecret, localNode, cfg.Port, cfg.SocketTimeout, logger)
	n.localServer = transport.NewLocalServer(
		n, codec, cfg.SocketPath, cfg.SocketTimeout, logger)
	return n, nil
}

// Start brings up the global and local servers.
func (n *Node) Start() error {
	if err := n.globalServer.Start(); err != nil {
		return err
	}
	if addr, ok := n.globalServer.Addr().(*net.TCPAddr); ok && n.cfg.Port == 0 {
		// Tests bind port 0; advertise what the kernel picked.
		n.localNode.Address = types.NewAddress(n.localNode.Address.IP(), uint16(addr.Port))
	}
	if err := n.localServer.Start(); err != nil {
		_ = n.globalServer.Stop()
		return err
	}
	n.logger.Sugar().Infow("Node started",
		"key", n.localKey.ID(), "address", n.localNode.Address.String(),
		"socket", n.cfg.SocketPath)
	return nil
}

// Stop shuts both servers down.
func (n *Node) Stop() error {
	err := n.localServer.Stop()
	if gerr := n.globalServer.Stop(); err == nil {
		err = gerr
	}
	return err
}

// LocalNode returns this node's identity and advertised address.
func (n *Node) LocalNode() *types.Node { return n.localNode }

// Neighbours returns the current neighbours store snapshot.
func (n *Node) Neighbours() []*types.Node { return n.store.GetAll() }
