package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kipa-net/kipa/pkg/config"
	"github.com/kipa-net/kipa/pkg/pgp"
	"github.com/kipa-net/kipa/pkg/types"
	"github.com/kipa-net/kipa/pkg/wire"
)

// GlobalServer listens for enveloped requests from remote nodes on TCP,
// bound to all interfaces. Every accepted connection is handled on its own
// goroutine with per-socket deadlines.
type GlobalServer struct {
	handler       RequestHandler
	codec         wire.Codec
	keyHandler    pgp.IKeyHandler
	localSecret   *types.SecretKey
	localNode     *types.Node
	port          int
	socketTimeout time.Duration
	limiter       *rate.Limiter
	logger        *zap.Logger

	listener net.Listener
}

// NewGlobalServer creates the global server; Start binds and serves.
func NewGlobalServer(
	handler RequestHandler,
	codec wire.Codec,
	keyHandler pgp.IKeyHandler,
	localSecret *types.SecretKey,
	localNode *types.Node,
	port int,
	socketTimeout time.Duration,
	logger *zap.Logger,
) *GlobalServer {
	return &GlobalServer{
		handler:       handler,
		codec:         codec,
		keyHandler:    keyHandler,
		localSecret:   localSecret,
		localNode:     localNode,
		port:          port,
		socketTimeout: socketTimeout,
		limiter:       rate.NewLimiter(rate.Limit(config.DefaultAcceptRate), config.DefaultAcceptBurst),
		logger:        logger,
	}
}

// Start binds the listener and serves until Stop.
func (s *GlobalServer) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return errors.Wrapf(err, "failed to bind TCP port %d", s.port)
	}
	s.listener = listener
	s.logger.Sugar().Infow("Listening for global connections",
		"addr", listener.Addr().String(), "node", s.localNode.String())

	go s.acceptLoop()
	return nil
}

// Stop closes the listener. In-flight connections run to completion.
func (s *GlobalServer) Stop() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// Addr returns the bound listener address, for tests using port 0.
func (s *GlobalServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *GlobalServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.logger.Sugar().Debugw("Global listener closed", "error", err)
			return
		}
		if !s.limiter.Allow() {
			s.logger.Sugar().Warnw("Dropping connection, accept rate exceeded",
				"remote", conn.RemoteAddr().String())
			_ = conn.Close()
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *GlobalServer) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	if err := conn.SetDeadline(time.Now().Add(s.socketTimeout)); err != nil {
		s.logger.Sugar().Warnw("Failed to set socket deadline", "error", err)
		return
	}

	envelope, err := wire.ReadFrame(conn)
	if err != nil {
		s.logger.Sugar().Debugw("Failed to read request frame",
			"remote", conn.RemoteAddr().String(), "error", err)
		return
	}

	// Open the envelope to learn who the message claims to be from, then
	// enforce full verification against that sender's key. An envelope that
	// does not verify never reaches the handler.
	plaintext, err := s.keyHandler.Decrypt(envelope, s.localSecret)
	if err != nil {
		s.logger.Sugar().Debugw("Rejected undecryptable envelope",
			"remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	req, err := s.codec.DecodeRequest(plaintext)
	if err != nil {
		s.logger.Sugar().Debugw("Rejected unparseable request",
			"remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	if req.Sender.IsCli() {
		s.logger.Sugar().Debugw("Rejected global request without node sender",
			"remote", conn.RemoteAddr().String())
		return
	}
	senderKey := req.Sender.Node.Key
	if _, err := s.keyHandler.DecryptAndVerify(envelope, senderKey, s.localSecret); err != nil {
		s.logger.Sugar().Warnw("Rejected envelope with bad signature",
			"remote", conn.RemoteAddr().String(), "claimed_sender", senderKey.ID(), "error", err)
		return
	}

	// Trust the connection, not the message, for the sender's IP: pair the
	// observed remote IP with the advertised port.
	if remote, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		req.Sender = types.NewNodeSender(types.NewNode(senderKey,
			types.NewAddress(remote.IP, req.Sender.Node.Address.Port())))
	}

	var payload types.ResponsePayload
	if !req.Payload.VisibleTo(types.VisibilityGlobal) {
		payload = types.ErrorResponse{Err: types.NewExternalError(
			fmt.Sprintf("request %s is not globally visible", req.Payload))}
	} else {
		result, err := s.handler.Receive(req)
		if err != nil {
			payload = types.ErrorResponse{Err: types.AsApiError(err)}
		} else {
			payload = result
		}
	}

	if err := s.respond(conn, req, senderKey, payload); err != nil {
		s.logger.Sugar().Warnw("Failed to send response",
			"remote", conn.RemoteAddr().String(), "error", err)
	}
}

func (s *GlobalServer) respond(conn net.Conn, req *types.RequestMessage, senderKey *types.Key, payload types.ResponsePayload) error {
	resp := &types.ResponseMessage{
		ID:      req.ID,
		Version: config.ProtocolVersion,
		Sender:  types.NewNodeSender(s.localNode),
		Payload: payload,
	}
	data, err := s.codec.EncodeResponse(resp)
	if err != nil {
		return errors.Wrap(err, "failed to encode response")
	}
	envelope, err := s.keyHandler.EncryptAndSign(data, s.localSecret, senderKey)
	if err != nil {
		return errors.Wrap(err, "failed to seal response envelope")
	}
	return wire.WriteFrame(conn, envelope)
}
