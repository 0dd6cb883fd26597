package transport

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kipa-net/kipa/pkg/config"
	"github.com/kipa-net/kipa/pkg/types"
	"github.com/kipa-net/kipa/pkg/wire"
)

// LocalServer listens for CLI requests on a unix-domain socket. Same
// framing as the global transport, no crypto envelope.
type LocalServer struct {
	handler       RequestHandler
	codec         wire.Codec
	socketPath    string
	socketTimeout time.Duration
	logger        *zap.Logger

	listener net.Listener
}

// NewLocalServer creates the local server; Start binds and serves.
func NewLocalServer(
	handler RequestHandler,
	codec wire.Codec,
	socketPath string,
	socketTimeout time.Duration,
	logger *zap.Logger,
) *LocalServer {
	return &LocalServer{
		handler:       handler,
		codec:         codec,
		socketPath:    socketPath,
		socketTimeout: socketTimeout,
		logger:        logger,
	}
}

// Start binds the unix socket, removing a stale one first, and serves until
// Stop.
func (s *LocalServer) Start() error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove stale socket %s", s.socketPath)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return errors.Wrapf(err, "failed to bind local socket %s", s.socketPath)
	}
	s.listener = listener
	s.logger.Sugar().Infow("Listening for local connections", "socket", s.socketPath)

	go s.acceptLoop()
	return nil
}

// Stop closes the listener and removes the socket file.
func (s *LocalServer) Stop() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	_ = os.Remove(s.socketPath)
	return err
}

func (s *LocalServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.logger.Sugar().Debugw("Local listener closed", "error", err)
			return
		}
		go s.handleConn(conn)
	}
}

func (s *LocalServer) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	if err := conn.SetDeadline(time.Now().Add(s.socketTimeout)); err != nil {
		s.logger.Sugar().Warnw("Failed to set socket deadline", "error", err)
		return
	}

	var payload types.ResponsePayload
	req, err := s.readRequest(conn)
	if err != nil {
		payload = types.ErrorResponse{Err: types.NewParseError(err.Error())}
		// Reply with id 0; the request id never parsed.
		req = &types.RequestMessage{}
	} else if !req.Payload.VisibleTo(types.VisibilityLocal) {
		payload = types.ErrorResponse{Err: types.NewExternalError(
			fmt.Sprintf("request %s is not locally visible", req.Payload))}
	} else {
		result, err := s.handler.Receive(req)
		if err != nil {
			payload = types.ErrorResponse{Err: types.AsApiError(err)}
		} else {
			payload = result
		}
	}

	resp := &types.ResponseMessage{
		ID:      req.ID,
		Version: config.ProtocolVersion,
		Sender:  types.NewCliSender(),
		Payload: payload,
	}
	data, err := s.codec.EncodeResponse(resp)
	if err != nil {
		s.logger.Sugar().Warnw("Failed to encode local response", "error", err)
		return
	}
	if err := wire.WriteFrame(conn, data); err != nil {
		s.logger.Sugar().Warnw("Failed to send local response", "error", err)
	}
}

func (s *LocalServer) readRequest(conn net.Conn) (*types.RequestMessage, error) {
	data, err := wire.ReadFrame(conn)
	if err != nil {
		return nil, err
	}
	req, err := s.codec.DecodeRequest(data)
	if err != nil {
		return nil, err
	}
	// Whatever the frame claims, requests on the local socket are from the
	// local CLI.
	req.Sender = types.NewCliSender()
	return req, nil
}
