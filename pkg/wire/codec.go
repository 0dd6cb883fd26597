package wire

import "github.com/kipa-net/kipa/pkg/types"

// Codec converts request and response messages to and from wire bytes. The
// byte layout is a presentation concern; implementations are interchangeable
// as long as both ends agree.
type Codec interface {
	EncodeRequest(msg *types.RequestMessage) ([]byte, error)
	DecodeRequest(data []byte) (*types.RequestMessage, error)
	EncodeResponse(msg *types.ResponseMessage) ([]byte, error)
	DecodeResponse(data []byte) (*types.ResponseMessage, error)
}
