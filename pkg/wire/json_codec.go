package wire

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/kipa-net/kipa/pkg/types"
)

// JSONCodec is the default codec. The wire shape is a record with one
// optional field per payload variant, mirroring the tagged union; exactly
// one field must be present.
type JSONCodec struct{}

// NewJSONCodec creates the default codec.
func NewJSONCodec() *JSONCodec { return &JSONCodec{} }

type emptyBody struct{}

type jsonRequestBody struct {
	Query          *keyBody   `json:"query,omitempty"`
	Search         *keyBody   `json:"search,omitempty"`
	Connect        *nodeBody  `json:"connect,omitempty"`
	ListNeighbours *emptyBody `json:"listNeighbours,omitempty"`
}

type jsonResponseBody struct {
	Query          *nodesBody      `json:"query,omitempty"`
	Search         *optNodeBody    `json:"search,omitempty"`
	Connect        *emptyBody      `json:"connect,omitempty"`
	ListNeighbours *nodesBody      `json:"listNeighbours,omitempty"`
	Error          *types.ApiError `json:"error,omitempty"`
}

type keyBody struct {
	Key *types.Key `json:"key"`
}

type nodeBody struct {
	Node *types.Node `json:"node"`
}

type nodesBody struct {
	Nodes []*types.Node `json:"nodes"`
}

type optNodeBody struct {
	Node *types.Node `json:"node,omitempty"`
}

type jsonRequestMessage struct {
	ID      uint32          `json:"id"`
	Version string          `json:"version"`
	Sender  *types.Node     `json:"sender,omitempty"`
	Payload jsonRequestBody `json:"payload"`
}

type jsonResponseMessage struct {
	ID      uint32           `json:"id"`
	Version string           `json:"version"`
	Sender  *types.Node      `json:"sender,omitempty"`
	Payload jsonResponseBody `json:"payload"`
}

// EncodeRequest serialises a request message.
func (c *JSONCodec) EncodeRequest(msg *types.RequestMessage) ([]byte, error) {
	out := jsonRequestMessage{
		ID:      msg.ID,
		Version: msg.Version,
		Sender:  msg.Sender.Node,
	}
	switch p := msg.Payload.(type) {
	case types.QueryRequest:
		out.Payload.Query = &keyBody{Key: p.Key}
	case types.SearchRequest:
		out.Payload.Search = &keyBody{Key: p.Key}
	case types.ConnectRequest:
		out.Payload.Connect = &nodeBody{Node: p.Node}
	case types.ListNeighboursRequest:
		out.Payload.ListNeighbours = &emptyBody{}
	default:
		return nil, errors.Errorf("unknown request payload %T", msg.Payload)
	}
	return json.Marshal(out)
}

// DecodeRequest parses a request message, requiring exactly one payload
// variant.
func (c *JSONCodec) DecodeRequest(data []byte) (*types.RequestMessage, error) {
	var raw jsonRequestMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode request")
	}

	msg := &types.RequestMessage{
		ID:      raw.ID,
		Version: raw.Version,
	}
	if raw.Sender != nil {
		msg.Sender = types.NewNodeSender(raw.Sender)
	} else {
		msg.Sender = types.NewCliSender()
	}

	variants := 0
	if raw.Payload.Query != nil {
		variants++
		msg.Payload = types.QueryRequest{Key: raw.Payload.Query.Key}
	}
	if raw.Payload.Search != nil {
		variants++
		msg.Payload = types.SearchRequest{Key: raw.Payload.Search.Key}
	}
	if raw.Payload.Connect != nil {
		variants++
		msg.Payload = types.ConnectRequest{Node: raw.Payload.Connect.Node}
	}
	if raw.Payload.ListNeighbours != nil {
		variants++
		msg.Payload = types.ListNeighboursRequest{}
	}
	if variants != 1 {
		return nil, errors.Errorf("request must carry exactly one payload, got %d", variants)
	}
	return msg, nil
}

// EncodeResponse serialises a response message.
func (c *JSONCodec) EncodeResponse(msg *types.ResponseMessage) ([]byte, error) {
	out := jsonResponseMessage{
		ID:      msg.ID,
		Version: msg.Version,
		Sender:  msg.Sender.Node,
	}
	switch p := msg.Payload.(type) {
	case types.QueryResponse:
		out.Payload.Query = &nodesBody{Nodes: p.Nodes}
	case types.SearchResponse:
		out.Payload.Search = &optNodeBody{Node: p.Node}
	case types.ConnectResponse:
		out.Payload.Connect = &emptyBody{}
	case types.ListNeighboursResponse:
		out.Payload.ListNeighbours = &nodesBody{Nodes: p.Nodes}
	case types.ErrorResponse:
		out.Payload.Error = p.Err
	default:
		return nil, errors.Errorf("unknown response payload %T", msg.Payload)
	}
	return json.Marshal(out)
}

// DecodeResponse parses a response message, requiring exactly one payload
// variant.
func (c *JSONCodec) DecodeResponse(data []byte) (*types.ResponseMessage, error) {
	var raw jsonResponseMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode response")
	}

	msg := &types.ResponseMessage{
		ID:      raw.ID,
		Version: raw.Version,
	}
	if raw.Sender != nil {
		msg.Sender = types.NewNodeSender(raw.Sender)
	} else {
		msg.Sender = types.NewCliSender()
	}

	variants := 0
	if raw.Payload.Query != nil {
		variants++
		msg.Payload = types.QueryResponse{Nodes: raw.Payload.Query.Nodes}
	}
	if raw.Payload.Search != nil {
		variants++
		msg.Payload = types.SearchResponse{Node: raw.Payload.Search.Node}
	}
	if raw.Payload.Connect != nil {
		variants++
		msg.Payload = types.ConnectResponse{}
	}
	if raw.Payload.ListNeighbours != nil {
		variants++
		msg.Payload = types.ListNeighboursResponse{Nodes: raw.Payload.ListNeighbours.Nodes}
	}
	if raw.Payload.Error != nil {
		variants++
		msg.Payload = types.ErrorResponse{Err: raw.Payload.Error}
	}
	if variants != 1 {
		return nil, errors.Errorf("response must carry exactly one payload, got %d", variants)
	}
	return msg, nil
}
