package types

import "fmt"

// Visibility says which transports may carry a request payload.
type Visibility int

const (
	// VisibilityLocal marks payloads accepted from the local CLI socket.
	VisibilityLocal Visibility = iota
	// VisibilityGlobal marks payloads accepted from remote nodes.
	VisibilityGlobal
)

func (v Visibility) String() string {
	switch v {
	case VisibilityLocal:
		return "local"
	case VisibilityGlobal:
		return "global"
	default:
		return fmt.Sprintf("visibility(%d)", int(v))
	}
}

// RequestPayload is the request half of the API sum type.
type RequestPayload interface {
	// VisibleTo reports whether the payload may arrive over the given
	// transport category.
	VisibleTo(v Visibility) bool
	fmt.Stringer
}

// QueryRequest asks a node which of its neighbours are closest to Key.
// The only inter-node RPC.
type QueryRequest struct {
	Key *Key
}

func (QueryRequest) VisibleTo(Visibility) bool { return true }
func (r QueryRequest) String() string          { return fmt.Sprintf("query(%s)", r.Key) }

// SearchRequest asks the daemon to locate the owner of Key.
type SearchRequest struct {
	Key *Key
}

func (SearchRequest) VisibleTo(v Visibility) bool { return v == VisibilityLocal }
func (r SearchRequest) String() string            { return fmt.Sprintf("search(%s)", r.Key) }

// ConnectRequest asks the daemon to join the network via the given node.
type ConnectRequest struct {
	Node *Node
}

func (ConnectRequest) VisibleTo(v Visibility) bool { return v == VisibilityLocal }
func (r ConnectRequest) String() string            { return fmt.Sprintf("connect(%s)", r.Node) }

// ListNeighboursRequest asks for a snapshot of the neighbours store.
type ListNeighboursRequest struct{}

func (ListNeighboursRequest) VisibleTo(Visibility) bool { return true }
func (ListNeighboursRequest) String() string            { return "list-neighbours" }

// ResponsePayload is the response half of the API sum type.
type ResponsePayload interface {
	fmt.Stringer
}

// QueryResponse carries the neighbours closest to the queried key.
type QueryResponse struct {
	Nodes []*Node
}

func (r QueryResponse) String() string { return fmt.Sprintf("query-response(%d nodes)", len(r.Nodes)) }

// SearchResponse carries the located node, or nil if the search exhausted.
type SearchResponse struct {
	Node *Node
}

func (r SearchResponse) String() string {
	if r.Node == nil {
		return "search-response(none)"
	}
	return fmt.Sprintf("search-response(%s)", r.Node)
}

// ConnectResponse acknowledges a completed connect. Intentionally empty.
type ConnectResponse struct{}

func (ConnectResponse) String() string { return "connect-response" }

// ListNeighboursResponse carries the neighbours store snapshot.
type ListNeighboursResponse struct {
	Nodes []*Node
}

func (r ListNeighboursResponse) String() string {
	return fmt.Sprintf("list-neighbours-response(%d nodes)", len(r.Nodes))
}

// ErrorResponse carries an ApiError back to the requester.
type ErrorResponse struct {
	Err *ApiError
}

func (r ErrorResponse) String() string { return fmt.Sprintf("error-response(%v)", r.Err) }

// RequestMessage wraps a request payload with its correlation id, the
// sender's advertised protocol version, and the sender identity.
type RequestMessage struct {
	ID      uint32
	Version string
	Sender  MessageSender
	Payload RequestPayload
}

// ResponseMessage wraps a response payload the same way.
type ResponseMessage struct {
	ID      uint32
	Version string
	Sender  MessageSender
	Payload ResponsePayload
}
