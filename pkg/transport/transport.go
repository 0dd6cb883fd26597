// Package transport carries framed messages between nodes (TCP, enveloped)
// and between the CLI and the daemon (unix socket, plain).
package transport

import "github.com/kipa-net/kipa/pkg/types"

// RequestHandler receives inbound requests that passed transport checks.
type RequestHandler interface {
	Receive(msg *types.RequestMessage) (types.ResponsePayload, error)
}
