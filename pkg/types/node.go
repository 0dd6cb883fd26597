package types

import "fmt"

// Node pairs a Key with the Address it can be reached at. Equality is by Key
// only: a node that moves address is still the same node.
type Node struct {
	Key     *Key    `json:"key"`
	Address Address `json:"address"`
}

// NewNode builds a Node.
func NewNode(key *Key, address Address) *Node {
	return &Node{Key: key, Address: address}
}

// Equal reports whether both nodes share the same key.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.Key.Equal(other.Key)
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s@%s", n.Key, n.Address)
}

// MessageSender identifies who sent a request: a remote node, or the local
// CLI over the local transport.
type MessageSender struct {
	Node *Node `json:"node,omitempty"`
}

// NewNodeSender marks a request as originating from a remote node.
func NewNodeSender(n *Node) MessageSender { return MessageSender{Node: n} }

// NewCliSender marks a request as originating from the local CLI.
func NewCliSender() MessageSender { return MessageSender{} }

// IsCli reports whether the sender is the local CLI.
func (s MessageSender) IsCli() bool { return s.Node == nil }

func (s MessageSender) String() string {
	if s.Node == nil {
		return "cli"
	}
	return s.Node.String()
}
