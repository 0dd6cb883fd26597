package pgp

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"

	"github.com/kipa-net/kipa/pkg/types"
)

// NullKeyHandler is an identity-with-a-tag backend for tests and loopback
// deployments: the "envelope" is a header naming sender and recipient,
// followed by the plaintext. It preserves the round-trip property without
// any key material.
type NullKeyHandler struct{}

// NewNullKeyHandler creates the null backend.
func NewNullKeyHandler() *NullKeyHandler { return &NullKeyHandler{} }

func nullHeader(senderID, recipientID string) []byte {
	return []byte(fmt.Sprintf("null-envelope:%s:%s:", senderID, recipientID))
}

func splitNullEnvelope(data []byte) (senderID, recipientID string, body []byte, err error) {
	parts := bytes.SplitN(data, []byte(":"), 4)
	if len(parts) != 4 || string(parts[0]) != "null-envelope" {
		return "", "", nil, errors.New("not a null envelope")
	}
	return string(parts[1]), string(parts[2]), parts[3], nil
}

// EncryptAndSign tags the plaintext with sender and recipient ids.
func (h *NullKeyHandler) EncryptAndSign(data []byte, sender *types.SecretKey, recipient *types.Key) ([]byte, error) {
	return append(nullHeader(sender.Public().ID(), recipient.ID()), data...), nil
}

// Decrypt strips the tag, checking the envelope is addressed to recipient.
func (h *NullKeyHandler) Decrypt(data []byte, recipient *types.SecretKey) ([]byte, error) {
	_, recipientID, body, err := splitNullEnvelope(data)
	if err != nil {
		return nil, err
	}
	if recipientID != recipient.Public().ID() {
		return nil, errors.Errorf("envelope addressed to %s, not %s", recipientID, recipient.Public().ID())
	}
	return body, nil
}

// DecryptAndVerify additionally checks the tagged sender id.
func (h *NullKeyHandler) DecryptAndVerify(data []byte, sender *types.Key, recipient *types.SecretKey) ([]byte, error) {
	senderID, recipientID, body, err := splitNullEnvelope(data)
	if err != nil {
		return nil, err
	}
	if recipientID != recipient.Public().ID() {
		return nil, errors.Errorf("envelope addressed to %s, not %s", recipientID, recipient.Public().ID())
	}
	if senderID != sender.ID() {
		return nil, errors.Errorf("envelope signed by %s, expected %s", senderID, sender.ID())
	}
	return body, nil
}
