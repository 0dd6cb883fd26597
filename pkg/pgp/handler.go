// Package pgp implements the crypto envelope applied to every global wire
// message: sign with the sender's key, encrypt for the recipient.
package pgp

import "github.com/kipa-net/kipa/pkg/types"

// IKeyHandler wraps the envelope operations. The concrete backend is
// replaceable; errors are opaque to callers, only accepted/rejected is
// observable.
type IKeyHandler interface {
	// EncryptAndSign produces a single message signed by sender and
	// encrypted for recipient.
	EncryptAndSign(data []byte, sender *types.SecretKey, recipient *types.Key) ([]byte, error)

	// Decrypt opens the envelope without verifying the signature. Servers
	// use it to learn the sender named inside the message before enforcing
	// DecryptAndVerify against that sender's key.
	Decrypt(data []byte, recipient *types.SecretKey) ([]byte, error)

	// DecryptAndVerify decrypts with the recipient's key and requires
	// exactly one signature verifying under the expected sender's key. Any
	// other structure is rejected.
	DecryptAndVerify(data []byte, sender *types.Key, recipient *types.SecretKey) ([]byte, error)
}
