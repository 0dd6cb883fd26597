package pgp

import (
	"bytes"
	"io"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kipa-net/kipa/pkg/types"
)

// KeyHandler is the OpenPGP backend of the envelope.
type KeyHandler struct {
	logger *zap.Logger
}

// NewKeyHandler creates the OpenPGP envelope backend.
func NewKeyHandler(logger *zap.Logger) *KeyHandler {
	return &KeyHandler{logger: logger}
}

// EncryptAndSign signs data with the sender's key and encrypts it for the
// recipient, producing one PGP message.
func (h *KeyHandler) EncryptAndSign(data []byte, sender *types.SecretKey, recipient *types.Key) ([]byte, error) {
	recipientEntity, err := recipient.Entity()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse recipient key")
	}

	var buf bytes.Buffer
	plaintext, err := openpgp.Encrypt(&buf, []*openpgp.Entity{recipientEntity}, sender.Entity(), nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialise encryptor")
	}
	if _, err := plaintext.Write(data); err != nil {
		return nil, errors.Wrap(err, "failed to encrypt data")
	}
	if err := plaintext.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finalise envelope")
	}

	h.logger.Sugar().Debugw("Encrypted envelope",
		"plaintext_len", len(data), "sender", sender.String(), "recipient", recipient.ID())
	return buf.Bytes(), nil
}

// Decrypt opens the envelope with the recipient's key, skipping signature
// verification.
func (h *KeyHandler) Decrypt(data []byte, recipient *types.SecretKey) ([]byte, error) {
	keyring := openpgp.EntityList{recipient.Entity()}
	md, err := openpgp.ReadMessage(bytes.NewReader(data), keyring, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read envelope")
	}
	plaintext, err := io.ReadAll(md.UnverifiedBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt envelope body")
	}
	return plaintext, nil
}

// DecryptAndVerify decrypts with the recipient's key and requires the one
// signature to verify under the expected sender's key.
func (h *KeyHandler) DecryptAndVerify(data []byte, sender *types.Key, recipient *types.SecretKey) ([]byte, error) {
	senderEntity, err := sender.Entity()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse sender key")
	}

	keyring := openpgp.EntityList{recipient.Entity(), senderEntity}
	md, err := openpgp.ReadMessage(bytes.NewReader(data), keyring, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read envelope")
	}

	// The body must be drained before the trailing signature is checked.
	plaintext, err := io.ReadAll(md.UnverifiedBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt envelope body")
	}

	if !md.IsEncrypted {
		return nil, errors.New("envelope is not encrypted")
	}
	if !md.IsSigned {
		return nil, errors.New("envelope is not signed")
	}
	if md.SignatureError != nil {
		return nil, errors.Wrap(md.SignatureError, "signature verification failed")
	}
	if md.SignedBy == nil || md.SignedBy.Entity == nil ||
		md.SignedBy.Entity.PrimaryKey.KeyId != senderEntity.PrimaryKey.KeyId {
		return nil, errors.Errorf("envelope not signed by expected sender %s", sender.ID())
	}

	h.logger.Sugar().Debugw("Verified envelope",
		"plaintext_len", len(plaintext), "sender", sender.ID(), "recipient", recipient.String())
	return plaintext, nil
}
