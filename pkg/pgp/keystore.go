package pgp

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kipa-net/kipa/pkg/types"
)

const (
	pubringFile = "pubring.asc"
	secringFile = "secring.asc"
)

// KeyStore resolves eight-hex-character key ids against armored keyrings
// exported from the operator's GnuPG home.
type KeyStore struct {
	publics openpgp.EntityList
	secrets openpgp.EntityList
	logger  *zap.Logger
}

// NewKeyStore reads pubring.asc and secring.asc from dir. A missing ring is
// treated as empty.
func NewKeyStore(dir string, logger *zap.Logger) (*KeyStore, error) {
	publics, err := readRing(filepath.Join(dir, pubringFile))
	if err != nil {
		return nil, err
	}
	secrets, err := readRing(filepath.Join(dir, secringFile))
	if err != nil {
		return nil, err
	}
	logger.Sugar().Debugw("Loaded keyrings",
		"dir", dir, "public_keys", len(publics), "secret_keys", len(secrets))
	return &KeyStore{publics: publics, secrets: secrets, logger: logger}, nil
}

func readRing(path string) (openpgp.EntityList, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read keyring %s", path)
	}
	ring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse keyring %s", path)
	}
	return ring, nil
}

func findEntity(ring openpgp.EntityList, keyID string) *openpgp.Entity {
	want := strings.ToUpper(keyID)
	for _, entity := range ring {
		if entity.PrimaryKey.KeyIdShortString() == want {
			return entity
		}
	}
	return nil
}

// Key resolves a public key by short id.
func (s *KeyStore) Key(keyID string) (*types.Key, error) {
	entity := findEntity(s.publics, keyID)
	if entity == nil {
		entity = findEntity(s.secrets, keyID)
	}
	if entity == nil {
		return nil, errors.Errorf("key %s not found in keyring", keyID)
	}

	var buf bytes.Buffer
	if err := entity.Serialize(&buf); err != nil {
		return nil, errors.Wrapf(err, "failed to export key %s", keyID)
	}
	return types.ParseKey(buf.Bytes())
}

// SecretKey resolves a secret key by short id.
func (s *KeyStore) SecretKey(keyID string) (*types.SecretKey, error) {
	entity := findEntity(s.secrets, keyID)
	if entity == nil {
		return nil, errors.Errorf("secret key %s not found in keyring", keyID)
	}
	if entity.PrivateKey == nil {
		return nil, errors.Errorf("key %s carries no secret material", keyID)
	}

	public, err := s.Key(keyID)
	if err != nil {
		return nil, err
	}
	return types.NewSecretKey(public, entity), nil
}
