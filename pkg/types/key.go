package types

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"github.com/ProtonMail/go-crypto/openpgp"
)

var keyIDPattern = regexp.MustCompile(`^[0-9A-Fa-f]{8}$`)

// Key identifies a participant by its PGP public key. A Key carries the
// eight-hex-character short id, the exported key material, and (lazily) the
// parsed certificate. Keys compare and hash by their short id and are
// immutable after construction.
type Key struct {
	id       string
	material []byte

	entityOnce sync.Once
	entity     *openpgp.Entity
	entityErr  error
}

// NewKey builds a Key from a short id and exported public key material. The
// id must be eight hex characters.
func NewKey(id string, material []byte) (*Key, error) {
	if !keyIDPattern.MatchString(id) {
		return nil, fmt.Errorf("invalid key id %q: must be 8 hex characters", id)
	}
	return &Key{id: id, material: append([]byte(nil), material...)}, nil
}

// ParseKey parses exported PGP public key material and derives the short id
// from the primary key.
func ParseKey(material []byte) (*Key, error) {
	ring, err := openpgp.ReadKeyRing(bytes.NewReader(material))
	if err != nil {
		return nil, fmt.Errorf("failed to parse key material: %w", err)
	}
	if len(ring) != 1 {
		return nil, fmt.Errorf("expected exactly one key in material, got %d", len(ring))
	}
	entity := ring[0]
	k := &Key{
		id:       entity.PrimaryKey.KeyIdShortString(),
		material: append([]byte(nil), material...),
		entity:   entity,
	}
	k.entityOnce.Do(func() {})
	return k, nil
}

// ID returns the eight-hex-character short id.
func (k *Key) ID() string { return k.id }

// Material returns the exported public key bytes.
func (k *Key) Material() []byte { return k.material }

// Entity parses and returns the PGP certificate. Parsing happens at most
// once; keys that never reach a PGP backend are never parsed.
func (k *Key) Entity() (*openpgp.Entity, error) {
	k.entityOnce.Do(func() {
		ring, err := openpgp.ReadKeyRing(bytes.NewReader(k.material))
		if err != nil {
			k.entityErr = fmt.Errorf("failed to parse key material for %s: %w", k.id, err)
			return
		}
		if len(ring) != 1 {
			k.entityErr = fmt.Errorf("expected exactly one key in material for %s, got %d", k.id, len(ring))
			return
		}
		k.entity = ring[0]
	})
	return k.entity, k.entityErr
}

// Equal reports whether both keys have the same short id.
func (k *Key) Equal(other *Key) bool {
	if k == nil || other == nil {
		return k == other
	}
	return k.id == other.id
}

func (k *Key) String() string {
	if k == nil {
		return "<nil>"
	}
	return k.id
}

type keyJSON struct {
	KeyID string `json:"keyId"`
	Data  string `json:"data,omitempty"`
}

// MarshalJSON encodes the short id and base64 key material.
func (k *Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(keyJSON{
		KeyID: k.id,
		Data:  base64.StdEncoding.EncodeToString(k.material),
	})
}

// UnmarshalJSON decodes a key without parsing the certificate.
func (k *Key) UnmarshalJSON(data []byte) error {
	var raw keyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !keyIDPattern.MatchString(raw.KeyID) {
		return fmt.Errorf("invalid key id %q", raw.KeyID)
	}
	material, err := base64.StdEncoding.DecodeString(raw.Data)
	if err != nil {
		return fmt.Errorf("invalid key material encoding: %w", err)
	}
	k.id = raw.KeyID
	k.material = material
	return nil
}

// SecretKey is a Key together with its parsed secret certificate. It never
// leaves the local process.
type SecretKey struct {
	public *Key
	entity *openpgp.Entity
}

// NewSecretKey wraps a parsed secret certificate and its public half.
func NewSecretKey(public *Key, entity *openpgp.Entity) *SecretKey {
	return &SecretKey{public: public, entity: entity}
}

// Public returns the public half.
func (s *SecretKey) Public() *Key { return s.public }

// Entity returns the parsed secret certificate.
func (s *SecretKey) Entity() *openpgp.Entity { return s.entity }

func (s *SecretKey) String() string { return s.public.ID() }
