package pgp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeArmoredRing(t *testing.T, path, blockType string, entities []*openpgp.Entity, private bool) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	w, err := armor.Encode(f, blockType, nil)
	require.NoError(t, err)
	for _, entity := range entities {
		if private {
			require.NoError(t, entity.SerializePrivate(w, nil))
		} else {
			require.NoError(t, entity.Serialize(w))
		}
	}
	require.NoError(t, w.Close())
}

func Test_KeyStore(t *testing.T) {
	dir := t.TempDir()

	alice, err := openpgp.NewEntity("alice", "", "alice@kipa.test", nil)
	require.NoError(t, err)
	bob, err := openpgp.NewEntity("bob", "", "bob@kipa.test", nil)
	require.NoError(t, err)

	writeArmoredRing(t, filepath.Join(dir, "pubring.asc"), openpgp.PublicKeyType,
		[]*openpgp.Entity{alice, bob}, false)
	writeArmoredRing(t, filepath.Join(dir, "secring.asc"), openpgp.PrivateKeyType,
		[]*openpgp.Entity{alice}, true)

	store, err := NewKeyStore(dir, zap.NewNop())
	require.NoError(t, err)

	aliceID := alice.PrimaryKey.KeyIdShortString()
	bobID := bob.PrimaryKey.KeyIdShortString()

	t.Run("ResolvesPublicKey", func(t *testing.T) {
		key, err := store.Key(bobID)
		require.NoError(t, err)
		require.Equal(t, bobID, key.ID())

		entity, err := key.Entity()
		require.NoError(t, err)
		require.Equal(t, bob.PrimaryKey.KeyId, entity.PrimaryKey.KeyId)
	})

	t.Run("ResolvesSecretKey", func(t *testing.T) {
		secret, err := store.SecretKey(aliceID)
		require.NoError(t, err)
		require.Equal(t, aliceID, secret.Public().ID())
		require.NotNil(t, secret.Entity().PrivateKey)
	})

	t.Run("CaseInsensitiveLookup", func(t *testing.T) {
		// Short ids are uppercase hex; lowercase queries still resolve.
		lower := make([]byte, len(aliceID))
		for i := 0; i < len(aliceID); i++ {
			c := aliceID[i]
			if c >= 'A' && c <= 'F' {
				c += 'a' - 'A'
			}
			lower[i] = c
		}
		_, err := store.Key(string(lower))
		require.NoError(t, err)
	})

	t.Run("UnknownKey", func(t *testing.T) {
		_, err := store.Key("00000000")
		require.Error(t, err)
	})

	t.Run("NoSecretMaterial", func(t *testing.T) {
		_, err := store.SecretKey(bobID)
		require.Error(t, err)
	})

	t.Run("MissingRingsAreEmpty", func(t *testing.T) {
		empty, err := NewKeyStore(t.TempDir(), zap.NewNop())
		require.NoError(t, err)
		_, err = empty.Key(aliceID)
		require.Error(t, err)
	})
}
