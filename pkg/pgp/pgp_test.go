package pgp

import (
	"bytes"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kipa-net/kipa/pkg/testutil"
	"github.com/kipa-net/kipa/pkg/types"
)

func Test_NullKeyHandler(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) { testNullRoundTrip(t) })
	t.Run("WrongRecipient", func(t *testing.T) { testNullWrongRecipient(t) })
	t.Run("WrongSender", func(t *testing.T) { testNullWrongSender(t) })
	t.Run("Garbage", func(t *testing.T) { testNullGarbage(t) })
}

func testNullRoundTrip(t *testing.T) {
	h := NewNullKeyHandler()
	sender := testutil.CreateTestSecretKey(t, "AAAAAAAA")
	recipient := testutil.CreateTestSecretKey(t, "BBBBBBBB")

	plaintext := []byte("locate 01234567")
	envelope, err := h.EncryptAndSign(plaintext, sender, recipient.Public())
	require.NoError(t, err)
	require.NotEqual(t, plaintext, envelope)

	got, err := h.DecryptAndVerify(envelope, sender.Public(), recipient)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)

	unverified, err := h.Decrypt(envelope, recipient)
	require.NoError(t, err)
	require.Equal(t, plaintext, unverified)
}

func testNullWrongRecipient(t *testing.T) {
	h := NewNullKeyHandler()
	sender := testutil.CreateTestSecretKey(t, "AAAAAAAA")
	recipient := testutil.CreateTestSecretKey(t, "BBBBBBBB")
	other := testutil.CreateTestSecretKey(t, "CCCCCCCC")

	envelope, err := h.EncryptAndSign([]byte("data"), sender, recipient.Public())
	require.NoError(t, err)

	_, err = h.DecryptAndVerify(envelope, sender.Public(), other)
	require.Error(t, err)
	_, err = h.Decrypt(envelope, other)
	require.Error(t, err)
}

func testNullWrongSender(t *testing.T) {
	h := NewNullKeyHandler()
	sender := testutil.CreateTestSecretKey(t, "AAAAAAAA")
	recipient := testutil.CreateTestSecretKey(t, "BBBBBBBB")
	impostor := testutil.CreateTestKey(t, "DDDDDDDD")

	envelope, err := h.EncryptAndSign([]byte("data"), sender, recipient.Public())
	require.NoError(t, err)

	_, err = h.DecryptAndVerify(envelope, impostor, recipient)
	require.Error(t, err)
}

func testNullGarbage(t *testing.T) {
	h := NewNullKeyHandler()
	recipient := testutil.CreateTestSecretKey(t, "BBBBBBBB")
	_, err := h.Decrypt([]byte("definitely not an envelope"), recipient)
	require.Error(t, err)
}

// generateTestIdentity creates a fresh PGP identity for envelope tests.
func generateTestIdentity(t *testing.T, name string) (*types.SecretKey, *types.Key) {
	t.Helper()
	entity, err := openpgp.NewEntity(name, "", name+"@kipa.test", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, entity.Serialize(&buf))
	public, err := types.ParseKey(buf.Bytes())
	require.NoError(t, err)
	return types.NewSecretKey(public, entity), public
}

func Test_KeyHandler(t *testing.T) {
	h := NewKeyHandler(zap.NewNop())
	senderSecret, senderPublic := generateTestIdentity(t, "sender")
	recipientSecret, recipientPublic := generateTestIdentity(t, "recipient")

	t.Run("RoundTrip", func(t *testing.T) {
		plaintext := []byte("signed and sealed")
		envelope, err := h.EncryptAndSign(plaintext, senderSecret, recipientPublic)
		require.NoError(t, err)
		require.NotContains(t, string(envelope), "signed and sealed")

		got, err := h.DecryptAndVerify(envelope, senderPublic, recipientSecret)
		require.NoError(t, err)
		require.Equal(t, plaintext, got)
	})

	t.Run("DecryptWithoutVerification", func(t *testing.T) {
		plaintext := []byte("peek at the sender")
		envelope, err := h.EncryptAndSign(plaintext, senderSecret, recipientPublic)
		require.NoError(t, err)

		got, err := h.Decrypt(envelope, recipientSecret)
		require.NoError(t, err)
		require.Equal(t, plaintext, got)
	})

	t.Run("WrongExpectedSender", func(t *testing.T) {
		_, impostorPublic := generateTestIdentity(t, "impostor")

		envelope, err := h.EncryptAndSign([]byte("data"), senderSecret, recipientPublic)
		require.NoError(t, err)

		_, err = h.DecryptAndVerify(envelope, impostorPublic, recipientSecret)
		require.Error(t, err)
	})

	t.Run("WrongRecipient", func(t *testing.T) {
		otherSecret, _ := generateTestIdentity(t, "other")

		envelope, err := h.EncryptAndSign([]byte("data"), senderSecret, recipientPublic)
		require.NoError(t, err)

		_, err = h.DecryptAndVerify(envelope, senderPublic, otherSecret)
		require.Error(t, err)
	})

	t.Run("TamperedEnvelope", func(t *testing.T) {
		envelope, err := h.EncryptAndSign([]byte("data"), senderSecret, recipientPublic)
		require.NoError(t, err)

		tampered := append([]byte(nil), envelope...)
		tampered[len(tampered)/2] ^= 0xFF
		_, err = h.DecryptAndVerify(tampered, senderPublic, recipientSecret)
		require.Error(t, err)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := h.DecryptAndVerify([]byte("not pgp"), senderPublic, recipientSecret)
		require.Error(t, err)
	})
}
