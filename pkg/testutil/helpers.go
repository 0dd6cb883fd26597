// Package testutil provides deterministic keys and nodes for tests. Test
// keys carry synthetic material, so they only work with the null crypto
// backend.
package testutil

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kipa-net/kipa/pkg/types"
)

// CreateTestKey builds a key with the given eight-hex-character id and
// synthetic material derived from it, so distinct ids embed to distinct
// key-space points.
func CreateTestKey(t *testing.T, id string) *types.Key {
	t.Helper()
	key, err := types.NewKey(id, []byte(fmt.Sprintf("test-key-material-%s", id)))
	require.NoError(t, err)
	return key
}

// CreateTestSecretKey wraps a test key as a secret identity for the null
// crypto backend.
func CreateTestSecretKey(t *testing.T, id string) *types.SecretKey {
	t.Helper()
	return types.NewSecretKey(CreateTestKey(t, id), nil)
}

// CreateTestNode builds a loopback node with the given key id and port.
func CreateTestNode(t *testing.T, id string, port uint16) *types.Node {
	t.Helper()
	return types.NewNode(CreateTestKey(t, id), types.NewAddress(net.IPv4(127, 0, 0, 1), port))
}

// CreateTestKeys builds n distinct test keys with generated ids.
func CreateTestKeys(t *testing.T, n int) []*types.Key {
	t.Helper()
	keys := make([]*types.Key, n)
	for i := 0; i < n; i++ {
		keys[i] = CreateTestKey(t, fmt.Sprintf("%08X", 0xA0000000+uint32(i)))
	}
	return keys
}
