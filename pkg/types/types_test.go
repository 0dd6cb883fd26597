package types

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Key(t *testing.T) {
	t.Run("ValidatesID", func(t *testing.T) {
		_, err := NewKey("short", []byte("material"))
		require.Error(t, err)
		_, err = NewKey("GGGGGGGG", []byte("material"))
		require.Error(t, err)
		_, err = NewKey("AAAAAAAA", []byte("material"))
		require.NoError(t, err)
	})

	t.Run("EqualityByID", func(t *testing.T) {
		a, err := NewKey("AAAAAAAA", []byte("one"))
		require.NoError(t, err)
		b, err := NewKey("AAAAAAAA", []byte("two"))
		require.NoError(t, err)
		c, err := NewKey("BBBBBBBB", []byte("one"))
		require.NoError(t, err)

		require.True(t, a.Equal(b))
		require.False(t, a.Equal(c))
		require.False(t, a.Equal(nil))
	})

	t.Run("JSONRoundTrip", func(t *testing.T) {
		key, err := NewKey("ABCD1234", []byte("key material bytes"))
		require.NoError(t, err)

		data, err := json.Marshal(key)
		require.NoError(t, err)

		var decoded Key
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.Equal(t, key.ID(), decoded.ID())
		require.Equal(t, key.Material(), decoded.Material())
	})
}

func Test_Address(t *testing.T) {
	t.Run("ParseRoundTrip", func(t *testing.T) {
		for _, s := range []string{"127.0.0.1:10842", "10.1.2.3:1", "[::1]:20001"} {
			addr, err := ParseAddress(s)
			require.NoError(t, err)
			again, err := ParseAddress(addr.String())
			require.NoError(t, err)
			require.True(t, addr.Equal(again))
		}
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		for _, s := range []string{"", "no-port", "host.name:80", "127.0.0.1:99999"} {
			_, err := ParseAddress(s)
			require.Error(t, err, "expected %q to be rejected", s)
		}
	})

	t.Run("FromNetAddr", func(t *testing.T) {
		addr, err := FromNetAddr(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 10842})
		require.NoError(t, err)
		require.Equal(t, "127.0.0.1:10842", addr.String())
		require.Equal(t, uint16(10842), addr.Port())
	})
}

func Test_Node(t *testing.T) {
	keyA, err := NewKey("AAAAAAAA", []byte("a"))
	require.NoError(t, err)
	keyB, err := NewKey("BBBBBBBB", []byte("b"))
	require.NoError(t, err)
	addr := NewAddress(net.IPv4(127, 0, 0, 1), 10842)

	t.Run("EqualityByKeyOnly", func(t *testing.T) {
		moved := NewNode(keyA, NewAddress(net.IPv4(10, 0, 0, 1), 1))
		require.True(t, NewNode(keyA, addr).Equal(moved))
		require.False(t, NewNode(keyA, addr).Equal(NewNode(keyB, addr)))
	})

	t.Run("Sender", func(t *testing.T) {
		require.True(t, NewCliSender().IsCli())
		require.False(t, NewNodeSender(NewNode(keyA, addr)).IsCli())
	})
}

func Test_ApiError(t *testing.T) {
	t.Run("WireValues", func(t *testing.T) {
		require.Equal(t, 0, int(ApiErrorNone))
		require.Equal(t, 1, int(ApiErrorParse))
		require.Equal(t, 2, int(ApiErrorConfiguration))
		require.Equal(t, 3, int(ApiErrorExternal))
		require.Equal(t, 4, int(ApiErrorInternal))
	})

	t.Run("AsApiError", func(t *testing.T) {
		external := NewExternalError("peer gone")
		require.Same(t, external, AsApiError(external))

		wrapped := AsApiError(errTest{})
		require.Equal(t, ApiErrorInternal, wrapped.Type)
	})

	t.Run("Visibility", func(t *testing.T) {
		require.True(t, QueryRequest{}.VisibleTo(VisibilityGlobal))
		require.True(t, QueryRequest{}.VisibleTo(VisibilityLocal))
		require.True(t, ListNeighboursRequest{}.VisibleTo(VisibilityGlobal))
		require.False(t, SearchRequest{}.VisibleTo(VisibilityGlobal))
		require.True(t, SearchRequest{}.VisibleTo(VisibilityLocal))
		require.False(t, ConnectRequest{}.VisibleTo(VisibilityGlobal))
		require.True(t, ConnectRequest{}.VisibleTo(VisibilityLocal))
	})
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
