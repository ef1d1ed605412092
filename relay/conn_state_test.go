package relay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnStateString(t *testing.T) {
	require := require.New(t)

	require.Equal("disabled", StateDisabled.String())
	require.Equal("disconnected", StateDisconnected.String())
	require.Equal("connecting", StateConnecting.String())
	require.Equal("connected", StateConnected.String())
	require.Equal("reconnecting", StateReconnecting.String())
	require.Equal("unknown", ConnState(99).String())
}

func TestConnStatePredicates(t *testing.T) {
	require := require.New(t)

	require.True(StateConnected.IsConnected())
	require.True(StateDisabled.IsDisabled())

	for _, state := range []ConnState{StateDisabled, StateDisconnected, StateConnecting, StateReconnecting} {
		require.False(state.IsConnected(), state.String())
	}
}
