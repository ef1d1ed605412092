package relay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotificationAdapterEdges(t *testing.T) {
	require := require.New(t)

	var messages []string
	var durations []int
	adapter := NewNotificationAdapter(NotifierFunc(func(message string, durationHint int) {
		messages = append(messages, message)
		durations = append(durations, durationHint)
	}))

	adapter.HandleStateChange(StateConnecting, StateConnected)
	adapter.HandleStateChange(StateConnected, StateReconnecting)
	adapter.HandleStateChange(StateReconnecting, StateConnected)

	require.Equal([]string{
		"Network accessory connected",
		"Network accessory disconnected",
		"Network accessory reconnected",
	}, messages)
	require.Equal([]int{ConnectedDuration, DisconnectedDuration, ReconnectedDuration}, durations)
}

func TestNotificationAdapterSilentEdges(t *testing.T) {
	require := require.New(t)

	calls := 0
	adapter := NewNotificationAdapter(NotifierFunc(func(string, int) { calls++ }))

	// None of the edges that bypass the connected state notify.
	silent := [][2]ConnState{
		{StateDisabled, StateDisconnected},
		{StateDisconnected, StateConnecting},
		{StateConnecting, StateReconnecting},
		{StateReconnecting, StateDisabled},
		{StateConnected, StateDisabled},
		{StateConnecting, StateDisabled},
	}
	for _, edge := range silent {
		adapter.HandleStateChange(edge[0], edge[1])
	}

	require.Equal(0, calls)
}

func TestNopNotifier(t *testing.T) {
	// Must simply not panic.
	NopNotifier{}.Notify("anything", 1)
	require.NotNil(t, NewNotificationAdapter(NopNotifier{}))
}
