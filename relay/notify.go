package relay

// Suggested display durations, in host display time units (for example frames).
const (
	ConnectedDuration    = 180
	DisconnectedDuration = 120
	ReconnectedDuration  = 120
)

// Notifier is the host environment's notification sink.
// durationHint suggests how long the message should stay visible.
type Notifier interface {
	Notify(message string, durationHint int)
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(message string, durationHint int)

func (f NotifierFunc) Notify(message string, durationHint int) {
	f(message, durationHint)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(string, int) {}

// NotificationAdapter maps connection state edges to notification sink calls.
//
// Only edges entering or leaving the connected state notify; failed reconnect
// attempts re-enter the reconnecting state and stay silent, so the sink is not
// spammed while the companion is away.
type NotificationAdapter struct {
	notifier Notifier
}

// NewNotificationAdapter creates an adapter that forwards to n.
func NewNotificationAdapter(n Notifier) *NotificationAdapter {
	return &NotificationAdapter{notifier: n}
}

// HandleStateChange is a StateChangeHandler; register it on a Manager.
func (a *NotificationAdapter) HandleStateChange(prev ConnState, cur ConnState) {
	switch {
	case prev == StateConnecting && cur == StateConnected:
		a.notifier.Notify("Network accessory connected", ConnectedDuration)
	case prev == StateReconnecting && cur == StateConnected:
		a.notifier.Notify("Network accessory reconnected", ReconnectedDuration)
	case prev == StateConnected && cur == StateReconnecting:
		a.notifier.Notify("Network accessory disconnected", DisconnectedDuration)
	}
}
