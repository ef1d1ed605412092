// Package relay maintains the TCP link between an emulated hardware accessory and
// its remote companion process, and relays maple frames across it.
//
// Key pieces:
//   - Transport: deadline-bounded byte exchange over one TCP socket, with a
//     non-destructive MSG_PEEK liveness probe. All operations are serialized by a
//     single mutex so a health probe never races an application send or receive.
//   - Manager: a polled connection-lifecycle state machine over the Transport.
//     A driving loop calls Update once per tick; Update never blocks beyond the
//     short deadlines bounded inside the transport. The manager performs periodic
//     health checks while connected and exponential-backoff reconnection after a
//     lost peer, recreating the transport on every attempt.
//   - NotificationAdapter: maps connect/disconnect/reconnect state edges to a host
//     notification sink, with a suggested display duration per event.
//
// Connection establishment:
//   - Build a ConnectionConfig with NewConnectionConfig and functional options.
//   - Create a Manager with NewManager and enable it with SetEnabled(true).
//   - Call Update once per polling tick (for example once per emulated frame).
//
// Message exchange:
//   - While the manager reports IsConnected, Send and Receive exchange
//     maple.Message values with the companion. A transport failure during an
//     exchange surfaces as an error to the caller and is reconciled by the next
//     scheduled health check rather than by an immediate state transition.
//
// Teardown:
//   - SetEnabled(false) synchronously releases the owned transport.
//   - Close disables the manager and releases all resources.
package relay
