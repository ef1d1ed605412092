// Package companion implements the passive side of the accessory line protocol:
// a TCP server that accepts connections from the relay, decodes incoming maple
// frames, and replies through a caller-supplied handler.
//
// It exists as the test peer for the relay package and as the core of the
// companion example program. It deliberately stays single-purpose: one listener,
// line-per-message framing, no sessions or routing.
package companion
