package relay

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// stateBroadcaster fans state changes out to channel subscribers.
//
// Publishing never blocks: a subscriber whose buffer is full misses the event.
// Subscribers that need every transition should size their buffer accordingly
// or use a StateChangeHandler instead.
type stateBroadcaster struct {
	nextID atomic.Uint64
	subs   *xsync.MapOf[uint64, chan StateChange]
}

func newStateBroadcaster() *stateBroadcaster {
	return &stateBroadcaster{
		subs: xsync.NewMapOf[uint64, chan StateChange](),
	}
}

func (b *stateBroadcaster) subscribe(buffer int) (uint64, <-chan StateChange) {
	if buffer < 1 {
		buffer = 1
	}

	id := b.nextID.Add(1)
	ch := make(chan StateChange, buffer)
	b.subs.Store(id, ch)

	return id, ch
}

// unsubscribe removes the subscription. The channel is abandoned, not closed,
// because a concurrent publish may still hold a reference to it.
func (b *stateBroadcaster) unsubscribe(id uint64) {
	b.subs.Delete(id)
}

func (b *stateBroadcaster) publish(change StateChange) {
	b.subs.Range(func(_ uint64, ch chan StateChange) bool {
		select {
		case ch <- change:
		default:
		}
		return true
	})
}
