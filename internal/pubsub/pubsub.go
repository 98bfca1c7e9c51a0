// Package pubsub provides the fan-out primitive the room layer replicates
// state over: a set of subscriber outboxes keyed by connection id, with
// best-effort at-most-once delivery per publish.
//
// A Broker is not safe for concurrent use; it is owned by a single actor
// loop, which is what serializes access to it.
package pubsub

type Broker[T any] struct {
	subs map[string]chan T
}

func New[T any]() *Broker[T] {
	return &Broker[T]{subs: make(map[string]chan T)}
}

// Attach registers an outbox under id. An existing outbox for the same id
// is closed and replaced, so a reconnecting subscriber never leaves a
// stale channel behind. Re-attaching the channel already registered is a
// no-op rather than a self-close.
func (b *Broker[T]) Attach(id string, out chan T) {
	if prev, ok := b.subs[id]; ok && prev != out {
		close(prev)
	}
	b.subs[id] = out
}

// Detach removes and closes the outbox for id, if any.
func (b *Broker[T]) Detach(id string) {
	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}

// Publish delivers v to every subscriber. A subscriber whose outbox is
// full is dropped rather than blocking the publisher.
func (b *Broker[T]) Publish(v T) {
	for id, ch := range b.subs {
		select {
		case ch <- v:
		default:
			close(ch)
			delete(b.subs, id)
		}
	}
}

// PublishExcept is Publish skipping one subscriber, used when the
// originator already received a direct reply.
func (b *Broker[T]) PublishExcept(skip string, v T) {
	for id, ch := range b.subs {
		if id == skip {
			continue
		}
		select {
		case ch <- v:
		default:
			close(ch)
			delete(b.subs, id)
		}
	}
}

// SendTo delivers v to a single subscriber, dropping it if slow. Reports
// whether the subscriber existed.
func (b *Broker[T]) SendTo(id string, v T) bool {
	ch, ok := b.subs[id]
	if !ok {
		return false
	}
	select {
	case ch <- v:
	default:
		close(ch)
		delete(b.subs, id)
	}
	return true
}

func (b *Broker[T]) Len() int {
	return len(b.subs)
}

// Close detaches every subscriber, closing their outboxes.
func (b *Broker[T]) Close() {
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
