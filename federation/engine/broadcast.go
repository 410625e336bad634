package engine

import (
	"sync"

	"github.com/n9te9/federation-gateway/federation/gqlerror"
)

// result is the payload a Broadcaster delivers: the value a fetch produced
// (or the fully-merged primary response) together with whatever errors
// accompanied it.
type result struct {
	Value  interface{}
	Errors []gqlerror.Error
}

// Broadcaster publishes a single value to any number of subscribers,
// including ones that subscribe after the value was already published —
// the Go analogue of the teacher-language's tokio::sync::broadcast
// channel, which every DeferredNode subscribes to independently and which
// must still hand a late subscriber the value it missed. A
// sync.Once gates the one-time publish; subscribers registered before
// publish block on a channel delivered at publish time, subscribers
// registered after publish get a pre-filled channel immediately.
type Broadcaster struct {
	once sync.Once
	mu   sync.Mutex
	done bool
	val  result
	subs []chan result
}

// NewBroadcaster returns a Broadcaster with no value yet published.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Publish delivers value/errs to every current and future subscriber.
// Only the first call has any effect, matching a fetch step running
// exactly once regardless of how many deferred branches depend on it.
func (b *Broadcaster) Publish(value interface{}, errs []gqlerror.Error) {
	b.once.Do(func() {
		b.mu.Lock()
		b.val = result{Value: value, Errors: errs}
		pending := b.subs
		b.subs = nil
		b.done = true
		b.mu.Unlock()

		for _, ch := range pending {
			ch <- b.val
			close(ch)
		}
	})
}

// Subscribe returns a channel that receives exactly one result: the
// published value, whenever it arrives.
func (b *Broadcaster) Subscribe() <-chan result {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan result, 1)
	if b.done {
		ch <- b.val
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}
