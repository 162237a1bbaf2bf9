// Package feed publishes newly loaded observations to websocket
// subscribers, so downstream consumers can follow a load in progress
// without polling the store.
package feed

import (
	"sync/atomic"

	"lightcurvedb/internal/domain"
)

// Item is one feed message: a batch of observations freshly persisted for
// one object.
type Item struct {
	ObjectID     string               `json:"object_id"`
	Label        string               `json:"label"`
	Observations []domain.Observation `json:"observations"`
}

// Broker fans Items out to subscribers. Slow subscribers drop messages
// rather than blocking the publisher.
type Broker struct {
	subCount  int64  // needs 64-bit alignment
	dropCount uint64 // needs 64-bit alignment

	stopCh    chan struct{}
	publishCh chan Item
	subCh     chan chan Item
	unsubCh   chan chan Item
}

// NewBroker creates a Broker. Call Start in its own goroutine before
// publishing.
func NewBroker() *Broker {
	return &Broker{
		stopCh:    make(chan struct{}),
		publishCh: make(chan Item, 1),
		subCh:     make(chan chan Item, 1),
		unsubCh:   make(chan chan Item, 1),
	}
}

// Start runs the broker loop until Stop is called.
func (b *Broker) Start() {
	subs := map[chan Item]struct{}{}
	for {
		select {
		case <-b.stopCh:
			return
		case itemCh := <-b.subCh:
			subs[itemCh] = struct{}{}
			atomic.StoreInt64(&b.subCount, int64(len(subs)))
		case itemCh := <-b.unsubCh:
			delete(subs, itemCh)
			atomic.StoreInt64(&b.subCount, int64(len(subs)))
		case item := <-b.publishCh:
			for itemCh := range subs {
				// itemCh is buffered, use non-blocking send to protect the broker:
				select {
				case itemCh <- item:
				default:
					atomic.AddUint64(&b.dropCount, 1)
				}
			}
		}
	}
}

// Stop terminates the broker loop.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new subscriber channel.
func (b *Broker) Subscribe() chan Item {
	itemCh := make(chan Item, 256)
	b.subCh <- itemCh
	return itemCh
}

// Unsubscribe removes a subscriber channel.
func (b *Broker) Unsubscribe(itemCh chan Item) {
	b.unsubCh <- itemCh
}

// Publish broadcasts an item to all subscribers.
func (b *Broker) Publish(item Item) {
	b.publishCh <- item
}

// SubCount reports the current number of subscribers.
func (b *Broker) SubCount() int {
	return int(atomic.LoadInt64(&b.subCount))
}

// DropCount reports how many items were dropped on slow subscribers.
func (b *Broker) DropCount() int {
	return int(atomic.LoadUint64(&b.dropCount))
}
