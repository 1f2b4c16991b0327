package messaging

import (
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// SimpleBroker implements the Broker interface
// subscribers is a map where keys are subscriber IDs and values are channels for receiving events
type SimpleBroker struct {
	subscribers map[string]chan<- Event
	mu          sync.RWMutex
}

var _ Broker = (*SimpleBroker)(nil)

// NewBroker creates a new event broker
func NewBroker() *SimpleBroker {
	return &SimpleBroker{
		subscribers: make(map[string]chan<- Event),
	}
}

// Publish delivers ev to every subscriber. Sends never block: a full
// subscriber channel is reported after the remaining subscribers are served.
func (b *SimpleBroker) Publish(ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var full []string
	for id, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			full = append(full, id)
		}
	}

	if len(full) > 0 {
		return goerr.New("subscriber channel is full", goerr.Value("subscribers", full))
	}
	return nil
}

// Subscribe registers a channel to receive events
func (b *SimpleBroker) Subscribe(id string, ch chan<- Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; exists {
		return goerr.New("already subscribed", goerr.Value("id", id))
	}

	b.subscribers[id] = ch
	return nil
}

// Unsubscribe removes a subscription
func (b *SimpleBroker) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return goerr.New("not subscribed", goerr.Value("id", id))
	}

	delete(b.subscribers, id)
	return nil
}

func (b *SimpleBroker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]chan<- Event)
}
