package messaging

import (
	"time"

	"github.com/boristopalov/sciworld/pkg/core"
)

// Event is published every time an episode appends or replaces a message.
type Event struct {
	EpisodeID string       // Episode that produced the message
	Index     int          // Position of the message in the transcript
	Message   core.Message // The message itself
	Replaced  bool         // True when the system slot was re-rendered in place
	Complete  bool         // Completion flag of the snapshot behind the message
	Timestamp time.Time
}

// Publisher emits episode events
type Publisher interface {
	Publish(ev Event) error
}

// Broker fans episode events out to subscribers
type Broker interface {
	Publisher
	// Subscribe registers ch under id
	Subscribe(id string, ch chan<- Event) error
	// Unsubscribe removes a subscription
	Unsubscribe(id string) error
}
