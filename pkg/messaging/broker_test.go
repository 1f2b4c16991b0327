package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boristopalov/sciworld/pkg/core"
)

func TestBroker(t *testing.T) {
	t.Run("test fan out", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(broker.Reset)
		ch1 := make(chan Event, 1)
		ch2 := make(chan Event, 1)

		require.NoError(t, broker.Subscribe("printer", ch1))
		require.NoError(t, broker.Subscribe("recorder", ch2))

		ev := Event{
			EpisodeID: "ep-1",
			Index:     2,
			Message:   core.NewMessage(core.RoleAssistant, "open door"),
			Timestamp: time.Now(),
		}
		require.NoError(t, broker.Publish(ev))

		for _, ch := range []chan Event{ch1, ch2} {
			select {
			case received := <-ch:
				assert.Equal(t, "ep-1", received.EpisodeID)
				assert.Equal(t, "open door", received.Message.Content)
			case <-time.After(time.Second):
				t.Fatal("Timeout waiting for event")
			}
		}
	})

	t.Run("test subscription management", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(broker.Reset)
		ch := make(chan Event, 1)

		require.NoError(t, broker.Subscribe("printer", ch))
		assert.Error(t, broker.Subscribe("printer", ch), "duplicate subscription")
		require.NoError(t, broker.Unsubscribe("printer"))
		assert.Error(t, broker.Unsubscribe("printer"), "unsubscribe non-existent")

		// nothing subscribed, publish is a no-op
		assert.NoError(t, broker.Publish(Event{EpisodeID: "ep-1"}))
	})

	t.Run("test channel full behavior", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(broker.Reset)
		slow := make(chan Event, 1)
		fast := make(chan Event, 4)

		require.NoError(t, broker.Subscribe("slow", slow))
		require.NoError(t, broker.Subscribe("fast", fast))

		require.NoError(t, broker.Publish(Event{Index: 0}))
		assert.Error(t, broker.Publish(Event{Index: 1}))

		// the fast subscriber still got both events
		assert.Len(t, fast, 2)
	})
}
