package transcript

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/boristopalov/sciworld/pkg/core"
)

var ErrSystemRole = errors.New("system messages go through SetSystem")

// Transcript is an ordered conversation: one system slot followed by an
// append-only tail of user and assistant messages.
type Transcript struct {
	system *core.Message
	turns  []core.Message
	mu     sync.RWMutex
}

func New() *Transcript {
	return &Transcript{
		turns: make([]core.Message, 0, 16),
	}
}

// SetSystem replaces the content of the system slot.
func (t *Transcript) SetSystem(content string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := core.NewMessage(core.RoleSystem, content)
	t.system = &m
}

// System returns the current system message, if one was set.
func (t *Transcript) System() (core.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.system == nil {
		return core.Message{}, false
	}
	return *t.system, true
}

// Append adds a user or assistant message to the tail.
func (t *Transcript) Append(role core.Role, content string) error {
	if role == core.RoleSystem {
		return ErrSystemRole
	}
	if !role.Valid() {
		return goerr.New("unknown role", goerr.Value("role", role))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, core.NewMessage(role, content))
	return nil
}

// Messages returns a copy of the full transcript, system message first.
func (t *Transcript) Messages() []core.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]core.Message, 0, len(t.turns)+1)
	if t.system != nil {
		out = append(out, *t.system)
	}
	return append(out, t.turns...)
}

// Len counts the system message plus every turn.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := len(t.turns)
	if t.system != nil {
		n++
	}
	return n
}

// Last returns the most recent message.
func (t *Transcript) Last() (core.Message, bool) {
	msgs := t.Messages()
	if len(msgs) == 0 {
		return core.Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// Restore rebuilds a transcript from a stored message list.
func Restore(messages []core.Message) (*Transcript, error) {
	t := New()
	for i, m := range messages {
		if m.Role == core.RoleSystem {
			if i != 0 {
				return nil, goerr.New("system message must come first", goerr.Value("index", i))
			}
			t.SetSystem(m.Content)
			continue
		}
		if err := t.Append(m.Role, m.Content); err != nil {
			return nil, goerr.Wrap(err, "failed to restore message", goerr.Value("index", i))
		}
	}
	return t, nil
}

// String renders the transcript in the human readable debug form.
func (t *Transcript) String() string {
	return Format(t.Messages())
}

// Format renders messages as "---------- [ROLE: x] ----------" blocks.
func Format(messages []core.Message) string {
	bar := strings.Repeat("-", 10)
	blocks := make([]string, len(messages))
	for i, m := range messages {
		blocks[i] = fmt.Sprintf("%s [ROLE: %s] %s\n%s", bar, m.Role, bar, m.Content)
	}
	return strings.Join(blocks, "\n")
}
