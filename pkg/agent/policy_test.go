package agent

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boristopalov/sciworld/pkg/core"
)

// MockResponder implements Responder for testing
type MockResponder struct {
	reply string
	err   error
	seen  int
}

func (m *MockResponder) Respond(ctx context.Context, messages []core.Message) (string, error) {
	m.seen = len(messages)
	return m.reply, m.err
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"action line", "The door blocks the way.\nAction: open door", "open door"},
		{"action line with period", "Action: open door.", "open door"},
		{"quoted action", `Action: "go to kitchen"`, "go to kitchen"},
		{"bold label", "**Action:** focus on water", "focus on water"},
		{"lower case", "action: wait1", "wait1"},
		{"last line wins", "Action: look around\nOn second thought.\nAction: open door", "open door"},
		{"json block", "```json\n{\n   \"reason\": \"need water\",\n   \"action\": \"pick up pot\"\n}\n```", "pick up pot"},
		{"json block without tag", "```\n{\"action\": \"wait\"}\n```", "wait"},
		{"json wins over line", "Action: wait\n```json\n{\"action\": \"open door\"}\n```", "open door"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "I am not sure.", "Action:   ", "```json\n{\"reason\": \"x\"}\n```"} {
		_, err := ParseResponse(bad)
		assert.True(t, errors.Is(err, ErrNoAction), "response %q", bad)
	}
}

func TestScriptPolicy(t *testing.T) {
	ctx := context.Background()
	p := NewScriptPolicy([]string{"open door", "go to kitchen"})

	d, err := p.Next(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, Decision{Action: "open door"}, d)
	assert.Equal(t, 1, p.Remaining())

	_, err = p.Next(ctx, nil)
	require.NoError(t, err)
	_, err = p.Next(ctx, nil)
	assert.True(t, errors.Is(err, ErrExhausted))

	_, err = NewGoldPolicy(&core.Snapshot{})
	assert.Error(t, err)
	gold, err := NewGoldPolicy(&core.Snapshot{GoldPath: []string{"wait"}})
	require.NoError(t, err)
	assert.Equal(t, 1, gold.Remaining())
}

func TestResponderPolicy(t *testing.T) {
	ctx := context.Background()
	msgs := []core.Message{core.NewMessage(core.RoleSystem, "s"), core.NewMessage(core.RoleUser, "u")}

	mock := &MockResponder{reply: "The door is closed.\nAction: open door"}
	d, err := NewResponderPolicy(mock).Next(ctx, msgs)
	require.NoError(t, err)
	assert.Equal(t, "open door", d.Action)
	assert.Equal(t, mock.reply, d.Assistant)
	assert.Equal(t, 2, mock.seen)

	_, err = NewResponderPolicy(&MockResponder{reply: "hmm"}).Next(ctx, msgs)
	assert.True(t, errors.Is(err, ErrNoAction))

	_, err = NewResponderPolicy(&MockResponder{err: errors.New("rate limited")}).Next(ctx, msgs)
	assert.ErrorContains(t, err, "rate limited")
}

func TestReaderPolicy(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	p := NewReaderPolicy(strings.NewReader("\nopen door\nAction: go to kitchen\n"), &out)
	msgs := []core.Message{core.NewMessage(core.RoleUser, "You are in the hallway.")}

	d, err := p.Next(ctx, msgs)
	require.NoError(t, err)
	assert.Equal(t, Decision{Action: "open door"}, d)
	assert.Contains(t, out.String(), "You are in the hallway.")

	d, err = p.Next(ctx, msgs)
	require.NoError(t, err)
	assert.Equal(t, "go to kitchen", d.Action)

	_, err = p.Next(ctx, msgs)
	assert.True(t, errors.Is(err, ErrExhausted))
}

func TestReplayResponder(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "replies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`replies:
  - |-
    The door is closed.
    Action: open door
  - "Action: go to kitchen"
`), 0o644))

	replies, err := LoadReplies(path)
	require.NoError(t, err)
	require.Len(t, replies, 2)

	p := NewResponderPolicy(NewReplayResponder(replies))
	d, err := p.Next(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, Decision{Action: "open door", Assistant: "The door is closed.\nAction: open door"}, d)

	d, err = p.Next(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "go to kitchen", d.Action)

	_, err = p.Next(ctx, nil)
	assert.True(t, errors.Is(err, ErrExhausted))

	_, err = LoadReplies(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("replies: []\n"), 0o644))
	_, err = LoadReplies(empty)
	assert.Error(t, err)
}
