package episode_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boristopalov/sciworld/pkg/agent"
	"github.com/boristopalov/sciworld/pkg/client"
	"github.com/boristopalov/sciworld/pkg/core"
	"github.com/boristopalov/sciworld/pkg/environment"
	"github.com/boristopalov/sciworld/pkg/environment/scripted"
	"github.com/boristopalov/sciworld/pkg/episode"
	"github.com/boristopalov/sciworld/pkg/gateway"
	"github.com/boristopalov/sciworld/pkg/messaging"
	"github.com/boristopalov/sciworld/pkg/prompt"
	"github.com/boristopalov/sciworld/pkg/transcript"
)

// MockEnv implements core.Env, replaying canned snapshots
type MockEnv struct {
	load    *core.Snapshot
	steps   []*core.Snapshot
	loadErr error
	stepErr error
	actions []string
}

func (m *MockEnv) ListTasks(ctx context.Context) (core.TaskList, error) {
	return core.TaskList{"boil": 1}, nil
}

func (m *MockEnv) Load(ctx context.Context, name string, variation int) (*core.Snapshot, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.load, nil
}

func (m *MockEnv) Step(ctx context.Context, action string) (*core.Snapshot, error) {
	if m.stepErr != nil {
		return nil, m.stepErr
	}
	m.actions = append(m.actions, action)
	i := len(m.actions) - 1
	if i >= len(m.steps) {
		i = len(m.steps) - 1
	}
	return m.steps[i], nil
}

func snap(obs string, complete bool) *core.Snapshot {
	return &core.Snapshot{
		Observation: obs,
		Reward:      1,
		Complete:    complete,
		Info:        map[string]any{"score": 50.0},
		Choices: core.Choices{
			Actions: []string{"open OBJ", "look around"},
			Objects: []string{"door", "agent"},
		},
	}
}

func newMock() *MockEnv {
	load := snap("This room is called the hallway.", false)
	load.TaskDescription = "Your task is to boil water."
	load.GoldPath = []string{"open door"}
	return &MockEnv{
		load:  load,
		steps: []*core.Snapshot{snap("The door is now open.", false), snap("The water boils.", true)},
	}
}

func localEnv(t *testing.T) core.Env {
	t.Helper()
	tf, err := scripted.Default()
	require.NoError(t, err)
	return environment.NewSession("test", scripted.Factory(tf))
}

func assertAlternates(t *testing.T, msgs []core.Message) {
	t.Helper()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, core.RoleSystem, msgs[0].Role)
	assert.Equal(t, core.RoleUser, msgs[1].Role)
	for i, m := range msgs[2:] {
		want := core.RoleAssistant
		if i%2 == 1 {
			want = core.RoleUser
		}
		assert.Equal(t, want, m.Role, "message %d", i+2)
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("boil variation 0", func(t *testing.T) {
		env := localEnv(t)
		ep, err := episode.New(ctx, env, "boil", 0)
		require.NoError(t, err)

		msgs := ep.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, core.RoleSystem, msgs[0].Role)
		assert.Equal(t, core.RoleUser, msgs[1].Role)
		assert.Contains(t, msgs[1].Content, ep.Snapshot().Observation)
		assert.Contains(t, msgs[0].Content, "Your task is to boil water.")
		assert.NotEmpty(t, ep.GoldPath())
	})

	t.Run("every preset", func(t *testing.T) {
		for _, name := range prompt.NewRegistry().Names() {
			style, ok := prompt.Preset(name)
			require.True(t, ok)
			ep, err := episode.New(ctx, newMock(), "boil", 0, episode.WithStyle(style))
			require.NoError(t, err, name)
			assert.Len(t, ep.Messages(), 2, name)
		}
	})

	t.Run("load failure propagates", func(t *testing.T) {
		_, err := episode.New(ctx, localEnv(t), "boil", 42)
		assert.True(t, errors.Is(err, core.ErrInvalidTask), "got %v", err)

		_, err = episode.New(ctx, &MockEnv{loadErr: core.ErrTransport}, "boil", 0)
		assert.True(t, errors.Is(err, core.ErrTransport))
	})

	t.Run("invalid style", func(t *testing.T) {
		_, err := episode.New(ctx, newMock(), "boil", 0, episode.WithStyle(prompt.Style{Name: "broken"}))
		assert.True(t, errors.Is(err, prompt.ErrInvalidStyle))
	})
}

func TestStep(t *testing.T) {
	ctx := context.Background()

	t.Run("open door without assistant text", func(t *testing.T) {
		ep, err := episode.New(ctx, localEnv(t), "boil", 0)
		require.NoError(t, err)

		complete, err := ep.Step(ctx, "open door", "")
		require.NoError(t, err)
		assert.False(t, complete)

		msgs := ep.Messages()
		require.Len(t, msgs, 4)
		assert.Equal(t, core.NewMessage(core.RoleAssistant, "open door"), msgs[2])
		assert.Contains(t, msgs[3].Content, "The door is now open.")
	})

	t.Run("assistant text is recorded verbatim", func(t *testing.T) {
		ep, err := episode.New(ctx, newMock(), "boil", 0)
		require.NoError(t, err)

		reply := "The door is closed.\nAction: open door"
		_, err = ep.Step(ctx, "open door", reply)
		require.NoError(t, err)
		assert.Equal(t, reply, ep.Messages()[2].Content)
	})

	t.Run("completion has no lockout", func(t *testing.T) {
		env := localEnv(t)
		ep, err := episode.New(ctx, env, "boil", 0)
		require.NoError(t, err)

		gold := ep.GoldPath()
		for i, action := range gold {
			complete, err := ep.Step(ctx, action, "")
			require.NoError(t, err)
			assert.Equal(t, ep.Snapshot().Complete, complete)
			assert.Equal(t, i == len(gold)-1, complete)
		}

		before := len(ep.Messages())
		complete, err := ep.Step(ctx, "look around", "")
		require.NoError(t, err)
		assert.True(t, complete)
		assert.Len(t, ep.Messages(), before+2)
		assertAlternates(t, ep.Messages())
	})

	t.Run("grows by two in every configuration", func(t *testing.T) {
		for _, name := range prompt.NewRegistry().Names() {
			style, _ := prompt.Preset(name)
			ep, err := episode.New(ctx, localEnv(t), "boil", 0, episode.WithStyle(style))
			require.NoError(t, err)

			for i, action := range []string{"open door", "dance", "go to kitchen"} {
				_, err := ep.Step(ctx, action, "")
				require.NoError(t, err, name)
				assert.Len(t, ep.Messages(), 2+2*(i+1), name)
			}
			assertAlternates(t, ep.Messages())
			assert.Equal(t, 3, ep.Steps())
		}
	})

	t.Run("every_turn replaces the system message", func(t *testing.T) {
		style, _ := prompt.Preset(prompt.StyleZeroShotDynamicSystem)
		ep, err := episode.New(ctx, localEnv(t), "boil", 0, episode.WithStyle(style))
		require.NoError(t, err)
		first := ep.Messages()[0]
		assert.Contains(t, first.Content, "- picture")

		_, err = ep.Step(ctx, "open door", "")
		require.NoError(t, err)
		_, err = ep.Step(ctx, "go to kitchen", "")
		require.NoError(t, err)

		msgs := ep.Messages()
		assert.Len(t, msgs, 6)
		assert.Equal(t, core.RoleSystem, msgs[0].Role)
		assert.Contains(t, msgs[0].Content, "- stove")
		assert.Contains(t, msgs[0].Content, "Your task is to boil water.")
		assert.NotEqual(t, first.Content, msgs[0].Content)
		for _, m := range msgs[1:] {
			assert.NotEqual(t, core.RoleSystem, m.Role)
		}
	})

	t.Run("once keeps the system message", func(t *testing.T) {
		ep, err := episode.New(ctx, localEnv(t), "boil", 0)
		require.NoError(t, err)
		first := ep.Messages()[0]
		_, err = ep.Step(ctx, "open door", "")
		require.NoError(t, err)
		_, err = ep.Step(ctx, "go to kitchen", "")
		require.NoError(t, err)
		assert.Equal(t, first, ep.Messages()[0])
	})

	t.Run("step failure leaves the transcript alone", func(t *testing.T) {
		mock := newMock()
		ep, err := episode.New(ctx, mock, "boil", 0)
		require.NoError(t, err)

		mock.stepErr = core.ErrTransport
		_, err = ep.Step(ctx, "open door", "")
		assert.True(t, errors.Is(err, core.ErrTransport))
		assert.Len(t, ep.Messages(), 2)
		assert.Equal(t, 0, ep.Steps())
	})

	t.Run("unbound placeholder fails loudly", func(t *testing.T) {
		style := prompt.Default()
		style.Name = "needs_info"
		style.User = "{{.observation}} ({{.info.moves}})"

		ep, err := episode.New(ctx, newMock(), "boil", 0, episode.WithStyle(style))
		require.NoError(t, err)

		_, err = ep.Step(ctx, "open door", "")
		var renderErr *prompt.RenderError
		require.True(t, errors.As(err, &renderErr), "got %v", err)
		assert.True(t, errors.Is(err, prompt.ErrTemplateRender))
		assert.Len(t, ep.Messages(), 2)
	})
}

func TestOverGateway(t *testing.T) {
	ctx := context.Background()
	tf, err := scripted.Default()
	require.NoError(t, err)
	srv := httptest.NewServer(gateway.NewServer(environment.NewManager(scripted.Factory(tf))).Handler())
	t.Cleanup(srv.Close)
	env := client.NewHTTPClient(srv.URL, client.WithSessionID("episode"))

	t.Run("dynamic system keeps the loaded task description", func(t *testing.T) {
		style, _ := prompt.Preset(prompt.StyleZeroShotDynamicSystem)
		ep, err := episode.New(ctx, env, "boil", 0, episode.WithStyle(style))
		require.NoError(t, err)
		_, err = ep.Step(ctx, "open door", "")
		require.NoError(t, err)
		assert.Contains(t, ep.Messages()[0].Content, "Your task is to boil water.")
	})

	t.Run("step payloads carry no task description", func(t *testing.T) {
		style := prompt.Default()
		style.Name = "user_with_task"
		style.User = "{{.task_description}}\n{{.observation}}"

		ep, err := episode.New(ctx, env, "boil", 0, episode.WithStyle(style))
		require.NoError(t, err)
		_, err = ep.Step(ctx, "open door", "")
		assert.True(t, errors.Is(err, prompt.ErrTemplateRender), "got %v", err)
		assert.ErrorContains(t, err, "task_description")
	})

	t.Run("score is rendered from info", func(t *testing.T) {
		style, _ := prompt.Preset(prompt.StyleCatalogTable)
		ep, err := episode.New(ctx, env, "melt", 0, episode.WithStyle(style))
		require.NoError(t, err)
		_, err = ep.Step(ctx, "open freezer", "")
		require.NoError(t, err)
		assert.Contains(t, ep.Messages()[3].Content, "score = 25")
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("gold policy completes the task", func(t *testing.T) {
		ep, err := episode.New(ctx, localEnv(t), "boil", 1)
		require.NoError(t, err)
		policy, err := agent.NewGoldPolicy(&core.Snapshot{GoldPath: ep.GoldPath()})
		require.NoError(t, err)

		res, err := ep.Run(ctx, policy, 0)
		require.NoError(t, err)
		assert.True(t, res.Complete)
		assert.Equal(t, len(ep.GoldPath()), res.Steps)
		assert.Equal(t, 100.0, res.Score)
		assert.Equal(t, 100.0, res.Reward)
	})

	t.Run("max steps", func(t *testing.T) {
		ep, err := episode.New(ctx, localEnv(t), "boil", 0)
		require.NoError(t, err)
		res, err := ep.Run(ctx, agent.NewScriptPolicy([]string{"wait", "wait", "wait", "wait"}), 2)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Steps)
		assert.False(t, res.Complete)
	})

	t.Run("exhausted script stops quietly", func(t *testing.T) {
		ep, err := episode.New(ctx, localEnv(t), "boil", 0)
		require.NoError(t, err)
		res, err := ep.Run(ctx, agent.NewScriptPolicy([]string{"open door"}), 10)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Steps)
		assert.Len(t, ep.Messages(), 4)
	})

	t.Run("recorded replies keep the full assistant text", func(t *testing.T) {
		ep, err := episode.New(ctx, localEnv(t), "boil", 0)
		require.NoError(t, err)
		replies := []string{
			"The door is closed.\nAction: open door",
			"```json\n{\"reason\": \"water is in the kitchen\", \"action\": \"go to kitchen\"}\n```",
		}
		policy := agent.NewResponderPolicy(agent.NewReplayResponder(replies))

		res, err := ep.Run(ctx, policy, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Steps)

		msgs := ep.Messages()
		require.Len(t, msgs, 6)
		assert.Equal(t, replies[0], msgs[2].Content)
		assert.Equal(t, replies[1], msgs[4].Content)
		assert.Contains(t, msgs[5].Content, "This room is called the kitchen.")
	})

	t.Run("cancelled", func(t *testing.T) {
		ep, err := episode.New(ctx, localEnv(t), "boil", 0)
		require.NoError(t, err)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = ep.Run(cctx, agent.NewScriptPolicy([]string{"open door"}), 0)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestEventsAndPersistence(t *testing.T) {
	ctx := context.Background()
	broker := messaging.NewBroker()
	t.Cleanup(broker.Reset)
	events := make(chan messaging.Event, 16)
	require.NoError(t, broker.Subscribe("test", events))

	store, err := transcript.OpenSQLite(filepath.Join(t.TempDir(), "episodes.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	style, _ := prompt.Preset(prompt.StyleZeroShotDynamicSystem)
	ep, err := episode.New(ctx, localEnv(t), "boil", 0,
		episode.WithID("ep-events"),
		episode.WithStyle(style),
		episode.WithBroker(broker),
		episode.WithRepository(store),
	)
	require.NoError(t, err)
	_, err = ep.Step(ctx, "open door", "")
	require.NoError(t, err)

	var got []messaging.Event
	timeout := time.After(time.Second)
	for len(got) < 5 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("got %d events", len(got))
		}
	}
	assert.Equal(t, []int{0, 1, 0, 2, 3}, []int{got[0].Index, got[1].Index, got[2].Index, got[3].Index, got[4].Index})
	assert.True(t, got[2].Replaced)
	assert.Equal(t, "open door", got[3].Message.Content)
	assert.Equal(t, "ep-events", got[4].EpisodeID)

	rec, err := store.Load(ctx, "ep-events")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, ep.Messages(), rec.Messages)
	assert.Equal(t, 1, rec.Steps)
	assert.Equal(t, prompt.StyleZeroShotDynamicSystem, rec.Style)
	assert.True(t, strings.HasPrefix(transcript.Format(rec.Messages), "---------- [ROLE: system] ----------"))
}
