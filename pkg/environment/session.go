package environment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/boristopalov/sciworld/pkg/core"
)

// Session exclusively owns one lazily created engine. The lock is held for
// the whole of every call, so concurrent callers on one session serialize.
type Session struct {
	id      string
	factory EngineFactory

	mu       sync.Mutex
	engine   Engine
	lastUsed time.Time
}

var _ core.Env = (*Session)(nil)

func NewSession(id string, factory EngineFactory) *Session {
	return &Session{
		id:       id,
		factory:  factory,
		lastUsed: time.Now(),
	}
}

func (s *Session) ID() string { return s.id }

// LastUsed returns the time of the most recent call on the session.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// must hold s.mu
func (s *Session) getEngine() (Engine, error) {
	s.lastUsed = time.Now()
	if s.engine != nil {
		return s.engine, nil
	}
	if s.factory == nil {
		return nil, goerr.Wrap(core.ErrEngine, "no engine factory", goerr.Value("session", s.id))
	}
	eng, err := s.factory()
	if err != nil {
		return nil, goerr.Wrap(engineError(err), "failed to create engine", goerr.Value("session", s.id))
	}
	s.engine = eng
	return eng, nil
}

func (s *Session) ListTasks(ctx context.Context) (core.TaskList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	eng, err := s.getEngine()
	if err != nil {
		return nil, err
	}

	tasks := make(core.TaskList)
	for _, name := range eng.TaskNames() {
		n, err := eng.MaxVariations(name)
		if err != nil {
			return nil, goerr.Wrap(engineError(err), "failed to get variations", goerr.Value("task", name))
		}
		tasks[name] = n
	}
	return tasks, nil
}

// Load loads a task variation with gold path generation. The snapshot carries
// the task description and the gold path.
func (s *Session) Load(ctx context.Context, name string, variation int) (*core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	eng, err := s.getEngine()
	if err != nil {
		return nil, err
	}

	res, err := eng.Load(name, variation, true)
	if err != nil {
		return nil, goerr.Wrap(engineError(err), "failed to load task",
			goerr.Value("task", name), goerr.Value("variation", variation))
	}

	snap := snapshot(eng, res)
	snap.TaskDescription = eng.TaskDescription()
	snap.GoldPath = append([]string{}, eng.GoldPath()...)
	return snap, nil
}

func (s *Session) Step(ctx context.Context, action string) (*core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	eng, err := s.getEngine()
	if err != nil {
		return nil, err
	}

	res, err := eng.Step(action)
	if err != nil {
		return nil, goerr.Wrap(engineError(err), "failed to step", goerr.Value("action", action))
	}
	return snapshot(eng, res), nil
}

// choices are always re-read from the engine, never cached
func snapshot(eng Engine, res StepResult) *core.Snapshot {
	info := res.Info
	if info == nil {
		info = map[string]any{}
	}
	return &core.Snapshot{
		Observation: res.Observation,
		Reward:      res.Reward,
		Complete:    res.Complete,
		Info:        info,
		Choices: core.Choices{
			Actions: nonNil(eng.PossibleActions()),
			Objects: nonNil(eng.PossibleObjects()),
		},
	}
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}

// engineError tags err as an engine failure unless the engine already
// classified it.
func engineError(err error) error {
	if errors.Is(err, core.ErrInvalidTask) || errors.Is(err, core.ErrEngine) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrEngine, err)
}
