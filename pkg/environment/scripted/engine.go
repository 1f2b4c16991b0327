// Package scripted is a deterministic stand-in for the simulation engine.
// Each variation is a fixed gold path; taking the next gold action advances
// the score, anything else is answered from canned responses.
package scripted

import (
	"math"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/boristopalov/sciworld/pkg/core"
	"github.com/boristopalov/sciworld/pkg/environment"
)

const (
	// DefaultStepLimit matches the step limit the gateway has always used.
	DefaultStepLimit = 1000

	NoOpObservation = "No known action matches that input."
	emptyInventory  = "In your inventory, you see:\n\t(nothing)"
)

type Option func(*Engine)

func WithStepLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.stepLimit = n
		}
	}
}

// Engine implements environment.Engine over a TaskFile.
type Engine struct {
	tasks     *TaskFile
	stepLimit int

	// active variation
	task      string
	variation *Variation
	gold      bool
	progress  int
	moves     int
	score     float64
	look      string
	objects   []string
}

var _ environment.Engine = (*Engine)(nil)

func New(tasks *TaskFile, opts ...Option) *Engine {
	e := &Engine{
		tasks:     tasks,
		stepLimit: DefaultStepLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Factory returns an EngineFactory creating independent engines over tasks.
func Factory(tasks *TaskFile, opts ...Option) environment.EngineFactory {
	return func() (environment.Engine, error) {
		return New(tasks, opts...), nil
	}
}

func (e *Engine) TaskNames() []string {
	names := make([]string, 0, len(e.tasks.Tasks))
	for _, t := range e.tasks.Tasks {
		names = append(names, t.Name)
	}
	return names
}

func (e *Engine) MaxVariations(task string) (int, error) {
	t, ok := e.tasks.task(task)
	if !ok {
		return 0, goerr.Wrap(core.ErrInvalidTask, "unknown task", goerr.Value("task", task))
	}
	return len(t.Variations), nil
}

func (e *Engine) Load(task string, variation int, generateGoldPath bool) (environment.StepResult, error) {
	t, ok := e.tasks.task(task)
	if !ok {
		return environment.StepResult{}, goerr.Wrap(core.ErrInvalidTask, "unknown task", goerr.Value("task", task))
	}
	if variation < 0 || variation >= len(t.Variations) {
		return environment.StepResult{}, goerr.Wrap(core.ErrInvalidTask, "variation out of range",
			goerr.Value("task", task), goerr.Value("variation", variation), goerr.Value("max", len(t.Variations)))
	}

	v := &t.Variations[variation]
	e.task = task
	e.variation = v
	e.gold = generateGoldPath
	e.progress = 0
	e.moves = 0
	e.score = 0
	e.look = v.Observation
	e.objects = append([]string{}, v.Objects...)

	return environment.StepResult{
		Observation: v.Observation,
		Info:        e.info(),
	}, nil
}

func (e *Engine) TaskDescription() string {
	if e.variation == nil {
		return ""
	}
	return e.variation.Description
}

func (e *Engine) GoldPath() []string {
	if e.variation == nil || !e.gold {
		return nil
	}
	path := make([]string, 0, len(e.variation.Gold))
	for _, g := range e.variation.Gold {
		path = append(path, g.Action)
	}
	return path
}

func (e *Engine) Step(action string) (environment.StepResult, error) {
	if e.variation == nil {
		return environment.StepResult{}, goerr.New("no task loaded")
	}

	e.moves++
	act := normalize(action)
	prev := e.score
	obs := e.respond(act)

	return environment.StepResult{
		Observation: obs,
		Reward:      e.score - prev,
		Complete:    e.completed() || e.moves >= e.stepLimit,
		Info:        e.info(),
	}, nil
}

func (e *Engine) respond(act string) string {
	v := e.variation
	if e.progress < len(v.Gold) && act == v.Gold[e.progress].Action {
		step := v.Gold[e.progress]
		e.progress++
		e.score = math.Round(100 * float64(e.progress) / float64(len(v.Gold)))
		if step.Objects != nil {
			e.objects = append([]string{}, step.Objects...)
			e.look = lastRoom(step.Observation)
		}
		return step.Observation
	}

	switch act {
	case "look around":
		return e.look
	case "task":
		return v.Description
	case "inventory":
		if v.Inventory != "" {
			return v.Inventory
		}
		return emptyInventory
	}

	if obs, ok := v.Responses[act]; ok {
		return obs
	}
	return NoOpObservation
}

func (e *Engine) completed() bool {
	return e.variation != nil && e.progress == len(e.variation.Gold)
}

func (e *Engine) PossibleActions() []string {
	return append([]string{}, e.tasks.Actions...)
}

func (e *Engine) PossibleObjects() []string {
	return append([]string{}, e.objects...)
}

func (e *Engine) info() map[string]any {
	return map[string]any{
		"score":    e.score,
		"moves":    e.moves,
		"taskDesc": e.TaskDescription(),
	}
}

func normalize(action string) string {
	return strings.Join(strings.Fields(strings.ToLower(action)), " ")
}

// lastRoom returns the room description of an observation that moved the agent.
func lastRoom(obs string) string {
	if i := strings.Index(obs, "This room is called"); i >= 0 {
		return obs[i:]
	}
	return obs
}
