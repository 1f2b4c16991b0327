package environment

// StepResult is what the engine reports after loading a task or taking an action.
type StepResult struct {
	Observation string
	Reward      float64
	Complete    bool
	Info        map[string]any
}

// Engine is the wrapped simulation engine. Implementations are not safe for
// concurrent use; a Session serializes access.
type Engine interface {
	// TaskNames returns every task the engine knows, in engine order
	TaskNames() []string
	// MaxVariations returns the number of variations of a task
	MaxVariations(task string) (int, error)
	// Load replaces the active task variation and resets the step count
	Load(task string, variation int, generateGoldPath bool) (StepResult, error)
	// TaskDescription describes the active task
	TaskDescription() string
	// GoldPath returns the gold action sequence generated at load time
	GoldPath() []string
	// Step advances the simulation by exactly one action
	Step(action string) (StepResult, error)
	// PossibleActions returns the currently valid action templates
	PossibleActions() []string
	// PossibleObjects returns the currently visible object names
	PossibleObjects() []string
}

// EngineFactory constructs a fresh engine for a session.
type EngineFactory func() (Engine, error)
