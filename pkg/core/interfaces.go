package core

import (
	"context"
)

// Env is the client-side view of the environment gateway. Every call is a
// blocking round trip; implementations do not retry.
type Env interface {
	// ListTasks returns every task name and its variation count
	ListTasks(ctx context.Context) (TaskList, error)
	// Load replaces the active task variation and resets the step count
	Load(ctx context.Context, name string, variation int) (*Snapshot, error)
	// Step advances the simulation by exactly one action
	Step(ctx context.Context, action string) (*Snapshot, error)
}
