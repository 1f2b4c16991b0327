package episode

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"

	"github.com/boristopalov/sciworld/pkg/agent"
)

// Result summarizes a Run.
type Result struct {
	Steps    int     // steps taken during this run
	Complete bool    // completion flag of the last snapshot
	Reward   float64 // sum of rewards over this run
	Score    float64 // info.score of the last snapshot
}

// Run asks policy for actions until the episode completes, the policy runs
// out of actions or maxSteps steps were taken. maxSteps <= 0 means no limit.
func (e *Episode) Run(ctx context.Context, policy agent.Policy, maxSteps int) (Result, error) {
	var res Result
	for maxSteps <= 0 || res.Steps < maxSteps {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		d, err := policy.Next(ctx, e.Messages())
		if errors.Is(err, agent.ErrExhausted) {
			break
		}
		if err != nil {
			return res, goerr.Wrap(err, "policy failed", goerr.Value("episode", e.id), goerr.Value("step", res.Steps))
		}

		complete, err := e.Step(ctx, d.Action, d.Assistant)
		if err != nil {
			return res, err
		}
		snap := e.Snapshot()
		res.Steps++
		res.Reward += snap.Reward
		res.Complete = complete
		res.Score, _ = snap.Score()
		if complete {
			break
		}
	}
	return res, nil
}
