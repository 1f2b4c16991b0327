package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"

	"github.com/boristopalov/sciworld/pkg/agent"
	"github.com/boristopalov/sciworld/pkg/config"
	"github.com/boristopalov/sciworld/pkg/core"
	"github.com/boristopalov/sciworld/pkg/environment"
	"github.com/boristopalov/sciworld/pkg/environment/scripted"
	"github.com/boristopalov/sciworld/pkg/episode"
	"github.com/boristopalov/sciworld/pkg/messaging"
	"github.com/boristopalov/sciworld/pkg/transcript"
)

// Policies selectable with --policy.
const (
	policyGold  = "gold"
	policyStdin = "stdin"
)

func playCmd() *cobra.Command {
	var (
		task      string
		variation int
		style     string
		policy    string
		maxSteps  int
		local     bool
		actions   []string
		replies   string
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play one episode and print its transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if style != "" {
				cfg.Prompt.Style = style
			}
			promptStyle, err := cfg.Style()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			env, closeEnv, err := playEnv(ctx, cfg, local)
			if err != nil {
				return err
			}
			defer closeEnv()

			broker := messaging.NewBroker()
			defer broker.Reset()
			events := make(chan messaging.Event, 64)
			subscriber := "printer-" + uuid.New().String()
			if err := broker.Subscribe(subscriber, events); err != nil {
				return err
			}
			done := make(chan struct{})
			go printEvents(cmd.OutOrStdout(), events, done)

			opts := []episode.Option{
				episode.WithStyle(promptStyle),
				episode.WithLogger(logger),
				episode.WithBroker(broker),
			}
			if cfg.Store.Path != "" {
				store, err := transcript.OpenSQLite(cfg.Store.Path)
				if err != nil {
					return err
				}
				defer store.Close()
				opts = append(opts, episode.WithRepository(store))
			}

			ep, err := episode.New(ctx, env, task, variation, opts...)
			if err != nil {
				return err
			}

			var p agent.Policy
			switch {
			case len(actions) > 0:
				p = agent.NewScriptPolicy(actions)
			case replies != "":
				recorded, err := agent.LoadReplies(replies)
				if err != nil {
					return err
				}
				p = agent.NewResponderPolicy(agent.NewReplayResponder(recorded))
			case policy == policyGold:
				if p, err = agent.NewGoldPolicy(ep.Snapshot()); err != nil {
					return err
				}
			case policy == policyStdin:
				// prompts already stream through the broker
				p = agent.NewReaderPolicy(os.Stdin, io.Discard)
			default:
				return goerr.New("unknown policy", goerr.Value("policy", policy))
			}

			res, err := ep.Run(ctx, p, maxSteps)
			_ = broker.Unsubscribe(subscriber)
			close(events)
			<-done
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nepisode %s: steps=%d complete=%t reward=%g score=%g\n",
				ep.ID(), res.Steps, res.Complete, res.Reward, res.Score)
			return nil
		},
	}

	cmd.Flags().StringVarP(&task, "task", "t", "boil", "task name")
	cmd.Flags().IntVarP(&variation, "variation", "v", 0, "task variation")
	cmd.Flags().StringVar(&style, "style", "", "prompt style (overrides config)")
	cmd.Flags().StringVar(&policy, "policy", policyGold, "action policy: gold or stdin")
	cmd.Flags().StringSliceVar(&actions, "actions", nil, "comma separated actions to replay instead of a policy")
	cmd.Flags().StringVar(&replies, "replies", "", "YAML file of recorded model replies to parse actions from")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 100, "stop after this many steps, 0 for no limit")
	cmd.Flags().BoolVar(&local, "local", false, "run the scripted engine in process instead of dialing a gateway")
	return cmd
}

func playEnv(ctx context.Context, cfg *config.Config, local bool) (core.Env, func(), error) {
	if !local {
		return dial(ctx, cfg)
	}
	tasks, err := scripted.Default()
	if cfg.Server.TasksFile != "" {
		tasks, err = scripted.LoadFile(cfg.Server.TasksFile)
	}
	if err != nil {
		return nil, nil, err
	}
	factory := scripted.Factory(tasks, scripted.WithStepLimit(cfg.Server.StepLimit))
	return environment.NewSession(environment.DefaultSessionID, factory), func() {}, nil
}

func printEvents(w io.Writer, events <-chan messaging.Event, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		label := string(ev.Message.Role)
		if ev.Replaced {
			label += " (updated)"
		}
		fmt.Fprintf(w, "%s [ROLE: %s] %s\n%s\n", strings.Repeat("-", 10), label, strings.Repeat("-", 10), ev.Message.Content)
	}
}
