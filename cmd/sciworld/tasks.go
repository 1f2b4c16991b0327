package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/boristopalov/sciworld/pkg/client"
	"github.com/boristopalov/sciworld/pkg/config"
	"github.com/boristopalov/sciworld/pkg/core"
)

func tasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the gateway's tasks and their variation counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			env, closeEnv, err := dial(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeEnv()

			tasks, err := env.ListTasks(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, 0, len(tasks))
			for name := range tasks {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", name, tasks[name])
			}
			return nil
		},
	}
}

// dial connects to the configured gateway. The returned func releases the connection.
func dial(ctx context.Context, cfg *config.Config) (core.Env, func(), error) {
	if cfg.Client.Transport == config.TransportWS {
		ws, err := client.DialWS(ctx, cfg.Client.URL, cfg.Client.Session)
		if err != nil {
			return nil, nil, err
		}
		return ws, func() { _ = ws.Close() }, nil
	}

	opts := []client.Option{client.WithSessionID(cfg.Client.Session)}
	if cfg.Client.Timeout > 0 {
		opts = append(opts, client.WithTimeout(cfg.Client.Timeout))
	}
	return client.NewHTTPClient(cfg.Client.URL, opts...), func() {}, nil
}
