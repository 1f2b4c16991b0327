package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/boristopalov/sciworld/pkg/environment"
	"github.com/boristopalov/sciworld/pkg/environment/scripted"
	"github.com/boristopalov/sciworld/pkg/gateway"
)

func serveCmd() *cobra.Command {
	var addr, tasksFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the environment gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if tasksFile != "" {
				cfg.Server.TasksFile = tasksFile
			}

			tasks, err := scripted.Default()
			if cfg.Server.TasksFile != "" {
				tasks, err = scripted.LoadFile(cfg.Server.TasksFile)
			}
			if err != nil {
				return err
			}

			manager := environment.NewManager(scripted.Factory(tasks, scripted.WithStepLimit(cfg.Server.StepLimit)))
			ctx := cmd.Context()

			if ttl := cfg.Server.SessionTTL; ttl > 0 {
				go func() {
					ticker := time.NewTicker(ttl / 2)
					defer ticker.Stop()
					for {
						select {
						case <-ctx.Done():
							return
						case <-ticker.C:
							if n := manager.Prune(ttl); n > 0 {
								logger.WithField("closed", n).Info("pruned idle sessions")
							}
						}
					}
				}()
			}

			srv := gateway.NewServer(manager,
				gateway.WithLogger(logger),
				gateway.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
			)
			return srv.ListenAndServe(ctx, cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&tasksFile, "tasks", "", "scripted engine task file (overrides config)")
	return cmd
}
