package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/boristopalov/sciworld/internal/logging"
	"github.com/boristopalov/sciworld/pkg/config"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "sciworld",
		Short:         "sciworld serves a text simulation environment over HTTP and plays prompted episodes against it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sciworld.yaml", "config file")

	for _, envFile := range []string{
		".env",
		"../../.env",
		"../../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd.AddCommand(serveCmd(), tasksCmd(), playCmd(), transcriptCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Error("command failed")
		cancel()
		os.Exit(1)
	}
}

// setup loads the config and builds the logger shared by every command.
func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
