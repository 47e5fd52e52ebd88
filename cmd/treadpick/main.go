// Command treadpick serves and runs bicycle tire recommendations.
//
//	treadpick serve                          HTTP API
//	treadpick rank --wet not --width narrow  print a ranking
//	treadpick relay --text "deploy done"     send one chat-ops message
//	treadpick migrate --seed tires.yaml      create tables and load a dataset
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ahrav/treadpick/internal/application"
	"github.com/ahrav/treadpick/internal/logging"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "treadpick",
		Short:         "Bicycle tire recommendations by wet grip and rolling resistance",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: $"+application.ConfigPathEnvVar+")")

	load := func() (*application.Config, error) {
		cfg, err := application.LoadConfig(cfgFile)
		if err != nil {
			return nil, err
		}
		logging.Init(cfg.Log)
		return cfg, nil
	}

	root.AddCommand(
		serveCmd(load),
		rankCmd(load),
		relayCmd(load),
		migrateCmd(load),
	)
	return root
}

// configLoader loads and applies the configuration for a subcommand.
type configLoader func() (*application.Config, error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
