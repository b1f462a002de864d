// Package cmd defines the harvester command tree.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/hn-harvester/internal/app"
	"github.com/JakeFAU/hn-harvester/internal/config"
	"github.com/JakeFAU/hn-harvester/internal/dispatcher"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the slice of *app.App the commands use. Tests inject a mock.
type App interface {
	Harvest(ctx context.Context) (dispatcher.Summary, error)
	Logger() *zap.Logger
	Close()
}

// newApp is the application factory, swapped out in tests.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.New(ctx, cfg)
}

// newRootCmd creates the root command, which runs one harvest.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Concurrently fetch and print the stories of a Hacker News listing.",
		Long: `harvester fetches a listing of story identifiers once, then runs a fixed
pool of workers that pop identifiers from a shared stack, fetch each item and
print "<id> : <title> (TID <worker>)" for every item that parses.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Builds the App after flags are parsed and before RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			zap.ReplaceGlobals(appInstance.Logger())
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		RunE: runHarvest,

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (yaml, json or toml)")
	flags := cmd.Flags()
	flags.IntP("workers", "w", 8, "number of concurrent workers")
	flags.Int("timeout", 10, "per-request timeout in seconds")
	flags.Bool("fail-on-error", false, "exit non-zero when any item fails")
	flags.Bool("insecure-skip-verify", false, "disable TLS certificate verification")
	flags.String("metrics-addr", "", "serve /metrics, /healthz and /readyz on this address during the run")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	if _, err := appInstance.Harvest(cmd.Context()); err != nil {
		// PersistentPostRun is skipped when RunE fails.
		appInstance.Close()
		return fmt.Errorf("harvest: %w", err)
	}
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		zap.L().Error("command execution failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "harvester: %v\n", err)
		return 1
	}
	return 0
}
