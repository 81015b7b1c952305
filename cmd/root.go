// Package cmd defines the CLI commands for the harvester executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/journal-harvester/internal/app"
	"github.com/JakeFAU/journal-harvester/internal/config"
	"github.com/JakeFAU/journal-harvester/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// session is what subcommands receive from the root pre-run hook.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	runID  string
	app    *app.App
}

// newApp is the application factory. Tests replace it to inject fakes.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates the root command. v receives flag bindings from the
// subcommands before the configuration is loaded.
func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvests article metadata and full texts from an OJS journal archive.",
		Long: `harvester walks the issue archive of an Open Journal Systems site,
records every issue and article it finds, and downloads each article's PDF
or HTML galley. Runs are resumable: articles already recorded are skipped.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWith(v, cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			logger, runID := logging.WithRunID(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			s := &session{cfg: cfg, logger: logger, runID: runID, app: appInstance}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, s))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if s, ok := cmd.Context().Value(appKey).(*session); ok && s != nil {
				s.app.Close()
				_ = s.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	cmd.AddCommand(newRunCmd(v))
	return cmd
}

func sessionFrom(ctx context.Context) (*session, error) {
	s, ok := ctx.Value(appKey).(*session)
	if !ok || s == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return s, nil
}

// Execute runs the root command until completion or an interrupt signal.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(viper.New()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "harvester: %v\n", err)
		stop()
		os.Exit(1)
	}
}
