// Package commands implements the coachd CLI.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	service "github.com/okian/coachd/internal/app"
	"github.com/okian/coachd/internal/config"
	"github.com/okian/coachd/pkg/logger"
)

// envFile is read from the working directory before config is loaded.
// Variables already set in the environment win.
const envFile = ".env"

// state holds what PersistentPreRunE prepared for the subcommands.
type state struct {
	cfg *config.Config
	log logger.Logger

	// newService is swapped in tests.
	newService func(cfg *config.Config) *service.Service
}

// NewRootCmd builds the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rt := &state{
		newService: func(cfg *config.Config) *service.Service {
			return service.New(cfg, service.WithLogger(logger.Get()))
		},
	}
	return newRootCmd(version, rt)
}

func newRootCmd(version string, rt *state) *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	root := &cobra.Command{
		Use:   "coachd",
		Short: "Engagement scoring and AI triage for coaching practices",
		Long: `coachd scores client engagement, triages inbound updates, writes daily
briefings and answers coaches' questions over their data.

Examples:
  coachd serve
  coachd recompute
  coachd synthesize coach-1
  coachd ask coach-1 "Which clients are blocked?"
  coachd triage 5f0c...`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			if configPath != "" {
				if err := os.Setenv(config.EnvConfig, configPath); err != nil {
					return fmt.Errorf("set %s: %w", config.EnvConfig, err)
				}
			}
			if err := logger.Init(); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			rt.log = logger.Get()
			if err := logger.SetLevelString(cfg.LogLevel); err != nil {
				rt.log.Warn(cmd.Context(), "invalid log_level; falling back to info",
					logger.String("log_level", cfg.LogLevel), logger.Error(err))
				_ = logger.SetLevelString("info")
			}
			rt.cfg = cfg
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = logger.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (overrides "+config.EnvConfig+")")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newServeCmd(rt),
		newRecomputeCmd(rt),
		newSynthesizeCmd(rt),
		newAskCmd(rt),
		newTriageCmd(rt),
		newMigrateCmd(rt),
		newSeedCmd(rt),
	)
	return root
}

// withService initializes a service for a one-shot command and stops it
// afterwards.
func (rt *state) withService(ctx context.Context, fn func(*service.Service) error) (err error) {
	svc := rt.newService(rt.cfg)
	if err := svc.Init(ctx); err != nil {
		return err
	}
	defer func() {
		if stopErr := svc.Stop(context.WithoutCancel(ctx)); stopErr != nil && err == nil {
			err = stopErr
		}
	}()
	return fn(svc)
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
