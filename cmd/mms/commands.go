package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/j-veylop/minimax-status/internal/app"
	"github.com/j-veylop/minimax-status/internal/config"
	"github.com/j-veylop/minimax-status/internal/logger"
	"github.com/j-veylop/minimax-status/internal/services"
	"github.com/j-veylop/minimax-status/internal/services/projection"
	"github.com/j-veylop/minimax-status/internal/services/usage"
	"github.com/j-veylop/minimax-status/internal/ui/components"
	"github.com/j-veylop/minimax-status/internal/version"
)

const (
	defaultHistoryLimit = 20
	chartWidth          = 60
	chartHeight         = 10
	watchLogName        = "watch.log"
)

var errHistoryDisabled = errors.New("history is disabled (MINIMAX_HISTORY=false)")

func newRootCommand() *cobra.Command {
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:   "mms",
		Short: "MiniMax Coding Plan usage status",
		Long: `Query the MiniMax Coding Plan remains endpoint and report quota usage.

Credentials are read from ~/.minimax-config.json (override with MINIMAX_CONFIG_PATH).
Settings may also be placed in a .env file in the current directory,
~/.config/opencode/minimax-status/.env, ~/.config/opencode/.env or ~/.minimax/.env.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		// version.Info may shell out to git, so it is resolved only on request
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Info())
				return err
			}
			return cmd.Help()
		},
	}
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "print version information")

	rootCmd.AddCommand(
		newStatusCommand(),
		newAuthCommand(),
		newHistoryCommand(),
		newWatchCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

// withManager loads configuration and runs fn against a fresh service manager.
func withManager(fn func(cfg *config.Config, mgr *services.Manager) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	// .env files may set LOG_LEVEL
	logger.Logger = logger.New(os.Stderr, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	mgr, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	runErr := fn(cfg, mgr)
	if err := mgr.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func newStatusCommand() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show current Coding Plan usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(func(_ *config.Config, mgr *services.Manager) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), mgr.Tools().Status(cmd.Context(), refresh))
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "force a fresh query (every query is fresh)")
	return cmd
}

func newAuthCommand() *cobra.Command {
	var token, groupID string

	cmd := &cobra.Command{
		Use:   "auth [get|set]",
		Short: "Show or set MiniMax credentials",
		Example: `  mms auth get
  mms auth set --token sk-xxx --group-id 1234567890`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := ""
			if len(args) == 1 {
				action = args[0]
			}
			return withManager(func(_ *config.Config, mgr *services.Manager) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), mgr.Tools().Auth(action, token, groupID))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "MiniMax API key")
	cmd.Flags().StringVar(&groupID, "group-id", "", "MiniMax group ID")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	var (
		limit int
		prune time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded usage snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(func(_ *config.Config, mgr *services.Manager) error {
				database := mgr.Database()
				if database == nil {
					if err := mgr.HistoryErr(); err != nil {
						return fmt.Errorf("history unavailable: %w", err)
					}
					return errHistoryDisabled
				}
				ctx := cmd.Context()
				out := cmd.OutOrStdout()

				if prune > 0 {
					removed, err := database.PruneSnapshots(ctx, prune)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "已清理 %d 条记录\n", removed)
				}

				records, err := database.GetSnapshots(ctx, limit)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					_, err := fmt.Fprintln(out, components.NoHistoryText)
					return err
				}

				fmt.Fprintln(out, components.RenderHistorySummary(records))
				proj, err := mgr.Project(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, projection.Summary(proj, usage.Shanghai))
				fmt.Fprintln(out)
				fmt.Fprintln(out, components.RenderUsageChart(records, chartWidth, chartHeight))
				fmt.Fprintln(out)
				_, err = fmt.Fprintln(out, components.RenderHistoryTable(records))
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "number of snapshots to show")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete snapshots older than this before listing (e.g. 720h)")
	return cmd
}

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live usage view with periodic refresh and desktop alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(func(cfg *config.Config, mgr *services.Manager) error {
				// stderr belongs to the alt screen while the view runs
				logFile, err := openWatchLog(filepath.Join(filepath.Dir(cfg.DatabasePath), watchLogName))
				if err == nil {
					defer func() { _ = logFile.Close() }()
					logger.Logger = logger.New(logFile, logger.ParseLevel(os.Getenv("LOG_LEVEL")))
				} else {
					logger.Logger = logger.New(io.Discard, slog.LevelError)
				}
				return app.Run(cmd.Context(), mgr, cfg.RefreshInterval)
			})
		},
	}
}

func openWatchLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
