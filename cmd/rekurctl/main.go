package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rekur/backend/internal/app"
	"github.com/rekur/backend/internal/config"
	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/internal/logging"
	"github.com/rekur/backend/internal/repository"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "rekurctl",
	Short:         "Operate the ReKur backend",
	Long:          `rekurctl runs reminder batches, inspects them and performs maintenance against the ReKur database.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Reminder batch commands",
}

var remindRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one reminder batch now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			summary, err := a.Reminders.Run(cmd.Context())
			if errors.Is(err, domain.ErrRunInProgress) {
				return fmt.Errorf("another reminder run holds the lock")
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		})
	},
}

var remindStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last run and how many reminders it sent",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			st, err := a.Reminders.Status(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		})
	},
}

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Plan maintenance commands",
}

var confirmReset bool

var plansResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Move every paid or provider-linked profile back to free",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmReset {
			return fmt.Errorf("refusing to reset plans without --yes")
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			n, err := a.Admin.ResetPlans(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %d profiles\n", n)
			return nil
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := repository.NewDB(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := repository.RunMigrations(cmd.Context(), db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

func init() {
	plansResetCmd.Flags().BoolVar(&confirmReset, "yes", false, "confirm the reset")

	remindCmd.AddCommand(remindRunCmd, remindStatusCmd)
	plansCmd.AddCommand(plansResetCmd)
	rootCmd.AddCommand(remindCmd, plansCmd, migrateCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat, "rekurctl")
	return cfg, nil
}

func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
