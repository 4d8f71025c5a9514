// fundctl is the operator CLI for one-off valuation, reconciliation and
// fund-list maintenance against the local fundval databases.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/fundval/internal/config"
	"github.com/aristath/fundval/internal/di"
	"github.com/aristath/fundval/internal/modules/archive"
	"github.com/aristath/fundval/internal/modules/valuation"
	"github.com/aristath/fundval/pkg/logger"
)

var (
	cfg       *config.Config
	log       zerolog.Logger
	container *di.Container
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "fundctl",
	Short:         "Operate the fundval valuation engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level, _ := cmd.Flags().GetString("log-level")
		if level == "" {
			level = "warn"
		}
		log = logger.New(logger.Config{Level: level, Pretty: true, Output: os.Stderr})

		container, _, err = di.Wire(cfg, nil, log)
		if err != nil {
			return err
		}
		container.RefreshPool.Start()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if container != nil {
			container.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(valuationCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(syncFundsCmd)
	rootCmd.AddCommand(watchlistCmd)
}

// --- Valuation Command ---

var valuationCmd = &cobra.Command{
	Use:   "valuation <code>...",
	Short: "Estimate today's NAV growth for one or more funds",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, _ := cmd.Flags().GetBool("summary")

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		results, err := container.ValuationService.GetBatchValuation(ctx, args, summary)
		if err != nil {
			return err
		}
		return printJSON(results)
	},
}

func init() {
	valuationCmd.Flags().Bool("summary", false, "omit components and sector attribution")
}

// --- Reconcile Command ---

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Grade archived estimates against published NAV growth",
	Long:  "Reconcile every archived day before --date (default today) that still lacks official growth.",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")
		if date == "" {
			date = time.Now().In(cfg.Location).Format(archive.DateLayout)
		} else if _, err := time.Parse(archive.DateLayout, date); err != nil {
			return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
		defer cancel()

		summary, err := container.Reconciler.ReconcilePending(ctx, date)
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

func init() {
	reconcileCmd.Flags().String("date", "", "reconcile days strictly before this date (YYYY-MM-DD)")
}

// --- Sync Funds Command ---

var syncFundsCmd = &cobra.Command{
	Use:   "sync-funds",
	Short: "Refresh the local fund-name index",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		n, err := container.FundService.SyncFundList(ctx, true)
		if err != nil {
			return err
		}
		fmt.Printf("synced %d funds\n", n)
		return nil
	},
}

// --- Watchlist Commands ---

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Manage the funds valued by the daily snapshot",
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched funds",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := container.WatchlistRepo.List()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s\t%s\t%s\n", e.Code, e.Name, e.AddedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add <code>...",
	Short: "Add funds to the watchlist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, code := range args {
			code = strings.TrimSpace(code)
			if !valuation.ValidFundCode(code) {
				return fmt.Errorf("%w: %q", valuation.ErrInvalidFundCode, code)
			}
			if err := container.WatchlistRepo.Add(code); err != nil {
				return err
			}
		}
		return nil
	},
}

var watchlistRemoveCmd = &cobra.Command{
	Use:   "remove <code>...",
	Short: "Remove funds from the watchlist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, code := range args {
			removed, err := container.WatchlistRepo.Remove(code)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(os.Stderr, "%s was not on the watchlist\n", code)
			}
		}
		return nil
	},
}

func init() {
	watchlistCmd.AddCommand(watchlistListCmd, watchlistAddCmd, watchlistRemoveCmd)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
