package main

import (
	"fmt"
	"os"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/modules/backtest"
	"github.com/aristath/sentinel-quant/internal/modules/optimization"
	"github.com/spf13/cobra"
)

func backtestCmd(opts *rootOptions) *cobra.Command {
	var (
		universe  universeFlags
		capital   float64
		rebalance string
		benchmark string
		ordering  string
		xlsxPath  string
		full      bool
		riskFree  float64
		taxLong   float64
		taxShort  float64
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run an HRP rebalancing backtest",
		Long: `Simulates a regime-aware HRP portfolio over the given tickers and dates,
storing the run in the runs database.

Examples:
  quantctl backtest --tickers SPY,TLT,GLD --start 2020-01-01 --end 2023-12-31
  quantctl backtest --tickers SPY,QQQ --start 2019-01-01 --rebalance weekly --xlsx run.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := universe.dates()
			if err != nil {
				return err
			}
			freq, err := backtest.ParseRebalanceFrequency(rebalance)
			if err != nil {
				return err
			}
			order := optimization.HRPOrdering(ordering)
			if order != "" && !order.Valid() {
				return fmt.Errorf("%w: unknown HRP ordering %q", domain.ErrConfiguration, ordering)
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := backtest.Config{
				Tickers:        universe.tickers,
				StartDate:      start,
				EndDate:        end,
				InitialCapital: capital,
				Rebalance:      freq,
				Benchmark:      benchmark,
				HRP:            optimization.HRPOptions{Ordering: order},
			}
			// only flags given on the command line override the engine defaults
			if cmd.Flags().Changed("risk-free") {
				cfg.RiskFreeRate = &riskFree
			}
			if cmd.Flags().Changed("tax-long") || cmd.Flags().Changed("tax-short") {
				rates := a.cfg.Engine.TaxRates
				if cmd.Flags().Changed("tax-long") {
					rates.LongTerm = taxLong
				}
				if cmd.Flags().Changed("tax-short") {
					rates.ShortTerm = taxShort
				}
				cfg.TaxRates = &rates
			}
			cfg = a.cfg.Engine.ApplyTo(cfg)

			stderr := cmd.ErrOrStderr()
			result, err := a.container.BacktestService.Run(cmd.Context(), cfg, func(msg string, pct float64) {
				fmt.Fprintf(stderr, "[%5.1f%%] %s\n", pct, msg)
			})
			if err != nil {
				return err
			}

			if xlsxPath != "" {
				if err := writeXLSX(result, xlsxPath); err != nil {
					return err
				}
				fmt.Fprintf(stderr, "wrote %s\n", xlsxPath)
			}
			if full {
				return printJSON(cmd.OutOrStdout(), result)
			}
			return printJSON(cmd.OutOrStdout(), summarize(result))
		},
	}

	universe.register(cmd.Flags())
	cmd.Flags().Float64Var(&capital, "capital", 10000, "initial capital")
	cmd.Flags().StringVar(&rebalance, "rebalance", "", "rebalance frequency: daily, weekly, monthly or none")
	cmd.Flags().StringVar(&benchmark, "benchmark", "", "benchmark ticker")
	cmd.Flags().StringVar(&ordering, "ordering", "", "HRP ordering")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the result workbook to this path")
	cmd.Flags().BoolVar(&full, "full", false, "print the full result instead of the summary")
	cmd.Flags().Float64Var(&riskFree, "risk-free", 0, "annual risk-free rate, decimal (default from engine defaults)")
	cmd.Flags().Float64Var(&taxLong, "tax-long", 0, "long-term capital gains rate (default from engine defaults)")
	cmd.Flags().Float64Var(&taxShort, "tax-short", 0, "short-term capital gains rate (default from engine defaults)")
	return cmd
}

// runOutput is the compact form printed after a backtest
type runOutput struct {
	ID          string                        `json:"id"`
	Tickers     []string                      `json:"tickers"`
	Metrics     backtest.PerformanceMetrics   `json:"metrics"`
	Benchmark   *backtest.BenchmarkComparison `json:"benchmark,omitempty"`
	Warnings    []string                      `json:"warnings,omitempty"`
	Diagnostics int                           `json:"diagnostics"`
}

func summarize(r *backtest.Result) runOutput {
	return runOutput{
		ID:          r.ID,
		Tickers:     r.Tickers(),
		Metrics:     r.Metrics,
		Benchmark:   r.Benchmark,
		Warnings:    r.Warnings,
		Diagnostics: len(r.Diagnostics),
	}
}

func writeXLSX(result *backtest.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := backtest.WriteXLSX(result, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored backtest runs",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.container.BacktestService.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), runs)
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")

	var xlsxPath string
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.container.BacktestService.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if xlsxPath != "" {
				return writeXLSX(result, xlsxPath)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	show.Flags().StringVar(&xlsxPath, "xlsx", "", "write the run workbook to this path instead of printing JSON")

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.container.BacktestService.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, remove)
	return cmd
}
