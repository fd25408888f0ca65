package main

import (
	"fmt"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/modules/analysis"
	"github.com/aristath/sentinel-quant/internal/modules/optimization"
	"github.com/spf13/cobra"
)

func correlationCmd(opts *rootOptions) *cobra.Command {
	var (
		universe  universeFlags
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "correlation",
		Short: "Correlation matrix and highly correlated pairs",
		Long: `Examples:
  quantctl correlation --tickers SPY,QQQ,TLT --start 2022-01-01 --threshold 0.8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := universe.request()
			if err != nil {
				return err
			}
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.container.AnalysisService.Correlation(cmd.Context(), req, threshold)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	universe.register(cmd.Flags())
	cmd.Flags().Float64Var(&threshold, "threshold", 0.7, "absolute correlation reported as a pair")
	return cmd
}

func frontierCmd(opts *rootOptions) *cobra.Command {
	var (
		universe  universeFlags
		tolerance float64
		seed      uint64
	)
	cmd := &cobra.Command{
		Use:   "frontier",
		Short: "Efficient frontier and the portfolio for a risk tolerance",
		Long: `Examples:
  quantctl frontier --tickers SPY,TLT,GLD --start 2021-01-01 --risk-tolerance 30 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := universe.request()
			if err != nil {
				return err
			}
			if tolerance < 0 || tolerance > 100 {
				return fmt.Errorf("%w: --risk-tolerance must be within [0, 100]", domain.ErrConfiguration)
			}
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.container.AnalysisService.Frontier(cmd.Context(), analysis.FrontierRequest{
				Request:       req,
				RiskTolerance: tolerance,
				Seed:          seed,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	universe.register(cmd.Flags())
	cmd.Flags().Float64Var(&tolerance, "risk-tolerance", 50, "risk tolerance from 0 to 100")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "sampling seed (0 draws a fresh one)")
	return cmd
}

func hrpCmd(opts *rootOptions) *cobra.Command {
	var (
		universe    universeFlags
		ordering    string
		applyRegime bool
	)
	cmd := &cobra.Command{
		Use:   "hrp",
		Short: "Hierarchical risk parity weights",
		Long: `Examples:
  quantctl hrp --tickers SPY,TLT,GLD,VNQ --start 2020-01-01 --ordering single_linkage --apply-regime`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := universe.request()
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

			report, err := a.container.AnalysisService.HRP(cmd.Context(), analysis.HRPRequest{
				Request:     req,
				Ordering:    order,
				ApplyRegime: applyRegime,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	universe.register(cmd.Flags())
	cmd.Flags().StringVar(&ordering, "ordering", "", "average_distance, single_linkage, complete_linkage or average_linkage")
	cmd.Flags().BoolVar(&applyRegime, "apply-regime", false, "tilt the weights for the detected market regime")
	return cmd
}

func blackLittermanCmd(opts *rootOptions) *cobra.Command {
	var (
		universe      universeFlags
		views         []string
		marketWeights []string
		analyze       []string
	)
	cmd := &cobra.Command{
		Use:   "black-litterman",
		Short: "Black-Litterman allocation from investor views",
		Long: `Views are SYMBOL=WEIGHT@CONFIDENCE. With --analyze the given allocation is
compared against the optimal one instead.

Examples:
  quantctl black-litterman --tickers SPY,TLT,GLD --start 2021-01-01 --view SPY=0.5@0.8 --view GLD=0.2@0.4
  quantctl black-litterman --tickers SPY,TLT --start 2021-01-01 --analyze SPY=0.6,TLT=0.4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := universe.request()
			if err != nil {
				return err
			}
			parsed := make([]domain.InvestorView, 0, len(views))
			for _, v := range views {
				view, err := parseView(v)
				if err != nil {
					return err
				}
				parsed = append(parsed, view)
			}
			market, err := parseWeights(marketWeights)
			if err != nil {
				return err
			}
			var user domain.PortfolioWeights
			if len(analyze) > 0 {
				if user, err = parseWeights(analyze); err != nil {
					return err
				}
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if user != nil {
				report, err := a.container.AnalysisService.AnalyzeWeights(cmd.Context(), analysis.WeightsRequest{Request: req, Weights: user})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			}

			if len(market) == 0 {
				market = nil
			}
			report, err := a.container.AnalysisService.BlackLitterman(cmd.Context(), analysis.BlackLittermanRequest{
				Request:       req,
				Views:         parsed,
				MarketWeights: market,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	universe.register(cmd.Flags())
	cmd.Flags().StringArrayVar(&views, "view", nil, "investor view SYMBOL=WEIGHT@CONFIDENCE (repeatable)")
	cmd.Flags().StringSliceVar(&marketWeights, "market-weights", nil, "market weights SYMBOL=WEIGHT,... (default equal)")
	cmd.Flags().StringSliceVar(&analyze, "analyze", nil, "analyze this allocation SYMBOL=WEIGHT,...")
	return cmd
}
