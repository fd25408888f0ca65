package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/sentinel-quant/internal/config"
	"github.com/aristath/sentinel-quant/internal/di"
	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/modules/analysis"
	"github.com/aristath/sentinel-quant/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const dateLayout = "2006-01-02"

// rootOptions are the persistent flags shared by every command
type rootOptions struct {
	source      string
	dataDir     string
	logLevel    string
	concurrency int
	engineFile  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "quantctl",
		Short:         "Portfolio analysis and backtesting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.source, "source", "", "price source: yahoo, cache or synthetic (default from PRICE_SOURCE)")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "data directory (default from QUANT_DATA_DIR)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")
	root.PersistentFlags().IntVar(&opts.concurrency, "concurrency", 0, "concurrent ticker fetches")
	root.PersistentFlags().StringVar(&opts.engineFile, "engine-defaults", "", "YAML file of engine defaults")

	root.AddCommand(backtestCmd(opts))
	root.AddCommand(runsCmd(opts))
	root.AddCommand(correlationCmd(opts))
	root.AddCommand(frontierCmd(opts))
	root.AddCommand(hrpCmd(opts))
	root.AddCommand(blackLittermanCmd(opts))
	return root
}

// app is the wired engine for one command invocation
type app struct {
	cfg       *config.Config
	container *di.Container
	log       zerolog.Logger
}

func (a *app) Close() {
	if err := a.container.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close databases")
	}
}

// loadConfig reads the environment and applies flag overrides
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.dataDir != "" {
		dir, err := filepath.Abs(o.dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data directory: %w", err)
		}
		// config.Load reads QUANT_DATA_DIR
		if err := os.Setenv("QUANT_DATA_DIR", dir); err != nil {
			return nil, err
		}
	}
	if o.engineFile != "" {
		if err := os.Setenv("ENGINE_DEFAULTS_FILE", o.engineFile); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.source != "" {
		cfg.PriceSource = strings.ToLower(o.source)
	}
	if o.concurrency > 0 {
		cfg.FetchConcurrency = o.concurrency
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *rootOptions) open(cmd *cobra.Command) (*app, error) {
	log := logger.New(logger.Config{
		Level:  o.logLevel,
		Pretty: true,
		Output: cmd.ErrOrStderr(),
	})

	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	container, _, err := di.Wire(cmd.Context(), cfg, log)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, container: container, log: log}, nil
}

// universeFlags select tickers and a date range
type universeFlags struct {
	tickers []string
	start   string
	end     string
}

func (u *universeFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVar(&u.tickers, "tickers", nil, "comma separated tickers")
	fs.StringVar(&u.start, "start", "", "start date (YYYY-MM-DD)")
	fs.StringVar(&u.end, "end", "", "end date (YYYY-MM-DD, default today)")
}

func (u *universeFlags) dates() (time.Time, time.Time, error) {
	if u.start == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: --start is required", domain.ErrConfiguration)
	}
	start, err := time.Parse(dateLayout, u.start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid --start: %v", domain.ErrConfiguration, err)
	}
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if u.end != "" {
		if end, err = time.Parse(dateLayout, u.end); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid --end: %v", domain.ErrConfiguration, err)
		}
	}
	return start, end, nil
}

func (u *universeFlags) request() (analysis.Request, error) {
	start, end, err := u.dates()
	if err != nil {
		return analysis.Request{}, err
	}
	return analysis.Request{Tickers: u.tickers, StartDate: start, EndDate: end}, nil
}

// parseWeights reads SYMBOL=WEIGHT pairs
func parseWeights(pairs []string) (domain.PortfolioWeights, error) {
	weights := make(domain.PortfolioWeights, len(pairs))
	for _, p := range pairs {
		symbol, raw, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("%w: weight %q is not SYMBOL=WEIGHT", domain.ErrConfiguration, p)
		}
		w, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: weight %q: %v", domain.ErrConfiguration, p, err)
		}
		weights[strings.ToUpper(strings.TrimSpace(symbol))] = w
	}
	return weights, nil
}

// parseView reads SYMBOL=WEIGHT@CONFIDENCE
func parseView(s string) (domain.InvestorView, error) {
	symbol, rest, ok := strings.Cut(s, "=")
	if !ok {
		return domain.InvestorView{}, fmt.Errorf("%w: view %q is not SYMBOL=WEIGHT@CONFIDENCE", domain.ErrConfiguration, s)
	}
	rawWeight, rawConf, ok := strings.Cut(rest, "@")
	if !ok {
		return domain.InvestorView{}, fmt.Errorf("%w: view %q is missing @CONFIDENCE", domain.ErrConfiguration, s)
	}
	weight, err := strconv.ParseFloat(rawWeight, 64)
	if err != nil {
		return domain.InvestorView{}, fmt.Errorf("%w: view %q: %v", domain.ErrConfiguration, s, err)
	}
	conf, err := strconv.ParseFloat(rawConf, 64)
	if err != nil {
		return domain.InvestorView{}, fmt.Errorf("%w: view %q: %v", domain.ErrConfiguration, s, err)
	}
	if weight < 0 || weight > 1 || conf < 0 || conf > 1 {
		return domain.InvestorView{}, fmt.Errorf("%w: view %q: weight and confidence must be within [0, 1]", domain.ErrConfiguration, s)
	}
	return domain.InvestorView{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), TargetWeight: weight, Confidence: conf}, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
