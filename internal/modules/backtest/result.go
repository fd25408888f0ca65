package backtest

import (
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/modules/historical"
	"github.com/aristath/sentinel-quant/internal/modules/risk"
)

// Snapshot is the portfolio state at the close of one simulated day
type Snapshot struct {
	Date        time.Time               `json:"date"`
	Value       float64                 `json:"value"`
	Cash        float64                 `json:"cash"`
	DailyReturn float64                 `json:"daily_return"` // Decimal
	Regime      domain.Regime           `json:"regime"`
	Turbulence  float64                 `json:"turbulence"`
	Weights     domain.PortfolioWeights `json:"weights"` // Held value weights after trading
	Rebalanced  bool                    `json:"rebalanced"`
	Turnover    float64                 `json:"turnover"` // Traded value over portfolio value
	TaxPaid     float64                 `json:"tax_paid"`
}

// TradeSide is buy or sell
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// Trade is one executed order
type Trade struct {
	Date         time.Time `json:"date"`
	Ticker       string    `json:"ticker"`
	Side         TradeSide `json:"side"`
	Shares       float64   `json:"shares"`
	Price        float64   `json:"price"`
	Value        float64   `json:"value"`
	RealizedGain float64   `json:"realized_gain,omitempty"`
	Tax          float64   `json:"tax,omitempty"`
}

// PerformanceMetrics summarizes a run. Returns, volatility and drawdown are percent.
type PerformanceMetrics struct {
	InitialCapital   float64 `json:"initial_capital"`
	FinalValue       float64 `json:"final_value"`
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"` // CAGR over calendar years
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	CalmarRatio      float64 `json:"calmar_ratio"`
	TotalTurnover    float64 `json:"total_turnover"`
	TotalTaxPaid     float64 `json:"total_tax_paid"`
	RealizedGains    float64 `json:"realized_gains"`
	AfterTaxReturn   float64 `json:"after_tax_return"`
	Rebalances       int     `json:"rebalances"`
	TradingDays      int     `json:"trading_days"`
	Years            float64 `json:"years"`

	// CostBasis and UnrealizedGains describe the lots still open at the end of the run,
	// so FinalValue = final cash + CostBasis + UnrealizedGains. SmoothedVolatility is the
	// mean of the last RollingWindow rolling volatility values (percent).
	CostBasis          float64 `json:"cost_basis"`
	UnrealizedGains    float64 `json:"unrealized_gains"`
	SmoothedVolatility float64 `json:"smoothed_volatility"`
}

// RegimeStats are the metrics of the days spent in one regime
type RegimeStats struct {
	Regime           domain.Regime `json:"regime"`
	Days             int           `json:"days"`
	Share            float64       `json:"share"`             // Percent of simulated days
	CumulativeReturn float64       `json:"cumulative_return"` // Percent, compounded over the regime's days
	AnnualizedReturn float64       `json:"annualized_return"` // Mean daily return × 252, percent
	Volatility       float64       `json:"volatility"`
	SharpeRatio      float64       `json:"sharpe_ratio"`
}

// BenchmarkComparison relates the portfolio to a benchmark ticker
type BenchmarkComparison struct {
	Ticker           string  `json:"ticker"`
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Beta             float64 `json:"beta"`
	Correlation      float64 `json:"correlation"`
	TreynorRatio     float64 `json:"treynor_ratio"`
	InformationRatio float64 `json:"information_ratio"`
}

// Result is everything a run produces
type Result struct {
	ID                string                        `json:"id"`
	Config            Config                        `json:"config"`
	Snapshots         []Snapshot                    `json:"snapshots"`
	Trades            []Trade                       `json:"trades"`
	Metrics           PerformanceMetrics            `json:"metrics"`
	Advanced          risk.AdvancedRiskMetrics      `json:"advanced_metrics"`
	RegimeBreakdown   map[domain.Regime]RegimeStats `json:"regime_breakdown"`
	RollingVolatility []float64                     `json:"rolling_volatility"`
	Benchmark         *BenchmarkComparison          `json:"benchmark,omitempty"`
	Diagnostics       []historical.Diagnostic       `json:"diagnostics"`
	Warnings          []string                      `json:"warnings"`
	StartedAt         time.Time                     `json:"started_at"`
	Duration          time.Duration                 `json:"duration"`
}

// Values returns the portfolio value series
func (r *Result) Values() []float64 {
	out := make([]float64, len(r.Snapshots))
	for i, s := range r.Snapshots {
		out[i] = s.Value
	}
	return out
}

// Tickers lists the configured tickers that survived fetching. A benchmark fetched only
// for comparison is left out.
func (r *Result) Tickers() []string {
	out := make([]string, 0)
	for _, d := range r.Diagnostics {
		if d.Success && contains(r.Config.Tickers, d.Ticker) {
			out = append(out, d.Ticker)
		}
	}
	return out
}
