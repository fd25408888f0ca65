package backtest

import (
	"fmt"
	"io"
	"sort"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the XLSX export
const (
	SheetSummary   = "Summary"
	SheetSnapshots = "Snapshots"
	SheetTrades    = "Trades"
	SheetRegimes   = "Regimes"
)

// WriteXLSX writes the run as a workbook with summary, snapshot, trade and regime sheets
func WriteXLSX(result *Result, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	for _, name := range []string{SheetSnapshots, SheetTrades, SheetRegimes} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	m := result.Metrics
	summary := [][]interface{}{
		{"Run ID", result.ID},
		{"Tickers", fmt.Sprint(result.Config.Tickers)},
		{"Start", result.Config.StartDate.Format("2006-01-02")},
		{"End", result.Config.EndDate.Format("2006-01-02")},
		{"Rebalance", string(result.Config.Rebalance)},
		{"Initial capital", m.InitialCapital},
		{"Final value", m.FinalValue},
		{"Total return %", m.TotalReturn},
		{"Annualized return %", m.AnnualizedReturn},
		{"Volatility %", m.Volatility},
		{"Smoothed volatility %", m.SmoothedVolatility},
		{"Sharpe", m.SharpeRatio},
		{"Sortino", m.SortinoRatio},
		{"Max drawdown %", m.MaxDrawdown},
		{"Calmar", m.CalmarRatio},
		{"Total turnover", m.TotalTurnover},
		{"Total tax paid", m.TotalTaxPaid},
		{"After-tax return %", m.AfterTaxReturn},
		{"Open cost basis", m.CostBasis},
		{"Unrealized gains", m.UnrealizedGains},
		{"Rebalances", m.Rebalances},
		{"VaR 95 %", result.Advanced.VaR95},
		{"CVaR 95 %", result.Advanced.CVaR95},
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return err
	}

	tickers := result.Tickers()
	header := []interface{}{"Date", "Value", "Cash", "Daily return", "Regime", "Turbulence", "Turnover", "Tax paid"}
	for _, t := range tickers {
		header = append(header, t)
	}
	rows := [][]interface{}{header}
	for _, s := range result.Snapshots {
		row := []interface{}{s.Date.Format("2006-01-02"), s.Value, s.Cash, s.DailyReturn, string(s.Regime), s.Turbulence, s.Turnover, s.TaxPaid}
		for _, t := range tickers {
			row = append(row, s.Weights[t])
		}
		rows = append(rows, row)
	}
	if err := writeRows(f, SheetSnapshots, rows); err != nil {
		return err
	}

	rows = [][]interface{}{{"Date", "Ticker", "Side", "Shares", "Price", "Value", "Realized gain", "Tax"}}
	for _, tr := range result.Trades {
		rows = append(rows, []interface{}{tr.Date.Format("2006-01-02"), tr.Ticker, string(tr.Side), tr.Shares, tr.Price, tr.Value, tr.RealizedGain, tr.Tax})
	}
	if err := writeRows(f, SheetTrades, rows); err != nil {
		return err
	}

	regimes := make([]string, 0, len(result.RegimeBreakdown))
	for r := range result.RegimeBreakdown {
		regimes = append(regimes, string(r))
	}
	sort.Strings(regimes)
	rows = [][]interface{}{{"Regime", "Days", "Share %", "Cumulative return %", "Annualized return %", "Volatility %", "Sharpe"}}
	for _, r := range regimes {
		st := result.RegimeBreakdown[domain.Regime(r)]
		rows = append(rows, []interface{}{r, st.Days, st.Share, st.CumulativeReturn, st.AnnualizedReturn, st.Volatility, st.SharpeRatio})
	}
	if err := writeRows(f, SheetRegimes, rows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
