// Package taxlots tracks FIFO cost basis per ticker and computes capital-gains tax on
// sales.
package taxlots

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// LongTermHoldingDays is the minimum holding period for the long-term rate
const LongTermHoldingDays = 365

// TaxRates are decimal capital-gains rates
type TaxRates struct {
	LongTerm  float64 `json:"long_term" yaml:"long_term" validate:"gte=0,lte=1"`
	ShortTerm float64 `json:"short_term" yaml:"short_term" validate:"gte=0,lte=1"`
}

// DefaultTaxRates returns 15% long-term and 35% short-term
func DefaultTaxRates() TaxRates {
	return TaxRates{LongTerm: 0.15, ShortTerm: 0.35}
}

// TaxLot is one purchase. Shares decrease as the lot is sold and never go negative.
type TaxLot struct {
	Ticker       string    `json:"ticker"`
	Shares       float64   `json:"shares"`
	CostBasis    float64   `json:"cost_basis"` // Per share
	PurchaseDate time.Time `json:"purchase_date"`
}

// LotSale is the portion of one lot consumed by a sale
type LotSale struct {
	PurchaseDate time.Time `json:"purchase_date"`
	Shares       float64   `json:"shares"`
	CostBasis    float64   `json:"cost_basis"`
	Gain         float64   `json:"gain"`
	HoldingDays  int       `json:"holding_days"`
	LongTerm     bool      `json:"long_term"`
	Tax          float64   `json:"tax"`
}

// SaleResult summarizes one sell order
type SaleResult struct {
	Ticker          string    `json:"ticker"`
	SaleDate        time.Time `json:"sale_date"`
	SalePrice       float64   `json:"sale_price"`
	SharesRequested float64   `json:"shares_requested"`
	SharesSold      float64   `json:"shares_sold"`
	Proceeds        float64   `json:"proceeds"`
	RealizedGain    float64   `json:"realized_gain"` // Net of losses
	Tax             float64   `json:"tax"`
	Lots            []LotSale `json:"lots"`
}

// Ledger holds the open lots of one portfolio. It is not safe for concurrent use; each
// backtest run owns its own ledger.
type Ledger struct {
	rates        TaxRates
	lots         map[string][]*TaxLot
	totalTax     float64
	realizedGain float64
	log          zerolog.Logger
}

// NewLedger creates an empty ledger
func NewLedger(rates TaxRates, log zerolog.Logger) *Ledger {
	return &Ledger{
		rates: rates,
		lots:  make(map[string][]*TaxLot),
		log:   log.With().Str("component", "tax_ledger").Logger(),
	}
}

// Rates returns the ledger's tax rates
func (l *Ledger) Rates() TaxRates {
	return l.rates
}

// Buy records a new lot. Lots stay ordered by purchase date; same-day lots keep
// insertion order.
func (l *Ledger) Buy(ticker string, shares, price float64, date time.Time) error {
	if shares <= 0 {
		return fmt.Errorf("buy %s: shares must be positive, got %v", ticker, shares)
	}
	if price <= 0 {
		return fmt.Errorf("buy %s: price must be positive, got %v", ticker, price)
	}

	lots := append(l.lots[ticker], &TaxLot{
		Ticker:       ticker,
		Shares:       shares,
		CostBasis:    price,
		PurchaseDate: date,
	})
	sort.SliceStable(lots, func(i, j int) bool {
		return lots[i].PurchaseDate.Before(lots[j].PurchaseDate)
	})
	l.lots[ticker] = lots
	return nil
}

// Sell consumes the oldest lots first. Each lot's positive gain is taxed at the
// long-term rate when held at least LongTermHoldingDays, otherwise short-term; losses
// are not offset. Selling more than is held sells what is available.
func (l *Ledger) Sell(ticker string, shares, price float64, date time.Time) SaleResult {
	result := SaleResult{
		Ticker:          ticker,
		SaleDate:        date,
		SalePrice:       price,
		SharesRequested: shares,
		Lots:            []LotSale{},
	}

	remaining := shares
	for _, lot := range l.lots[ticker] {
		if remaining <= 0 {
			break
		}
		if lot.Shares <= 0 {
			continue
		}

		consumed := lot.Shares
		if remaining < consumed {
			consumed = remaining
		}

		days := holdingDays(lot.PurchaseDate, date)
		longTerm := days >= LongTermHoldingDays
		gain := (price - lot.CostBasis) * consumed
		tax := 0.0
		if gain > 0 {
			if longTerm {
				tax = gain * l.rates.LongTerm
			} else {
				tax = gain * l.rates.ShortTerm
			}
		}

		result.Lots = append(result.Lots, LotSale{
			PurchaseDate: lot.PurchaseDate,
			Shares:       consumed,
			CostBasis:    lot.CostBasis,
			Gain:         gain,
			HoldingDays:  days,
			LongTerm:     longTerm,
			Tax:          tax,
		})

		lot.Shares -= consumed
		remaining -= consumed
		result.SharesSold += consumed
		result.RealizedGain += gain
		result.Tax += tax
	}

	result.Proceeds = result.SharesSold * price
	l.compact(ticker)
	l.totalTax += result.Tax
	l.realizedGain += result.RealizedGain

	if remaining > 0 {
		l.log.Warn().
			Str("ticker", ticker).
			Float64("requested", shares).
			Float64("sold", result.SharesSold).
			Msg("Sell exceeds held shares, sold available lots only")
	}

	return result
}

// compact drops exhausted lots
func (l *Ledger) compact(ticker string) {
	lots := l.lots[ticker]
	open := lots[:0]
	for _, lot := range lots {
		if lot.Shares > 0 {
			open = append(open, lot)
		}
	}
	if len(open) == 0 {
		delete(l.lots, ticker)
		return
	}
	l.lots[ticker] = open
}

// Lots returns copies of the open lots for ticker, oldest first
func (l *Ledger) Lots(ticker string) []TaxLot {
	out := make([]TaxLot, 0, len(l.lots[ticker]))
	for _, lot := range l.lots[ticker] {
		out = append(out, *lot)
	}
	return out
}

// Shares returns the total open shares for ticker
func (l *Ledger) Shares(ticker string) float64 {
	total := 0.0
	for _, lot := range l.lots[ticker] {
		total += lot.Shares
	}
	return total
}

// CostBasis returns the total cost of the open shares for ticker
func (l *Ledger) CostBasis(ticker string) float64 {
	total := 0.0
	for _, lot := range l.lots[ticker] {
		total += lot.Shares * lot.CostBasis
	}
	return total
}

// UnrealizedGain values the open lots of ticker at price
func (l *Ledger) UnrealizedGain(ticker string, price float64) float64 {
	return l.Shares(ticker)*price - l.CostBasis(ticker)
}

// TotalTax returns the tax accumulated over every sale
func (l *Ledger) TotalTax() float64 {
	return l.totalTax
}

// RealizedGain returns the net gain accumulated over every sale
func (l *Ledger) RealizedGain() float64 {
	return l.realizedGain
}

// holdingDays counts whole days between purchase and sale
func holdingDays(purchase, sale time.Time) int {
	if sale.Before(purchase) {
		return 0
	}
	return int(sale.Sub(purchase) / (24 * time.Hour))
}
