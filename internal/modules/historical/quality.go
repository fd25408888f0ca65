package historical

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
)

const dateLayout = "2006-01-02"

const (
	maxPriceChangePercent = 1000.0 // >1000% day-over-day is a spike
	minPriceChangePercent = -90.0  // <-90% day-over-day is a crash

	highCoverage    = 0.90
	mediumCoverage  = 0.75
	maxMediumIssues = 0.05 // Share of bars with issues still rated medium
)

// Tier grades a price history
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Issue kinds
const (
	IssueNonPositivePrice = "non_positive_price"
	IssueHighBelowLow     = "high_below_low"
	IssueHighBelowOpen    = "high_below_open"
	IssueHighBelowClose   = "high_below_close"
	IssueLowAboveOpen     = "low_above_open"
	IssueLowAboveClose    = "low_above_close"
	IssueNonMonotonic     = "non_monotonic_date"
	IssueDuplicateDate    = "duplicate_date"
	IssueSpike            = "spike_detected"
	IssueCrash            = "crash_detected"
	IssueLowCoverage      = "insufficient_coverage"
)

// Issue is one data-quality finding
type Issue struct {
	Date time.Time `json:"date"`
	Kind string    `json:"kind"`
}

func (i Issue) String() string {
	if i.Date.IsZero() {
		return i.Kind
	}
	return fmt.Sprintf("%s %s", i.Date.Format(dateLayout), i.Kind)
}

// DataQuality summarizes the findings for one ticker
type DataQuality struct {
	Tier     Tier    `json:"tier"`
	Coverage float64 `json:"coverage"` // Bars over expected weekdays in range, capped at 1
	Issues   []Issue `json:"issues"`
}

// ValidateBar runs the OHLC consistency checks on one bar.
// Returns (isValid, reason)
func ValidateBar(bar domain.PriceBar) (bool, string) {
	if bar.Close <= 0 || bar.Open < 0 || bar.High < 0 || bar.Low < 0 {
		return false, IssueNonPositivePrice
	}
	// Sources sometimes omit intraday fields; only check what is present
	if bar.High == 0 || bar.Low == 0 || bar.Open == 0 {
		return true, ""
	}
	if bar.High < bar.Low {
		return false, IssueHighBelowLow
	}
	if bar.High < bar.Open {
		return false, IssueHighBelowOpen
	}
	if bar.High < bar.Close {
		return false, IssueHighBelowClose
	}
	if bar.Low > bar.Open {
		return false, IssueLowAboveOpen
	}
	if bar.Low > bar.Close {
		return false, IssueLowAboveClose
	}
	return true, ""
}

// CleanAndAssess assesses raw bars, then returns them sorted, deduplicated (last bar
// per date wins), restricted to [start, end] and stripped of non-positive closes.
func CleanAndAssess(raw []domain.PriceBar, start, end time.Time) ([]domain.PriceBar, DataQuality) {
	issues := make([]Issue, 0)

	for i, bar := range raw {
		if ok, reason := ValidateBar(bar); !ok {
			issues = append(issues, Issue{Date: bar.Date, Kind: reason})
		}
		if i > 0 {
			prev := raw[i-1]
			switch {
			case bar.Date.Equal(prev.Date):
				issues = append(issues, Issue{Date: bar.Date, Kind: IssueDuplicateDate})
			case bar.Date.Before(prev.Date):
				issues = append(issues, Issue{Date: bar.Date, Kind: IssueNonMonotonic})
			}
		}
	}

	clean := sanitize(raw, start, end)

	for i := 1; i < len(clean); i++ {
		change := (clean[i].Close - clean[i-1].Close) / clean[i-1].Close * 100
		if change > maxPriceChangePercent {
			issues = append(issues, Issue{Date: clean[i].Date, Kind: IssueSpike})
		} else if change < minPriceChangePercent {
			issues = append(issues, Issue{Date: clean[i].Date, Kind: IssueCrash})
		}
	}

	coverage := Coverage(len(clean), start, end)
	quality := DataQuality{Coverage: coverage, Issues: issues}
	if coverage < mediumCoverage {
		quality.Issues = append(quality.Issues, Issue{Kind: IssueLowCoverage})
	}
	quality.Tier = grade(coverage, len(issues), len(clean))

	return clean, quality
}

func grade(coverage float64, issues, bars int) Tier {
	if issues == 0 && coverage >= highCoverage {
		return TierHigh
	}
	if bars > 0 && coverage >= mediumCoverage && float64(issues)/float64(bars) <= maxMediumIssues {
		return TierMedium
	}
	return TierLow
}

func sanitize(raw []domain.PriceBar, start, end time.Time) []domain.PriceBar {
	sorted := make([]domain.PriceBar, 0, len(raw))
	for _, b := range raw {
		if b.Close <= 0 {
			continue
		}
		d := truncateDay(b.Date)
		if d.Before(truncateDay(start)) || d.After(truncateDay(end)) {
			continue
		}
		b.Date = d
		sorted = append(sorted, b)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	out := make([]domain.PriceBar, 0, len(sorted))
	for _, b := range sorted {
		if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// Coverage is the ratio of bars to weekdays in [start, end], capped at 1
func Coverage(bars int, start, end time.Time) float64 {
	expected := Weekdays(start, end)
	if expected == 0 {
		return 0
	}
	c := float64(bars) / float64(expected)
	if c > 1 {
		return 1
	}
	return c
}

// Weekdays counts Monday-Friday dates in [start, end]
func Weekdays(start, end time.Time) int {
	s, e := truncateDay(start), truncateDay(end)
	if e.Before(s) {
		return 0
	}
	days := int(e.Sub(s).Hours()/24) + 1
	weeks, rem := days/7, days%7
	count := weeks * 5
	wd := s.Weekday()
	for i := 0; i < rem; i++ {
		d := (int(wd) + i) % 7
		if d != int(time.Saturday) && d != int(time.Sunday) {
			count++
		}
	}
	return count
}

// truncateDay drops the time of day, keeping the calendar date in UTC
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
