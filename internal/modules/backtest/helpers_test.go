package backtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aristath/sentinel-quant/internal/database"
	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr[T any](v T) *T { return &v }

// barsFrom lays closes on consecutive weekdays starting at start
func barsFrom(start time.Time, closes ...float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, 0, len(closes))
	d := start
	for _, c := range closes {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		bars = append(bars, domain.PriceBar{Date: d, Open: c, High: c, Low: c, Close: c, Volume: 1000})
		d = d.AddDate(0, 0, 1)
	}
	return bars
}

func newRunsDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:%s_runs?mode=memory", strings.ReplaceAll(t.Name(), "/", "_")),
		Profile: database.ProfileStandard,
		Name:    database.NameRuns,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}
