package historical

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aristath/sentinel-quant/internal/database"
	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// weekdayBars builds one bar per weekday in [start, end] with the given closes, cycling
func weekdayBars(start, end time.Time, closes ...float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, 0)
	i := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		c := closes[i%len(closes)]
		bars = append(bars, domain.PriceBar{Date: d, Open: c, High: c, Low: c, Close: c, Volume: 1000})
		i++
	}
	return bars
}

func newHistoryDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:%s_history?mode=memory", strings.ReplaceAll(t.Name(), "/", "_")),
		Profile: database.ProfileCache,
		Name:    database.NameHistory,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}
