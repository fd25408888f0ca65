package historical

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/sentinel-quant/internal/database"
	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// CachedHistory is a stored bar series with its provenance
type CachedHistory struct {
	Ticker    string
	Bars      []domain.PriceBar
	Source    string
	FetchedAt time.Time
}

// FirstDate returns the earliest bar date, or the zero time
func (c CachedHistory) FirstDate() time.Time {
	if len(c.Bars) == 0 {
		return time.Time{}
	}
	return c.Bars[0].Date
}

// LastDate returns the latest bar date, or the zero time
func (c CachedHistory) LastDate() time.Time {
	if len(c.Bars) == 0 {
		return time.Time{}
	}
	return c.Bars[len(c.Bars)-1].Date
}

// Store persists price histories in the history database, one msgpack blob per ticker
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// NewStore creates a price history store
func NewStore(db *database.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("component", "price_store").Logger(),
	}
}

// Save replaces the stored series for ticker. Bars must already be clean and ordered.
func (s *Store) Save(ctx context.Context, ticker string, bars []domain.PriceBar, source string) error {
	if len(bars) == 0 {
		return fmt.Errorf("save %s: no bars", ticker)
	}

	blob, err := msgpack.Marshal(bars)
	if err != nil {
		return fmt.Errorf("failed to encode bars for %s: %w", ticker, err)
	}

	_, err = s.db.Conn().ExecContext(ctx, `
		INSERT INTO price_history (ticker, first_date, last_date, bar_count, bars, source, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			first_date = excluded.first_date,
			last_date = excluded.last_date,
			bar_count = excluded.bar_count,
			bars = excluded.bars,
			source = excluded.source,
			fetched_at = excluded.fetched_at
	`,
		ticker,
		bars[0].Date.Format(dateLayout),
		bars[len(bars)-1].Date.Format(dateLayout),
		len(bars),
		blob,
		source,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store price history for %s: %w", ticker, err)
	}

	s.log.Debug().
		Str("ticker", ticker).
		Int("bars", len(bars)).
		Str("source", source).
		Msg("Stored price history")

	return nil
}

// Load returns the stored series for ticker. ok is false when nothing is stored.
func (s *Store) Load(ctx context.Context, ticker string) (CachedHistory, bool, error) {
	var (
		blob      []byte
		source    string
		fetchedAt int64
	)
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT bars, source, fetched_at FROM price_history WHERE ticker = ?`, ticker,
	).Scan(&blob, &source, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CachedHistory{}, false, nil
	}
	if err != nil {
		return CachedHistory{}, false, fmt.Errorf("failed to load price history for %s: %w", ticker, err)
	}

	var bars []domain.PriceBar
	if err := msgpack.Unmarshal(blob, &bars); err != nil {
		return CachedHistory{}, false, fmt.Errorf("failed to decode price history for %s: %w", ticker, err)
	}
	for i := range bars {
		bars[i].Date = bars[i].Date.UTC()
	}

	return CachedHistory{
		Ticker:    ticker,
		Bars:      bars,
		Source:    source,
		FetchedAt: time.Unix(fetchedAt, 0),
	}, true, nil
}

// Tickers lists every stored ticker
func (s *Store) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `SELECT ticker FROM price_history ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored tickers: %w", err)
	}
	defer rows.Close()

	tickers := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// Delete removes the stored series for ticker
func (s *Store) Delete(ctx context.Context, ticker string) error {
	if _, err := s.db.Conn().ExecContext(ctx, `DELETE FROM price_history WHERE ticker = ?`, ticker); err != nil {
		return fmt.Errorf("failed to delete price history for %s: %w", ticker, err)
	}
	return nil
}
