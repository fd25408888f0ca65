package backtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/sentinel-quant/internal/database"
	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/rs/zerolog"
)

// RunSummary is the listing row of a stored run
type RunSummary struct {
	ID             string             `json:"id"`
	CreatedAt      time.Time          `json:"created_at"`
	Tickers        []string           `json:"tickers"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	Rebalance      RebalanceFrequency `json:"rebalance_frequency"`
	InitialCapital float64            `json:"initial_capital"`
	FinalValue     float64            `json:"final_value"`
	TotalReturn    float64            `json:"total_return"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
	MaxDrawdown    float64            `json:"max_drawdown"`
	DurationMs     int64              `json:"duration_ms"`
}

// Repository stores completed runs in the runs database
//
// Database: runs.db (backtest_runs table)
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a run repository
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "backtest_runs").Logger(),
	}
}

// Save stores a completed run, replacing any run with the same id
func (r *Repository) Save(ctx context.Context, result *Result) error {
	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode backtest result: %w", err)
	}

	_, err = r.db.Conn().ExecContext(ctx, `
		INSERT OR REPLACE INTO backtest_runs
		(id, created_at, tickers, start_date, end_date, rebalance, initial_capital,
		 final_value, total_return, sharpe_ratio, max_drawdown, duration_ms, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.ID,
		result.StartedAt.Unix(),
		strings.Join(result.Config.Tickers, ","),
		result.Config.StartDate.Format("2006-01-02"),
		result.Config.EndDate.Format("2006-01-02"),
		string(result.Config.Rebalance),
		result.Metrics.InitialCapital,
		result.Metrics.FinalValue,
		result.Metrics.TotalReturn,
		result.Metrics.SharpeRatio,
		result.Metrics.MaxDrawdown,
		result.Duration.Milliseconds(),
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("failed to insert backtest run: %w", err)
	}

	r.log.Debug().Str("run_id", result.ID).Msg("Stored backtest run")
	return nil
}

// Get loads a full run. Unknown ids return domain.ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*Result, error) {
	var doc string
	err := r.db.Conn().QueryRowContext(ctx, `SELECT result FROM backtest_runs WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: backtest run %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest run: %w", err)
	}

	var result Result
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return nil, fmt.Errorf("failed to decode backtest run %s: %w", id, err)
	}
	return &result, nil
}

// List returns the most recent runs first, at most limit (all when limit <= 0)
func (r *Repository) List(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT id, created_at, tickers, start_date, end_date, rebalance, initial_capital,
			   final_value, total_return, sharpe_ratio, max_drawdown, duration_ms
		FROM backtest_runs
		ORDER BY created_at DESC, id
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list backtest runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var (
			s         RunSummary
			createdAt int64
			tickers   string
			rebalance string
		)
		if err := rows.Scan(
			&s.ID,
			&createdAt,
			&tickers,
			&s.StartDate,
			&s.EndDate,
			&rebalance,
			&s.InitialCapital,
			&s.FinalValue,
			&s.TotalReturn,
			&s.SharpeRatio,
			&s.MaxDrawdown,
			&s.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan backtest run: %w", err)
		}
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		s.Tickers = strings.Split(tickers, ",")
		s.Rebalance = RebalanceFrequency(rebalance)
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// Delete removes a run. Unknown ids return domain.ErrNotFound.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.Conn().ExecContext(ctx, `DELETE FROM backtest_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete backtest run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: backtest run %s", domain.ErrNotFound, id)
	}
	return nil
}

// Prune deletes runs created before cutoff and returns how many were removed
func (r *Repository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.Conn().ExecContext(ctx, `DELETE FROM backtest_runs WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune backtest runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned backtest runs: %w", err)
	}
	if n > 0 {
		r.log.Info().Int64("removed", n).Time("cutoff", cutoff).Msg("Pruned backtest runs")
	}
	return n, nil
}
