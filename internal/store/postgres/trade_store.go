package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avolkov/triarb/internal/domain"
)

// TradeStore implements domain.TradeStore on the trades table. Legs are
// stored as a JSONB array; they are read back whole, never queried by
// field.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeCols = `id, route_id, state, notional, final_amount, profit_percent, profit_abs, legs, error, started_at, completed_at`

// Insert stores one completed trade, settled or failed.
func (s *TradeStore) Insert(ctx context.Context, res domain.TradeResult) error {
	const query = `
		INSERT INTO trades (` + tradeCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	legs, err := json.Marshal(res.Legs)
	if err != nil {
		return fmt.Errorf("postgres: encode trade legs %s: %w", res.ID, err)
	}

	var errText *string
	if res.Err != nil {
		msg := res.Err.Error()
		errText = &msg
	}

	_, err = s.pool.Exec(ctx, query,
		res.ID, res.RouteID, string(res.State),
		res.Notional, res.FinalAmount, res.ProfitPercent, res.ProfitAbs,
		legs, errText, res.StartedAt, res.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", res.ID, err)
	}
	return nil
}

// ListBefore returns every trade completed before the cutoff, oldest first.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeResult, error) {
	const query = `SELECT ` + tradeCols + ` FROM trades WHERE completed_at < $1 ORDER BY completed_at ASC`
	return s.scanTrades(ctx, query, before)
}

// DeleteBefore removes every trade completed before the cutoff.
func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE completed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func (s *TradeStore) scanTrades(ctx context.Context, query string, args ...any) ([]domain.TradeResult, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query trades: %w", err)
	}
	defer rows.Close()

	var results []domain.TradeResult
	for rows.Next() {
		var (
			res     domain.TradeResult
			state   string
			legsRaw []byte
			errText *string
		)
		if err := rows.Scan(
			&res.ID, &res.RouteID, &state,
			&res.Notional, &res.FinalAmount, &res.ProfitPercent, &res.ProfitAbs,
			&legsRaw, &errText, &res.StartedAt, &res.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		res.State = domain.TradeState(state)
		if len(legsRaw) > 0 {
			if err := json.Unmarshal(legsRaw, &res.Legs); err != nil {
				return nil, fmt.Errorf("postgres: decode trade legs %s: %w", res.ID, err)
			}
		}
		if errText != nil && *errText != "" {
			res.Err = errors.New(*errText)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: trade rows: %w", err)
	}
	return results, nil
}

var _ domain.TradeStore = (*TradeStore)(nil)
