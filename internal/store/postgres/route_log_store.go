package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avolkov/triarb/internal/domain"
)

// RouteLogStore implements domain.RouteLogStore on the route_log table, one
// row per accepted evaluation.
type RouteLogStore struct {
	pool *pgxpool.Pool
}

// NewRouteLogStore creates a RouteLogStore backed by the given pool.
func NewRouteLogStore(pool *pgxpool.Pool) *RouteLogStore {
	return &RouteLogStore{pool: pool}
}

const routeLogCols = `ts, route_id, profit_percent, notional, min_liquidity, executed`

// Append stores one evaluation record.
func (s *RouteLogStore) Append(ctx context.Context, rec domain.RouteLogRecord) error {
	const query = `
		INSERT INTO route_log (` + routeLogCols + `)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		rec.Timestamp, rec.RouteID, rec.ProfitPercent, rec.Notional, rec.MinLiquidity, rec.Executed,
	)
	if err != nil {
		return fmt.Errorf("postgres: append route log %s: %w", rec.RouteID, err)
	}
	return nil
}

// ListBefore returns every record older than the cutoff, oldest first.
func (s *RouteLogStore) ListBefore(ctx context.Context, before time.Time) ([]domain.RouteLogRecord, error) {
	const query = `SELECT ` + routeLogCols + ` FROM route_log WHERE ts < $1 ORDER BY ts ASC`
	return s.scanRecords(ctx, query, before)
}

// DeleteBefore removes every record older than the cutoff and reports how
// many rows went.
func (s *RouteLogStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM route_log WHERE ts < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete route log before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func (s *RouteLogStore) scanRecords(ctx context.Context, query string, args ...any) ([]domain.RouteLogRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query route log: %w", err)
	}
	defer rows.Close()

	var recs []domain.RouteLogRecord
	for rows.Next() {
		var rec domain.RouteLogRecord
		if err := rows.Scan(
			&rec.Timestamp, &rec.RouteID, &rec.ProfitPercent, &rec.Notional, &rec.MinLiquidity, &rec.Executed,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan route log: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: route log rows: %w", err)
	}
	return recs, nil
}

var _ domain.RouteLogStore = (*RouteLogStore)(nil)
