package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/avolkov/triarb/internal/domain"
)

// Archiver implements domain.Archiver: it moves aged route-log and trade
// rows out of Postgres into JSONL objects in blob storage, then deletes the
// archived rows. A failed upload leaves the rows in place so the next run
// retries them.
type Archiver struct {
	writer   domain.BlobWriter
	routeLog domain.RouteLogStore
	trades   domain.TradeStore
	logger   *slog.Logger
}

// NewArchiver creates the Archiver.
func NewArchiver(writer domain.BlobWriter, routeLog domain.RouteLogStore, trades domain.TradeStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:   writer,
		routeLog: routeLog,
		trades:   trades,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

var _ domain.Archiver = (*Archiver)(nil)

// ArchiveRouteLog uploads every route-log record older than the cutoff to
// archive/route_log/YYYY-MM.jsonl and removes those rows. Returns the
// archived count.
func (a *Archiver) ArchiveRouteLog(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.routeLog.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive route log query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive route log marshal: %w", err)
	}

	path := archivePath("route_log", before)
	if err := a.writer.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive route log upload: %w", err)
	}

	deleted, err := a.routeLog.DeleteBefore(ctx, before)
	if err != nil {
		// The upload already landed; the leftover rows will be re-archived
		// next run, harmlessly overwriting the same object.
		return int64(len(recs)), fmt.Errorf("s3blob: archive route log delete: %w", err)
	}
	a.logger.Info("route log archived",
		slog.String("path", path),
		slog.Int("records", len(recs)),
		slog.Int64("deleted", deleted),
	)
	return int64(len(recs)), nil
}

// tradeArchiveRecord flattens a TradeResult for JSONL output; the error
// field is stored as text.
type tradeArchiveRecord struct {
	ID            string            `json:"id"`
	RouteID       string            `json:"route_id"`
	State         string            `json:"state"`
	Notional      float64           `json:"notional"`
	FinalAmount   float64           `json:"final_amount"`
	ProfitPercent float64           `json:"profit_percent"`
	ProfitAbs     float64           `json:"profit_abs"`
	Legs          []domain.TradeLeg `json:"legs"`
	Error         string            `json:"error,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	CompletedAt   time.Time         `json:"completed_at"`
}

// ArchiveTrades uploads every trade completed before the cutoff to
// archive/trades/YYYY-MM.jsonl and removes those rows. Returns the archived
// count.
func (a *Archiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	recs := make([]tradeArchiveRecord, 0, len(trades))
	for _, t := range trades {
		rec := tradeArchiveRecord{
			ID:            t.ID,
			RouteID:       t.RouteID,
			State:         string(t.State),
			Notional:      t.Notional,
			FinalAmount:   t.FinalAmount,
			ProfitPercent: t.ProfitPercent,
			ProfitAbs:     t.ProfitAbs,
			Legs:          t.Legs,
			StartedAt:     t.StartedAt,
			CompletedAt:   t.CompletedAt,
		}
		if t.Err != nil {
			rec.Error = t.Err.Error()
		}
		recs = append(recs, rec)
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", before)
	if err := a.writer.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	deleted, err := a.trades.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(recs)), fmt.Errorf("s3blob: archive trades delete: %w", err)
	}
	a.logger.Info("trades archived",
		slog.String("path", path),
		slog.Int("records", len(recs)),
		slog.Int64("deleted", deleted),
	)
	return int64(len(recs)), nil
}

// archivePath partitions archive objects by the cutoff's year-month, e.g.
// archive/trades/2026-08.jsonl.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
