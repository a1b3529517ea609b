package s3blob

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkov/triarb/internal/domain"
)

type memWriter struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newMemWriter() *memWriter {
	return &memWriter{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *memWriter) Put(_ context.Context, path string, data []byte, contentType string) error {
	if m.err != nil {
		return m.err
	}
	m.objects[path] = data
	m.types[path] = contentType
	return nil
}

type stubRouteLog struct {
	records []domain.RouteLogRecord
	deleted int64
	delErr  error
}

func (s *stubRouteLog) Append(context.Context, domain.RouteLogRecord) error { return nil }

func (s *stubRouteLog) ListBefore(context.Context, time.Time) ([]domain.RouteLogRecord, error) {
	return s.records, nil
}

func (s *stubRouteLog) DeleteBefore(context.Context, time.Time) (int64, error) {
	if s.delErr != nil {
		return 0, s.delErr
	}
	s.deleted = int64(len(s.records))
	return s.deleted, nil
}

type stubTrades struct {
	trades  []domain.TradeResult
	deleted int64
}

func (s *stubTrades) Insert(context.Context, domain.TradeResult) error { return nil }

func (s *stubTrades) ListBefore(context.Context, time.Time) ([]domain.TradeResult, error) {
	return s.trades, nil
}

func (s *stubTrades) DeleteBefore(context.Context, time.Time) (int64, error) {
	s.deleted = int64(len(s.trades))
	return s.deleted, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var cutoff = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func TestArchiveRouteLogUploadsAndDeletes(t *testing.T) {
	writer := newMemWriter()
	routeLog := &stubRouteLog{records: []domain.RouteLogRecord{
		{RouteID: "USDT->BTC->ETH->USDT", ProfitPercent: 0.4},
		{RouteID: "USDT->ETH->BTC->USDT", ProfitPercent: 0.2},
	}}

	a := NewArchiver(writer, routeLog, &stubTrades{}, testLogger())
	n, err := a.ArchiveRouteLog(context.Background(), cutoff)

	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.EqualValues(t, 2, routeLog.deleted)

	data, ok := writer.objects["archive/route_log/2026-08.jsonl"]
	require.True(t, ok, "object missing, have %v", writer.objects)
	assert.Equal(t, "application/x-ndjson", writer.types["archive/route_log/2026-08.jsonl"])

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "USDT->BTC->ETH->USDT")
}

func TestArchiveRouteLogNothingToDo(t *testing.T) {
	writer := newMemWriter()
	a := NewArchiver(writer, &stubRouteLog{}, &stubTrades{}, testLogger())

	n, err := a.ArchiveRouteLog(context.Background(), cutoff)

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, writer.objects)
}

func TestArchiveRouteLogUploadFailureKeepsRows(t *testing.T) {
	writer := newMemWriter()
	writer.err = errors.New("bucket unavailable")
	routeLog := &stubRouteLog{records: []domain.RouteLogRecord{{RouteID: "r"}}}

	a := NewArchiver(writer, routeLog, &stubTrades{}, testLogger())
	_, err := a.ArchiveRouteLog(context.Background(), cutoff)

	require.Error(t, err)
	assert.Zero(t, routeLog.deleted, "rows must survive a failed upload")
}

func TestArchiveRouteLogDeleteFailureReported(t *testing.T) {
	writer := newMemWriter()
	routeLog := &stubRouteLog{
		records: []domain.RouteLogRecord{{RouteID: "r"}},
		delErr:  errors.New("deadlock"),
	}

	a := NewArchiver(writer, routeLog, &stubTrades{}, testLogger())
	n, err := a.ArchiveRouteLog(context.Background(), cutoff)

	// The upload landed; the count reflects it even though delete failed.
	assert.EqualValues(t, 1, n)
	assert.Error(t, err)
	assert.Len(t, writer.objects, 1)
}

func TestArchiveTradesFlattensError(t *testing.T) {
	writer := newMemWriter()
	trades := &stubTrades{trades: []domain.TradeResult{
		{ID: "t1", State: domain.TradeStateSettled, Notional: 100, FinalAmount: 100.5},
		{ID: "t2", State: domain.TradeStateFailed, Err: errors.New("leg 2 zero fill")},
	}}

	a := NewArchiver(writer, &stubRouteLog{}, trades, testLogger())
	n, err := a.ArchiveTrades(context.Background(), cutoff)

	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.EqualValues(t, 2, trades.deleted)

	data := string(writer.objects["archive/trades/2026-08.jsonl"])
	assert.Contains(t, data, `"leg 2 zero fill"`)
	assert.Contains(t, data, `"settled"`)
}

func TestArchivePathPartitionsByMonth(t *testing.T) {
	assert.Equal(t, "archive/trades/2026-08.jsonl", archivePath("trades", cutoff))
	assert.Equal(t, "archive/route_log/2025-12.jsonl",
		archivePath("route_log", time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)))
}
