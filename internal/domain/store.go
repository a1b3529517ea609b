package domain

import (
	"context"
	"time"
)

// RouteLogStore persists the per-evaluation route records.
type RouteLogStore interface {
	Append(ctx context.Context, rec RouteLogRecord) error
	ListBefore(ctx context.Context, before time.Time) ([]RouteLogRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// TradeStore persists completed (settled or failed) trade results.
type TradeStore interface {
	Insert(ctx context.Context, res TradeResult) error
	ListBefore(ctx context.Context, before time.Time) ([]TradeResult, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
}

// Archiver moves aged rows out of the primary store into blob storage.
type Archiver interface {
	ArchiveRouteLog(ctx context.Context, before time.Time) (int64, error)
	ArchiveTrades(ctx context.Context, before time.Time) (int64, error)
}
