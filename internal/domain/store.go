package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Phase  *Phase
}

// TradeRecord is the archived form of a loaded trade.
type TradeRecord struct {
	Trade      LoadedTrade `json:"trade"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// TradeStore archives loaded trades keyed by contract address.
type TradeStore interface {
	UpsertBatch(ctx context.Context, trades []LoadedTrade) error
	GetByID(ctx context.Context, factoryID int) (TradeRecord, error)
	List(ctx context.Context, opts ListOpts) ([]TradeRecord, error)
	Count(ctx context.Context) (int64, error)
}
