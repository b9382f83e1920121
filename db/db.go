package db

import (
	"context"
	"time"

	"slotwatch/types"
)

// EventSource reads beacon event observations for a trailing time window.
// Errors reaching the source wrap utils.ErrSourceUnavailable; rows that fail to parse are
// dropped and logged, never returned as an error.
type EventSource interface {
	Close() error

	QueryReorgs(ctx context.Context, lookback time.Duration) (types.ReorgRecords, error)
	QueryBlockSeen(ctx context.Context, lookback time.Duration) (types.SlotObservations, error)
	QueryCanonicalBlocks(ctx context.Context, lookback time.Duration) (types.CanonicalBlocks, error)
}
