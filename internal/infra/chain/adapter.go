package chain

import (
	"context"

	"github.com/vietddude/feedsync/internal/core/domain"
)

// LogFilter selects contract logs in an inclusive block range.
type LogFilter struct {
	FromBlock uint64
	ToBlock   uint64
	Address   string
	Topics    []string // topic0 alternatives
}

// Adapter is the read boundary between the loaders and a chain node.
type Adapter interface {
	// GetLatestBlock returns the latest block number on the chain
	GetLatestBlock(ctx context.Context) (uint64, error)

	// GetLogs returns the logs matching f in ascending block and log index order
	GetLogs(ctx context.Context, f LogFilter) ([]domain.RawLog, error)

	// GetChainID returns the chain identifier
	GetChainID() domain.ChainID
}
