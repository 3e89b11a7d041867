package evm

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/vietddude/feedsync/internal/core/domain"
	"github.com/vietddude/feedsync/internal/core/paging"
	"github.com/vietddude/feedsync/internal/infra/rpc/provider"
)

// TestEVMAdapter_Live talks to real nodes. Set FEEDSYNC_LIVE_RPC_URL, and optionally
// FEEDSYNC_LIVE_RPC_URL_2 as a failover node, to run it.
func TestEVMAdapter_Live(t *testing.T) {
	_ = godotenv.Load("../../../../.env")

	primary := os.Getenv("FEEDSYNC_LIVE_RPC_URL")
	if primary == "" {
		t.Skip("FEEDSYNC_LIVE_RPC_URL not set")
	}
	providers := []provider.RPCProvider{provider.NewHTTPProvider("primary", primary, 30*time.Second)}
	if backup := os.Getenv("FEEDSYNC_LIVE_RPC_URL_2"); backup != "" {
		providers = append(providers, provider.NewHTTPProvider("backup", backup, 30*time.Second))
	}

	a := NewEVMAdapter(Config{
		ChainID:       domain.ChainIDEthereum,
		Contract:      os.Getenv("FEEDSYNC_LIVE_CONTRACT"),
		LikeTopic:     os.Getenv("FEEDSYNC_LIVE_LIKE_TOPIC"),
		LogsPerSecond: 5,
	}, providers...)

	ctx := context.Background()
	head, err := a.GetLatestBlock(ctx)
	if err != nil {
		t.Fatalf("GetLatestBlock failed: %v", err)
	}
	t.Logf("head = %d", head)

	w := paging.Window{FromBlock: head - 99, ToBlock: head, ChunkSize: 100}
	res, err := a.ScanLikes(ctx, w, 10)
	if err != nil {
		t.Fatalf("ScanLikes %s failed: %v", w, err)
	}
	t.Logf("scanned %s: %d Liked events", w, len(res.Events))
}
