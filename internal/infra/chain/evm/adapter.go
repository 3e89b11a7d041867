package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"strings"

	"go.uber.org/ratelimit"

	"github.com/vietddude/feedsync/internal/core/domain"
	"github.com/vietddude/feedsync/internal/core/paging"
	"github.com/vietddude/feedsync/internal/infra/chain"
	"github.com/vietddude/feedsync/internal/infra/rpc/provider"
	"github.com/vietddude/feedsync/internal/infra/rpc/routing"
)

// ErrRangeTooLarge is returned when a node rejects a log query and the range cannot be
// split any further.
var ErrRangeTooLarge = errors.New("log range too large")

// Config configures an EVMAdapter.
type Config struct {
	ChainID       domain.ChainID
	Contract      string  // address emitting Liked logs
	LikeTopic     string  // topic0 of the Liked event
	LogsPerSecond int     // eth_getLogs pacing, 0 disables
	Retry         *routing.RetryConfig
}

type EVMAdapter struct {
	cfg       Config
	providers []provider.RPCProvider
	limiter   ratelimit.Limiter
	retry     routing.RetryConfig
	log       *slog.Logger
}

var _ chain.Adapter = (*EVMAdapter)(nil)

func NewEVMAdapter(cfg Config, providers ...provider.RPCProvider) *EVMAdapter {
	limiter := ratelimit.NewUnlimited()
	if cfg.LogsPerSecond > 0 {
		limiter = ratelimit.New(cfg.LogsPerSecond)
	}
	retry := routing.DefaultRetryConfig
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	cfg.Contract = domain.NormalizeAddress(cfg.Contract)
	cfg.LikeTopic = strings.ToLower(cfg.LikeTopic)

	return &EVMAdapter{
		cfg:       cfg,
		providers: providers,
		limiter:   limiter,
		retry:     retry,
		log:       slog.Default().With("component", "evm", "chain", cfg.ChainID.Name()),
	}
}

func (a *EVMAdapter) GetChainID() domain.ChainID {
	return a.cfg.ChainID
}

func (a *EVMAdapter) GetLatestBlock(ctx context.Context) (uint64, error) {
	result, err := routing.CallWithFailover(ctx, a.providers, "eth_blockNumber", nil, a.retry)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber failed: %w", err)
	}

	blockHex, ok := result.(string)
	if !ok {
		return 0, fmt.Errorf("invalid block number response")
	}
	return parseHexString(blockHex)
}

func (a *EVMAdapter) GetLogs(ctx context.Context, f chain.LogFilter) ([]domain.RawLog, error) {
	filter := map[string]any{
		"fromBlock": fmt.Sprintf("0x%x", f.FromBlock),
		"toBlock":   fmt.Sprintf("0x%x", f.ToBlock),
	}
	if f.Address != "" {
		filter["address"] = f.Address
	}
	if len(f.Topics) > 0 {
		filter["topics"] = []any{f.Topics}
	}

	a.limiter.Take()
	result, err := routing.CallWithFailover(ctx, a.providers, "eth_getLogs", []any{filter}, a.retry)
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs %d-%d failed: %w", f.FromBlock, f.ToBlock, err)
	}
	if result == nil {
		return nil, nil
	}

	rawLogs, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("invalid logs format")
	}

	logs := make([]domain.RawLog, 0, len(rawLogs))
	for i, raw := range rawLogs {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		l, err := parseLog(m)
		if err != nil {
			a.log.Warn("parse log failed", "error", err, "index", i)
			continue
		}
		logs = append(logs, l)
	}

	slices.SortStableFunc(logs, func(x, y domain.RawLog) int {
		if x.BlockNumber != y.BlockNumber {
			if x.BlockNumber < y.BlockNumber {
				return -1
			}
			return 1
		}
		if x.LogIndex < y.LogIndex {
			return -1
		}
		if x.LogIndex > y.LogIndex {
			return 1
		}
		return 0
	})
	return logs, nil
}

// ScanLikes returns the Liked events emitted by the contract in w. Ranges a node refuses
// to serve are split in half until they succeed or reach a single block.
func (a *EVMAdapter) ScanLikes(
	ctx context.Context,
	w paging.Window,
	pageSize int,
) (paging.ScanResult[domain.LikeEvent], error) {
	logs, err := a.scanRange(ctx, w.FromBlock, w.ToBlock)
	if err != nil {
		return paging.ScanResult[domain.LikeEvent]{}, err
	}

	events := make([]domain.LikeEvent, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		ev, err := DecodeLike(l)
		if err != nil {
			a.log.Warn("decode Liked log failed", "tx", l.TxHash, "log_index", l.LogIndex, "error", err)
			continue
		}
		events = append(events, ev)
	}

	a.log.Debug("Scanned likes", "from", w.FromBlock, "to", w.ToBlock, "events", len(events))
	return paging.ScanResult[domain.LikeEvent]{Events: events, LastScannedBlock: w.FromBlock}, nil
}

func (a *EVMAdapter) scanRange(ctx context.Context, from, to uint64) ([]domain.RawLog, error) {
	logs, err := a.GetLogs(ctx, chain.LogFilter{
		FromBlock: from,
		ToBlock:   to,
		Address:   a.cfg.Contract,
		Topics:    []string{a.cfg.LikeTopic},
	})
	if err == nil {
		return logs, nil
	}
	if !isRangeError(err) {
		return nil, err
	}
	if from == to {
		return nil, fmt.Errorf("%w: block %d: %v", ErrRangeTooLarge, from, err)
	}

	mid := from + (to-from)/2
	a.log.Debug("Splitting log range", "from", from, "to", to, "mid", mid)

	lower, err := a.scanRange(ctx, from, mid)
	if err != nil {
		return nil, err
	}
	upper, err := a.scanRange(ctx, mid+1, to)
	if err != nil {
		return nil, err
	}
	return append(lower, upper...), nil
}

func isRangeError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "query returned more than") ||
		strings.Contains(s, "block range") ||
		strings.Contains(s, "range too large") ||
		strings.Contains(s, "response size exceeded")
}

// DecodeLike decodes a Liked(uint256 indexed postId, address indexed liker) log. Logs that
// carry the arguments unindexed are read from the data words instead.
func DecodeLike(l domain.RawLog) (domain.LikeEvent, error) {
	var postWord, likerWord string
	switch {
	case len(l.Topics) >= 3:
		postWord, likerWord = l.Topics[1], l.Topics[2]
	case len(l.Topics) == 2:
		postWord = l.Topics[1]
		likerWord = dataWord(l.Data, 0)
	default:
		postWord = dataWord(l.Data, 0)
		likerWord = dataWord(l.Data, 1)
	}
	if postWord == "" || likerWord == "" {
		return domain.LikeEvent{}, fmt.Errorf("missing Liked arguments")
	}

	postID, err := parseHexToBigInt(postWord)
	if err != nil {
		return domain.LikeEvent{}, fmt.Errorf("post id: %w", err)
	}
	if !postID.IsUint64() {
		return domain.LikeEvent{}, fmt.Errorf("post id overflows uint64: %s", postID)
	}

	return domain.LikeEvent{
		TxHash:   strings.ToLower(l.TxHash),
		LogIndex: l.LogIndex,
		Block:    l.BlockNumber,
		PostID:   postID.Uint64(),
		Liker:    extractAddress(likerWord),
	}, nil
}

func parseLog(raw map[string]any) (domain.RawLog, error) {
	block, err := parseHexString(getString(raw["blockNumber"]))
	if err != nil {
		return domain.RawLog{}, fmt.Errorf("block number: %w", err)
	}
	logIndex, err := parseHexString(getString(raw["logIndex"]))
	if err != nil {
		return domain.RawLog{}, fmt.Errorf("log index: %w", err)
	}

	var topics []string
	if rawTopics, ok := raw["topics"].([]any); ok {
		for _, t := range rawTopics {
			topics = append(topics, strings.ToLower(getString(t)))
		}
	}
	removed, _ := raw["removed"].(bool)

	return domain.RawLog{
		Address:     strings.ToLower(getString(raw["address"])),
		Topics:      topics,
		Data:        getString(raw["data"]),
		BlockNumber: block,
		TxHash:      strings.ToLower(getString(raw["transactionHash"])),
		LogIndex:    logIndex,
		Removed:     removed,
	}, nil
}

// dataWord returns the i-th 32-byte word of hex data, or "" if data is too short.
func dataWord(data string, i int) string {
	hex := strings.TrimPrefix(data, "0x")
	start, end := i*64, (i+1)*64
	if len(hex) < end {
		return ""
	}
	return "0x" + hex[start:end]
}

// extractAddress returns the last 20 bytes of a 32-byte topic as an address.
func extractAddress(topic string) string {
	hex := strings.TrimPrefix(strings.ToLower(topic), "0x")
	if len(hex) < 40 {
		return domain.NormalizeAddress(hex)
	}
	return "0x" + hex[len(hex)-40:]
}

func parseHexToBigInt(hexStr string) (*big.Int, error) {
	n := new(big.Int)
	if _, ok := n.SetString(strings.TrimPrefix(hexStr, "0x"), 16); !ok {
		return nil, fmt.Errorf("invalid hex: %s", hexStr)
	}
	return n, nil
}

func parseHexString(hexStr string) (uint64, error) {
	n, err := parseHexToBigInt(hexStr)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("hex overflows uint64: %s", hexStr)
	}
	return n.Uint64(), nil
}

func getString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
