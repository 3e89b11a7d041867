package domain

import (
	"fmt"
	"strings"
)

// RawLog is an undecoded contract log as returned by eth_getLogs.
type RawLog struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber uint64   `json:"block_number"`
	TxHash      string   `json:"tx_hash"`
	LogIndex    uint64   `json:"log_index"`
	Removed     bool     `json:"removed"`
}

// LikeEvent is a decoded Liked(postId, liker) log.
type LikeEvent struct {
	TxHash   string `json:"tx_hash"`
	LogIndex uint64 `json:"log_index"`
	Block    uint64 `json:"block_number"`
	PostID   uint64 `json:"post_id"`
	Liker    string `json:"liker"`
}

// Key identifies the event by transaction hash and log index.
func (e LikeEvent) Key() string {
	return fmt.Sprintf("%s:%d", strings.ToLower(e.TxHash), e.LogIndex)
}

// BlockNumber returns the block that emitted the event.
func (e LikeEvent) BlockNumber() uint64 {
	return e.Block
}
