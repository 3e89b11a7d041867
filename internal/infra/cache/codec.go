package cache

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"

	"github.com/vietddude/feedsync/internal/core/paging"
)

// Encode serializes a checkpoint. Entries are never encoded as null.
func Encode[T paging.Blocked](cp paging.Checkpoint[T]) ([]byte, error) {
	if cp.Entries == nil {
		cp.Entries = []T{}
	}
	blob, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	return blob, nil
}

// Decode parses a stored blob. Besides the checkpoint object it accepts a bare array of
// entries, the shape written before checkpoints carried scan bounds. An empty blob or an
// empty array decodes to nil.
func Decode[T paging.Blocked](blob []byte) (*paging.Checkpoint[T], error) {
	blob = bytes.TrimSpace(blob)
	if len(blob) == 0 {
		return nil, nil
	}

	if blob[0] == '[' {
		var entries []T
		if err := json.Unmarshal(blob, &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return fromEntries(entries), nil
	}

	var cp paging.Checkpoint[T]
	if err := json.Unmarshal(blob, &cp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if cp.Cursor > cp.ScannedThrough {
		return nil, fmt.Errorf("%w: cursor %d above scanned_through %d", ErrCorrupt, cp.Cursor, cp.ScannedThrough)
	}
	return &cp, nil
}

// fromEntries derives scan bounds from a bare entry list: everything between the oldest
// and the newest entry is taken as scanned.
func fromEntries[T paging.Blocked](entries []T) *paging.Checkpoint[T] {
	if len(entries) == 0 {
		return nil
	}
	newest := lo.MaxBy(entries, func(a, b T) bool { return a.BlockNumber() > b.BlockNumber() })
	oldest := lo.MinBy(entries, func(a, b T) bool { return a.BlockNumber() < b.BlockNumber() })

	cursor := oldest.BlockNumber()
	if cursor > 0 {
		cursor--
	}
	return &paging.Checkpoint[T]{
		ScannedThrough: newest.BlockNumber(),
		Cursor:         cursor,
		Entries:        entries,
	}
}
