package paging

import "fmt"

// Window is one block range handed to a log source. Both bounds are inclusive.
type Window struct {
	FromBlock uint64
	ToBlock   uint64
	ChunkSize uint64
}

// String returns the window in "from-to" format.
func (w Window) String() string {
	return fmt.Sprintf("%d-%d", w.FromBlock, w.ToBlock)
}

// Size returns the number of blocks in the window.
func (w Window) Size() uint64 {
	return w.ToBlock - w.FromBlock + 1
}

// Valid reports whether the window is well formed.
func (w Window) Valid() bool {
	return w.FromBlock <= w.ToBlock && w.ChunkSize > 0
}

// olderChunk returns the chunk ending at cursor and reaching at most chunk blocks down,
// never below origin. The origin block itself is scanned; ok is false only once cursor
// has dropped below it.
func olderChunk(cursor, origin, chunk uint64) (Window, bool) {
	if cursor < origin || chunk == 0 {
		return Window{}, false
	}
	from := origin
	if cursor-origin+1 > chunk {
		from = cursor - chunk + 1
	}
	return Window{FromBlock: from, ToBlock: cursor, ChunkSize: chunk}, true
}

// newerChunk returns the chunk starting at from and reaching at most chunk blocks up,
// never above tip. ok is false when from is past tip.
func newerChunk(from, tip, chunk uint64) (Window, bool) {
	if from > tip || chunk == 0 {
		return Window{}, false
	}
	to := tip
	if tip-from+1 > chunk {
		to = from + chunk - 1
	}
	return Window{FromBlock: from, ToBlock: to, ChunkSize: chunk}, true
}

// below returns the block just under b, floored at zero.
func below(b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return b - 1
}
