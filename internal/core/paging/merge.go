package paging

// Keyed is implemented by anything a loader can deduplicate.
type Keyed interface {
	Key() string
}

// Blocked is an item that belongs to a block, used by log loaders for ordering.
type Blocked interface {
	Keyed
	BlockNumber() uint64
}

// Position selects where incoming items go relative to existing ones.
type Position int

const (
	Append Position = iota
	Prepend
)

func (p Position) String() string {
	if p == Prepend {
		return "prepend"
	}
	return "append"
}

// MergeUnique returns existing plus the incoming items whose keys are not already present,
// placed before or after existing according to pos. Duplicates inside incoming keep their
// first occurrence. Neither input slice is modified.
func MergeUnique[T Keyed](existing, incoming []T, pos Position) []T {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, item := range existing {
		seen[item.Key()] = struct{}{}
	}

	fresh := make([]T, 0, len(incoming))
	for _, item := range incoming {
		k := item.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		fresh = append(fresh, item)
	}

	merged := make([]T, 0, len(existing)+len(fresh))
	if pos == Prepend {
		merged = append(merged, fresh...)
		return append(merged, existing...)
	}
	merged = append(merged, existing...)
	return append(merged, fresh...)
}
