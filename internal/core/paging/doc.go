// Package paging loads remote collections into local, ordered, deduplicated caches.
//
// # Purpose
//
// Every list in the client (a creator's posts, a post's comments, a comment's replies,
// the likes a wallet has received) is fetched page by page from a remote source. This
// package owns how that happens so pages do not reimplement it:
//   - which window to request next
//   - when a collection is exhausted
//   - how results are merged without duplicates
//   - how overlapping triggers (scroll, click, remount) are rejected
//
// # Two Source Shapes
//
// IndexLoader walks a source with a known total count backward from the newest index:
//
//	total=25, pageSize=10  ->  [15,25)  [5,15)  [0,5)
//
// LogLoader walks a block-ranged event log backward from the safe chain tip toward an
// origin block in bounded chunks, filtering raw entries with a caller predicate. Its
// newest entries and scan progress are persisted per filter key, so a later session
// refreshes only the blocks produced since.
//
// # Re-entrancy
//
// At most one fetch is in flight per loader. The guard is checked and set under the
// loader mutex before the fetch is issued; a second caller gets the current State back
// immediately. The mutex is never held across a fetch.
//
// # Quick Start
//
//	loader := paging.NewIndexLoader(paging.IndexConfig{Name: "posts"}, fetchPosts)
//	loader.Initialize(total)
//
//	for {
//	    state, err := loader.LoadNext(ctx, 10)
//	    if err != nil || state.IsExhausted {
//	        break
//	    }
//	}
//
// Loaders are per collection context. When the filter (wallet, post id) changes, Reset the
// loader or drop it and build a new one.
package paging
