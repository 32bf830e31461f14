// Package batch bounds the size of bulk fetches. Databases cap the number
// of parameters a statement may carry, so a GetMany over thousands of ids is
// split into groups of at most MaxGroupSize ids and fetched one group at a
// time.
package batch

import "context"

// DefaultMaxGroupSize keeps a single IN clause under the parameter limits
// of the common SQL engines.
const DefaultMaxGroupSize = 2000

// FetchFunc fetches the entities for one group of ids.
type FetchFunc[K comparable, E any] func(ctx context.Context, ids []K) ([]E, error)

// Dedupe drops repeated ids, keeping the first occurrence order.
func Dedupe[K comparable](ids []K) []K {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[K]struct{}, len(ids))
	out := make([]K, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Groups splits ids into consecutive groups of at most maxSize ids. maxSize <= 0
// means DefaultMaxGroupSize. The groups share ids' backing array.
func Groups[K any](ids []K, maxSize int) [][]K {
	if maxSize <= 0 {
		maxSize = DefaultMaxGroupSize
	}
	if len(ids) == 0 {
		return nil
	}
	groups := make([][]K, 0, (len(ids)+maxSize-1)/maxSize)
	for start := 0; start < len(ids); start += maxSize {
		end := start + maxSize
		if end > len(ids) {
			end = len(ids)
		}
		groups = append(groups, ids[start:end:end])
	}
	return groups
}

// FetchMany dedupes ids and fetches them group by group. It is all or
// nothing: the first failing group aborts the call and nothing partial is
// returned. The context is checked before each group. Result order follows
// whatever fetch returns.
func FetchMany[K comparable, E any](ctx context.Context, ids []K, maxSize int, fetch FetchFunc[K, E]) ([]E, error) {
	unique := Dedupe(ids)
	if len(unique) == 0 {
		return nil, nil
	}

	var out []E
	for _, group := range Groups(unique, maxSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, err := fetch(ctx, group)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}
