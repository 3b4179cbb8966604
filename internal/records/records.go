// Package records provides generic helpers for working with collections of
// report records and API objects: attribute lookups, deduplication, cache
// set-difference and query-string building.
package records

import "strings"

// FindByAttribute returns the first item whose attribute equals value
// (case-sensitive exact match).
func FindByAttribute[T any](items []T, value string, attr func(T) string) (T, bool) {
	for _, item := range items {
		if attr(item) == value {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Filter returns the items for which keep returns true.
func Filter[T any](items []T, keep func(T) bool) []T {
	var filtered []T
	for _, item := range items {
		if keep(item) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// UniqueValues extracts the attribute value of every item, deduplicated,
// preserving first-seen order.
func UniqueValues[T any](items []T, attr func(T) string) []string {
	seen := make(map[string]struct{}, len(items))
	var values []string
	for _, item := range items {
		v := attr(item)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return values
}

// DiffKeys returns the keys not already present in the cache map,
// preserving input order.
func DiffKeys[V any](keys []string, cache map[string]V) []string {
	var missing []string
	for _, key := range keys {
		if _, ok := cache[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// Chunk splits items into slices of at most size elements. A non-positive
// size yields a single chunk.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(items)
	}
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// QueryOptions controls BuildQuery output.
type QueryOptions struct {
	// Prefix opens the whole expression, e.g. `nativeIdentity in (`.
	Prefix string
	// ItemPrefix precedes every value, e.g. `id:`.
	ItemPrefix string
	// Joiner separates values, e.g. `, ` or ` OR `.
	Joiner string
	// Suffix closes the whole expression, e.g. `)`.
	Suffix string
	// Quote wraps each value in double quotes.
	Quote bool
}

// BuildQuery renders a `field in (v1, v2, ...)` style filter or search
// query from a list of values.
func BuildQuery(values []string, opts QueryOptions) string {
	var b strings.Builder
	b.WriteString(opts.Prefix)
	for i, value := range values {
		if i > 0 {
			b.WriteString(opts.Joiner)
		}
		b.WriteString(opts.ItemPrefix)
		if opts.Quote {
			b.WriteString(`"`)
			b.WriteString(value)
			b.WriteString(`"`)
		} else {
			b.WriteString(value)
		}
	}
	b.WriteString(opts.Suffix)
	return b.String()
}
