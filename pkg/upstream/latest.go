package upstream

import "context"

// FindLatest locates the highest published round without a directory
// endpoint. Returns false when nothing is published at all.
func (c *Client) FindLatest(ctx context.Context) (int, bool) {
	return findLatest(ctx, c.Exists)
}

// findLatest runs an exponential search for an upper bound, then a binary
// search for the last round that exists. O(log latest) probes.
func findLatest(ctx context.Context, exists func(context.Context, int) bool) (int, bool) {
	if !exists(ctx, 1) {
		return 0, false
	}

	lo, hi := 1, 2
	for exists(ctx, hi) {
		lo = hi
		hi *= 2
	}

	// Invariant: lo exists, hi does not.
	for lo+1 < hi {
		mid := lo + (hi-lo)/2
		if exists(ctx, mid) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, true
}
