package ratelimit

import "context"

// ScopeFetch throttles outbound image downloads across the worker fleet.
const ScopeFetch = "fetch"

// RateLimiter controls operation throughput per named scope.
type RateLimiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
	Wait(ctx context.Context, scope string) error
}
