// Package throttle plans the pacing of outbound GraphQL calls from the
// token-bucket telemetry Shopify returns in every response's cost extension.
package throttle

import (
	"math"
	"time"
)

// Status is the rate-limit telemetry of the last GraphQL call.
// A zero Status means the response carried no cost extension.
type Status struct {
	CurrentlyAvailable float64
	MaximumAvailable   float64
	RestoreRate        float64
	// Cost actually charged for the last call.
	ActualQueryCost float64
}

func (s Status) IsZero() bool {
	return s.MaximumAvailable == 0
}

// Config bounds the planner. MinInterval is the spacing kept even when the
// bucket is healthy; FloorTokens is the reserve below which the worker backs
// off and waits for restore.
type Config struct {
	FloorTokens  float64
	MinInterval  time.Duration
	MinBatchSize int
	MaxBatchSize int
	GrowthFactor float64
}

// Plan returns the delay to sleep before the next batch and the size that
// batch should have. It is a pure function: the same (status, config,
// currentBatch) always yields the same plan.
//
// Below the floor the delay covers the time the bucket needs to restore back
// up to the floor and the batch resets to its minimum. At or above the floor
// the batch grows geometrically up to the ceiling.
func Plan(s Status, cfg Config, currentBatch int) (time.Duration, int) {
	next := clamp(currentBatch, cfg.MinBatchSize, cfg.MaxBatchSize)

	if s.IsZero() {
		return cfg.MinInterval, next
	}

	if s.CurrentlyAvailable < cfg.FloorTokens {
		deficit := cfg.FloorTokens - s.CurrentlyAvailable
		delay := cfg.MinInterval
		if s.RestoreRate > 0 {
			restore := time.Duration(deficit / s.RestoreRate * float64(time.Second))
			if restore > delay {
				delay = restore
			}
		}
		return delay, cfg.MinBatchSize
	}

	growth := cfg.GrowthFactor
	if growth < 1 {
		growth = 1
	}
	grown := int(math.Ceil(float64(next) * growth))
	if grown <= next {
		grown = next + 1
	}
	return cfg.MinInterval, clamp(grown, cfg.MinBatchSize, cfg.MaxBatchSize)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if hi > 0 && n > hi {
		return hi
	}
	return n
}
