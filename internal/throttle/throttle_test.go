package throttle

import (
	"testing"
	"time"
)

var cfg = Config{
	FloorTokens:  200,
	MinInterval:  100 * time.Millisecond,
	MinBatchSize: 50,
	MaxBatchSize: 250,
	GrowthFactor: 1.5,
}

func TestPlan_Deterministic(t *testing.T) {
	s := Status{CurrentlyAvailable: 120, MaximumAvailable: 1000, RestoreRate: 50}

	d1, b1 := Plan(s, cfg, 100)
	d2, b2 := Plan(s, cfg, 100)
	if d1 != d2 || b1 != b2 {
		t.Fatalf("same inputs produced different plans: (%v,%d) vs (%v,%d)", d1, b1, d2, b2)
	}
}

func TestPlan_BelowFloorWaitsForRestore(t *testing.T) {
	s := Status{CurrentlyAvailable: 100, MaximumAvailable: 1000, RestoreRate: 50}

	delay, batch := Plan(s, cfg, 200)

	// Deficit of 100 tokens at 50 tokens/s restores in 2s.
	if delay != 2*time.Second {
		t.Fatalf("expected 2s restore delay, got %v", delay)
	}
	if batch != cfg.MinBatchSize {
		t.Fatalf("expected batch reset to %d, got %d", cfg.MinBatchSize, batch)
	}
}

func TestPlan_BelowFloorZeroRestoreRateKeepsMinInterval(t *testing.T) {
	s := Status{CurrentlyAvailable: 10, MaximumAvailable: 1000, RestoreRate: 0}

	delay, _ := Plan(s, cfg, 100)
	if delay != cfg.MinInterval {
		t.Fatalf("expected min interval, got %v", delay)
	}
}

func TestPlan_HealthyBucketGrowsBatch(t *testing.T) {
	s := Status{CurrentlyAvailable: 900, MaximumAvailable: 1000, RestoreRate: 50}

	delay, batch := Plan(s, cfg, 100)
	if delay != cfg.MinInterval {
		t.Fatalf("expected min interval, got %v", delay)
	}
	if batch != 150 {
		t.Fatalf("expected batch to grow to 150, got %d", batch)
	}
}

func TestPlan_GrowthClampedAtCeiling(t *testing.T) {
	s := Status{CurrentlyAvailable: 1000, MaximumAvailable: 1000, RestoreRate: 50}

	_, batch := Plan(s, cfg, 250)
	if batch != cfg.MaxBatchSize {
		t.Fatalf("expected ceiling %d, got %d", cfg.MaxBatchSize, batch)
	}

	_, batch = Plan(s, cfg, 240)
	if batch != cfg.MaxBatchSize {
		t.Fatalf("expected 240*1.5 clamped to %d, got %d", cfg.MaxBatchSize, batch)
	}
}

func TestPlan_GrowthFactorBelowOneStillProgresses(t *testing.T) {
	weird := cfg
	weird.GrowthFactor = 0.5
	s := Status{CurrentlyAvailable: 1000, MaximumAvailable: 1000, RestoreRate: 50}

	_, batch := Plan(s, weird, 100)
	if batch < 100 {
		t.Fatalf("batch must never shrink on a healthy bucket, got %d", batch)
	}
}

func TestPlan_MissingTelemetryKeepsCurrentBatch(t *testing.T) {
	delay, batch := Plan(Status{}, cfg, 120)
	if delay != cfg.MinInterval {
		t.Fatalf("expected min interval, got %v", delay)
	}
	if batch != 120 {
		t.Fatalf("expected current batch kept, got %d", batch)
	}
}

func TestPlan_CurrentBatchClampedIntoBounds(t *testing.T) {
	_, batch := Plan(Status{}, cfg, 0)
	if batch != cfg.MinBatchSize {
		t.Fatalf("expected clamp up to %d, got %d", cfg.MinBatchSize, batch)
	}

	_, batch = Plan(Status{}, cfg, 10_000)
	if batch != cfg.MaxBatchSize {
		t.Fatalf("expected clamp down to %d, got %d", cfg.MaxBatchSize, batch)
	}
}
