package config

import (
	"testing"
	"time"
)

func TestLoadGameDefaults(t *testing.T) {
	cfg, err := LoadGame()
	if err != nil {
		t.Fatalf("LoadGame() error = %v", err)
	}
	if cfg.SessionHeartbeat != 10*time.Second {
		t.Fatalf("SessionHeartbeat = %v, want 10s", cfg.SessionHeartbeat)
	}
	if cfg.SessionStale != 30*time.Second {
		t.Fatalf("SessionStale = %v, want 30s", cfg.SessionStale)
	}
	if cfg.SessionActiveGrace != 7*time.Second {
		t.Fatalf("SessionActiveGrace = %v, want 7s", cfg.SessionActiveGrace)
	}
	if got := cfg.LiveTolerance(); got != 33*time.Second {
		t.Fatalf("LiveTolerance = %v, want 33s", got)
	}
	if !cfg.RoundBonusEnabled {
		t.Fatal("RoundBonusEnabled = false, want true")
	}
}

func TestLoadGameOverrides(t *testing.T) {
	t.Setenv("SESSION_STALE", "10s")
	t.Setenv("SESSION_LIVE_TOLERANCE_FACTOR", "1.5")
	t.Setenv("SESSION_STRICT_SINGLE_DEVICE", "true")
	t.Setenv("SWEEP_INTERVAL", "250ms")

	cfg, err := LoadGame()
	if err != nil {
		t.Fatalf("LoadGame() error = %v", err)
	}
	if got := cfg.LiveTolerance(); got != 15*time.Second {
		t.Fatalf("LiveTolerance = %v, want 15s", got)
	}
	if !cfg.StrictSingleDevice {
		t.Fatal("StrictSingleDevice = false, want true")
	}
	if cfg.SweepInterval != 250*time.Millisecond {
		t.Fatalf("SweepInterval = %v", cfg.SweepInterval)
	}
}
