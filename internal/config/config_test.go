package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
	if cfg.SessionTTL != 30*24*time.Hour {
		t.Errorf("SessionTTL = %s, want 720h", cfg.SessionTTL)
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, want 10", cfg.BcryptCost)
	}
	if cfg.MatchThreshold != 0.6 {
		t.Errorf("MatchThreshold = %g, want 0.6", cfg.MatchThreshold)
	}
	if cfg.EmbedWorkers != 4 {
		t.Errorf("EmbedWorkers = %d, want 4", cfg.EmbedWorkers)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("MATCH_THRESHOLD", "0.75")
	t.Setenv("FACE_SKIP", "false")
	t.Setenv("EMBED_TIMEOUT", "2s")

	cfg := Load()
	if cfg.HTTPPort != "9999" {
		t.Errorf("HTTPPort = %q, want 9999", cfg.HTTPPort)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("SessionTTL = %s, want 1h", cfg.SessionTTL)
	}
	if cfg.MatchThreshold != 0.75 {
		t.Errorf("MatchThreshold = %g, want 0.75", cfg.MatchThreshold)
	}
	if cfg.FaceSkip {
		t.Error("FaceSkip should be false")
	}
	if cfg.EmbedTimeout != 2*time.Second {
		t.Errorf("EmbedTimeout = %s, want 2s", cfg.EmbedTimeout)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SESSION_TTL", "not-a-duration")
	t.Setenv("BCRYPT_COST", "abc")
	t.Setenv("MATCH_THRESHOLD", "high")

	cfg := Load()
	if cfg.SessionTTL != 30*24*time.Hour {
		t.Errorf("SessionTTL = %s, want fallback", cfg.SessionTTL)
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, want fallback 10", cfg.BcryptCost)
	}
	if cfg.MatchThreshold != 0.6 {
		t.Errorf("MatchThreshold = %g, want fallback 0.6", cfg.MatchThreshold)
	}
}
