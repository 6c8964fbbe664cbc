package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":3000" {
		t.Errorf("default addr = %q", cfg.Addr)
	}
	if cfg.CountryCode != "91" || cfg.DomesticDigits != 10 {
		t.Errorf("default normalization = %q/%d", cfg.CountryCode, cfg.DomesticDigits)
	}
	if cfg.SendDelayMin != 4*time.Second || cfg.SendDelayMax != 8*time.Second {
		t.Errorf("default send delays = %s/%s", cfg.SendDelayMin, cfg.SendDelayMax)
	}
	if cfg.TypingDwell != 5*time.Second {
		t.Errorf("default typing dwell = %s", cfg.TypingDwell)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WABOT_ADDR", ":8080")
	t.Setenv("WABOT_SEND_DELAY_MIN", "100ms")
	t.Setenv("WABOT_SEND_DELAY_MAX", "200ms")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("addr override ignored: %q", cfg.Addr)
	}
	if cfg.SendDelayMin != 100*time.Millisecond || cfg.SendDelayMax != 200*time.Millisecond {
		t.Errorf("delay override ignored: %s/%s", cfg.SendDelayMin, cfg.SendDelayMax)
	}
}

func TestLoad_RejectsInvertedRanges(t *testing.T) {
	tests := []struct {
		name     string
		min, max string
	}{
		{"WABOT_SEND_DELAY", "10s", "1s"},
		{"WABOT_READ_DELAY", "5s", "1s"},
		{"WABOT_TYPING", "9s", "1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.name+"_MIN", tt.min)
			t.Setenv(tt.name+"_MAX", tt.max)
			if _, err := Load(); err == nil {
				t.Error("expected inverted range to be rejected")
			}
		})
	}
}

func TestLoad_RejectsNonPositiveDigits(t *testing.T) {
	t.Setenv("WABOT_DOMESTIC_DIGITS", "0")
	if _, err := Load(); err == nil {
		t.Error("expected zero domestic digits to be rejected")
	}
}
