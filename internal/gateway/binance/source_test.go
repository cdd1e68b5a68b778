package binance

import (
	"testing"
	"time"
)

func TestParseFloat(t *testing.T) {
	cases := map[string]float64{
		"":          0,
		"abc":       0,
		"1.5":       1.5,
		"100":       100,
		"0.0000012": 0.0000012,
	}
	for in, want := range cases {
		if got := parseFloat(in); got != want {
			t.Errorf("parseFloat(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	final := c.withDefaults()
	if final.HTTPTimeout != 15*time.Second {
		t.Fatalf("HTTPTimeout = %v", final.HTTPTimeout)
	}
	if final.ReconnectBackoff != 30*time.Second {
		t.Fatalf("ReconnectBackoff = %v", final.ReconnectBackoff)
	}

	c = Config{HTTPTimeout: time.Second, ReconnectBackoff: 5 * time.Second}
	final = c.withDefaults()
	if final.HTTPTimeout != time.Second || final.ReconnectBackoff != 5*time.Second {
		t.Fatalf("显式值被覆盖: %+v", final)
	}
}
