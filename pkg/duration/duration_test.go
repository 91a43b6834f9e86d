package duration

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDuration_String(t *testing.T) {
	d := Duration(90 * time.Second)
	if d.String() != "1m30s" {
		t.Errorf("expected '1m30s', got %s", d.String())
	}
}

func TestDuration_OrDefault(t *testing.T) {
	var unset Duration
	if got := unset.OrDefault(time.Minute); got != time.Minute {
		t.Errorf("expected default 1m, got %v", got)
	}

	set := Duration(5 * time.Second)
	if got := set.OrDefault(time.Minute); got != 5*time.Second {
		t.Errorf("expected 5s, got %v", got)
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	var cfg struct {
		Interval Duration `yaml:"interval"`
	}
	if err := yaml.Unmarshal([]byte("interval: 1h30m"), &cfg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if cfg.Interval.Duration() != 90*time.Minute {
		t.Errorf("expected 1h30m, got %v", cfg.Interval.Duration())
	}
}

func TestDuration_MarshalYAML(t *testing.T) {
	b, err := yaml.Marshal(Duration(5 * time.Minute))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(b) != "5m0s\n" {
		t.Errorf("expected '5m0s', got %q", string(b))
	}
}

func TestDuration_UnmarshalYAML_Invalid(t *testing.T) {
	var d Duration
	if err := yaml.Unmarshal([]byte(`"not-a-duration"`), &d); err == nil {
		t.Error("expected error for invalid duration string")
	}
}
