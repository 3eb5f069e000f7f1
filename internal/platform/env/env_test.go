package env

import (
	"testing"
	"time"
)

type sample struct {
	Addr    string        `env:"SAMPLE_ADDR" envDefault:":8080"`
	Workers int           `env:"SAMPLE_WORKERS" envDefault:"4"`
	Timeout time.Duration `env:"SAMPLE_TIMEOUT" envDefault:"5s"`
}

func TestParseDefaults(t *testing.T) {
	osEnviron = func() []string { return nil }
	t.Cleanup(func() { osEnviron = defaultEnviron })

	var cfg sample
	if err := ParseWith(&cfg, nil); err != nil {
		t.Fatalf("ParseWith returned error: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Workers != 4 || cfg.Timeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseOverrides(t *testing.T) {
	osEnviron = func() []string { return []string{"SAMPLE_WORKERS=2", "SAMPLE_ADDR=:9000"} }
	t.Cleanup(func() { osEnviron = defaultEnviron })

	var cfg sample
	if err := ParseWith(&cfg, map[string]string{"SAMPLE_WORKERS": "8"}); err != nil {
		t.Fatalf("ParseWith returned error: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.Workers != 8 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseRejectsMalformedValue(t *testing.T) {
	osEnviron = func() []string { return []string{"SAMPLE_TIMEOUT=soon"} }
	t.Cleanup(func() { osEnviron = defaultEnviron })

	var cfg sample
	if err := ParseWith(&cfg, nil); err == nil {
		t.Fatal("expected malformed duration to fail")
	}
}
