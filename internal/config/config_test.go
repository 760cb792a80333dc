package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	ApplyDefaults(&cfg)

	if cfg.CNBaseURL != DefaultCNBaseURL {
		t.Fatalf("cn_base_url=%q", cfg.CNBaseURL)
	}
	if cfg.TimeoutSec != DefaultTimeoutSec || cfg.PingTimeoutSec != DefaultPingTimeoutSec {
		t.Fatalf("timeouts: %+v", cfg)
	}
	if cfg.Concurrency.Total != DefaultTotalChecks || cfg.Concurrency.CN != DefaultCNChecks || cfg.Concurrency.Index != DefaultIndexChecks {
		t.Fatalf("concurrency: %+v", cfg.Concurrency)
	}
	if len(cfg.Tests) != 4 {
		t.Fatalf("tests=%v", cfg.Tests)
	}
	if !cfg.Insecure() {
		t.Fatalf("insecure fallback default not true")
	}
}

func TestValidate_RejectsUnknownTest(t *testing.T) {
	t.Parallel()

	cfg := Config{Tests: []string{"ping", "bogus"}}
	ApplyDefaults(&cfg)
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidate_RejectsCapAboveTotal(t *testing.T) {
	t.Parallel()

	cfg := Config{Concurrency: Concurrency{Total: 2, CN: 5, Index: 1}}
	ApplyDefaults(&cfg)
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSave_Writes0600(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "mnstat.yaml")
	if err := Save(path, Config{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode=%o", info.Mode().Perm())
	}
}

func TestLoadRoundTrip(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "mnstat.yaml")
	in := Config{CNBaseURL: "https://cn.example.org/cn", TimeoutSec: 7}
	if err := Save(path, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.CNBaseURL != "https://cn.example.org/cn" {
		t.Fatalf("cn_base_url=%q", out.CNBaseURL)
	}
	if out.TimeoutSec != 7 {
		t.Fatalf("timeout_sec=%d", out.TimeoutSec)
	}
	if out.SolrPath != DefaultSolrPath {
		t.Fatalf("solr_path=%q", out.SolrPath)
	}
}
