package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
)

func TestDefaultValidates(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regforge.conf")
	content := `# comment
node.url = 127.0.0.1:18555
node.user = "alice"
http.port = 9000
http.cors = http://localhost:3000, http://localhost:4000
workflow.send_amount = 1.5
workflow.initial_blocks = 150
log.json = true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := Default()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if cfg.Node.URL != "127.0.0.1:18555" {
		t.Errorf("node.url = %q", cfg.Node.URL)
	}
	if cfg.Node.User != "alice" {
		t.Errorf("node.user = %q, quotes not stripped", cfg.Node.User)
	}
	if cfg.HTTP.Port != 9000 {
		t.Errorf("http.port = %d", cfg.HTTP.Port)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 {
		t.Errorf("http.cors = %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.Workflow.SendAmount != btcutil.Amount(150000000) {
		t.Errorf("send_amount = %d", cfg.Workflow.SendAmount)
	}
	if cfg.Workflow.InitialBlocks != 150 {
		t.Errorf("initial_blocks = %d", cfg.Workflow.InitialBlocks)
	}
	if !cfg.Log.JSON {
		t.Error("log.json not applied")
	}
}

func TestLoadFileMissing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "absent.conf"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("values = %v, want empty", values)
	}
}

func TestLoadFileBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regforge.conf")
	if err := os.WriteFile(path, []byte("not a key value line\n"), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("malformed line accepted")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing url", func(c *Config) { c.Node.URL = "" }},
		{"missing credentials", func(c *Config) { c.Node.Password = "" }},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"same wallets", func(c *Config) { c.Workflow.TraderWallet = c.Workflow.MinerWallet }},
		{"immature funding", func(c *Config) { c.Workflow.InitialBlocks = CoinbaseMaturity }},
		{"zero amount", func(c *Config) { c.Workflow.SendAmount = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RPC_URL", "10.0.0.5:18443")
	t.Setenv("RPC_USER", "envuser")
	t.Setenv("RPC_PASSWORD", "envpass")

	cfg := Default()
	LoadEnv(cfg)

	if cfg.Node.URL != "10.0.0.5:18443" {
		t.Errorf("node.url = %q", cfg.Node.URL)
	}
	if cfg.Node.User != "envuser" || cfg.Node.Password != "envpass" {
		t.Errorf("credentials = %q/%q", cfg.Node.User, cfg.Node.Password)
	}
}

func TestEnvLegacyKeys(t *testing.T) {
	t.Setenv("user", "legacy")
	t.Setenv("password", "secret")
	t.Setenv("rpc_url", "127.0.0.1:28443")

	cfg := Default()
	LoadEnv(cfg)

	if cfg.Node.User != "legacy" || cfg.Node.Password != "secret" {
		t.Errorf("credentials = %q/%q", cfg.Node.User, cfg.Node.Password)
	}
	if cfg.Node.URL != "127.0.0.1:28443" {
		t.Errorf("node.url = %q", cfg.Node.URL)
	}
}

func TestWriteDefaultConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regforge.conf")
	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := Default()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("generated config invalid: %v", err)
	}
}
