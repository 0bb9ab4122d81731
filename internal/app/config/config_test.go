package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
app:
  name: agentd
  env: test
  log_level: debug

server:
  port: "9090"

payment:
  base_url: "http://localhost:3001/api/v1"
  api_key: "k"
  agent_identifier: "agent-1"
  seller_vkey: "vkey"
  poll_interval: 5s

openai:
  api_key: "sk-test"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("explicit value lost: %s", cfg.Server.Port)
	}
	if cfg.Payment.PollInterval != 5*time.Second {
		t.Errorf("duration not parsed: %v", cfg.Payment.PollInterval)
	}
	if cfg.Payment.Network != "Preprod" {
		t.Errorf("default network not applied: %s", cfg.Payment.Network)
	}
	if cfg.Payment.PayByWindow != 5*time.Minute || cfg.Payment.SubmitWindow != 20*time.Minute {
		t.Errorf("default windows not applied: %v / %v", cfg.Payment.PayByWindow, cfg.Payment.SubmitWindow)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("default model not applied: %s", cfg.OpenAI.Model)
	}
	if cfg.Serp.Retries != 3 || cfg.Serp.NumResults != 8 {
		t.Errorf("serp defaults not applied: %+v", cfg.Serp)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing app name", func(c *Config) { c.App.Name = "" }},
		{"missing payment url", func(c *Config) { c.Payment.BaseURL = "" }},
		{"bad payment url", func(c *Config) { c.Payment.BaseURL = "localhost:3001" }},
		{"missing api key", func(c *Config) { c.Payment.APIKey = "" }},
		{"placeholder agent id", func(c *Config) { c.Payment.AgentIdentifier = "REPLACE" }},
		{"missing seller vkey", func(c *Config) { c.Payment.SellerVKey = "" }},
		{"missing openai key", func(c *Config) { c.OpenAI.APIKey = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, sampleConfig))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
