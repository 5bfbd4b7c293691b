package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseFlagsThenEnv(t *testing.T) {
	t.Setenv(EnvJWTSecret, "from-env")
	t.Setenv(EnvPollInterval, "3")

	fs := flag.NewFlagSet("distd", flag.ContinueOnError)
	cfg, err := Parse(fs, []string{"-a", ":9090", "-s", "from-flag", "-ttl", "2h"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.RunAddress != ":9090" {
		t.Fatalf("unexpected addr: %q", cfg.RunAddress)
	}
	if cfg.JWTSecret != "from-env" {
		t.Fatalf("env should override flag secret, got %q", cfg.JWTSecret)
	}
	if cfg.TokenTTL != 2*time.Hour {
		t.Fatalf("unexpected ttl: %v", cfg.TokenTTL)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Fatalf("unexpected poll interval: %v", cfg.PollInterval)
	}
}

func TestParseRejectsBadFlags(t *testing.T) {
	fs := flag.NewFlagSet("distd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	if _, err := Parse(fs, []string{"-ttl", "forever"}); err == nil {
		t.Fatalf("expected error for malformed duration")
	}

	fs = flag.NewFlagSet("distd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := Parse(fs, []string{"-nope"}); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
}

func TestLoadProfileOverridesDefaults(t *testing.T) {
	t.Setenv(EnvJWTSecret, "")
	os.Unsetenv(EnvJWTSecret)

	path := filepath.Join(t.TempDir(), "profile.toml")
	body := `
endpoint = "http://bb.local:8080"
graphql = "ws://bb.local:8080/graphql"
secret = "mySecretKey"
roles = ["SUPERVISOR", "DISTRIBUTION_TECH"]
timeout = "5s"
protocol = "graphql-transport-ws"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	cfg, err := LoadProfile(path, false)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if cfg.Endpoint != "http://bb.local:8080" {
		t.Fatalf("unexpected endpoint: %q", cfg.Endpoint)
	}
	if cfg.Secret != "mySecretKey" {
		t.Fatalf("unexpected secret: %q", cfg.Secret)
	}
	if len(cfg.Roles) != 2 || cfg.Roles[0] != "SUPERVISOR" {
		t.Fatalf("unexpected roles: %+v", cfg.Roles)
	}
	if cfg.Timeout.Duration != 5*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.Timeout.Duration)
	}
	if cfg.Subject != "dev-user" {
		t.Fatalf("default subject lost: %q", cfg.Subject)
	}
	if cfg.TokenTTL.Duration != time.Hour {
		t.Fatalf("default ttl lost: %v", cfg.TokenTTL.Duration)
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.toml")
	if _, err := LoadProfile(path, false); err == nil {
		t.Fatalf("expected error for missing required profile")
	}
	cfg, err := LoadProfile(path, true)
	if err != nil {
		t.Fatalf("optional profile: %v", err)
	}
	if cfg.Protocol != "graphql-ws" {
		t.Fatalf("unexpected default protocol: %q", cfg.Protocol)
	}
}

func TestLoadProfileRejectsUnknownProtocol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := os.WriteFile(path, []byte(`protocol = "sse"`), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	if _, err := LoadProfile(path, false); err == nil {
		t.Fatalf("expected protocol validation error")
	}
}
