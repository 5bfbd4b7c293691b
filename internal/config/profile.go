package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Profile is the distctl configuration file.
type Profile struct {
	Endpoint string   `toml:"endpoint"`
	GraphQL  string   `toml:"graphql"`
	Secret   string   `toml:"secret"`
	Token    string   `toml:"token"`
	Subject  string   `toml:"subject"`
	Roles    []string `toml:"roles"`
	TokenTTL Duration `toml:"token_ttl"`
	Timeout  Duration `toml:"timeout"`
	Protocol string   `toml:"protocol"`
}

// Duration lets TOML carry values like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func DefaultProfile() Profile {
	return Profile{
		Endpoint: "http://localhost:8080",
		GraphQL:  "ws://localhost:8080/graphql",
		Secret:   DefaultSecret,
		Subject:  "dev-user",
		Roles:    []string{"DISTRIBUTION_TECH"},
		TokenTTL: Duration{time.Hour},
		Timeout:  Duration{30 * time.Second},
		Protocol: "graphql-ws",
	}
}

// DefaultProfilePath is ~/.bbdist/profile.toml.
func DefaultProfilePath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "profile.toml"
	}
	return filepath.Join(dir, ".bbdist", "profile.toml")
}

// LoadProfile reads path on top of the defaults. A missing file is not an
// error when optional is set.
func LoadProfile(path string, optional bool) (Profile, error) {
	cfg := DefaultProfile()
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return applyProfileEnv(cfg), nil
		}
		return Profile{}, fmt.Errorf("profile load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Profile{}, fmt.Errorf("profile parse failed (%s): %w", path, err)
	}
	cfg = applyProfileEnv(cfg)
	if err := ValidateProfile(cfg); err != nil {
		return Profile{}, err
	}
	return cfg, nil
}

func applyProfileEnv(cfg Profile) Profile {
	cfg.Secret = getEnv(EnvJWTSecret, cfg.Secret)
	return cfg
}

func ValidateProfile(cfg Profile) error {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return fmt.Errorf("profile missing endpoint")
	}
	if strings.TrimSpace(cfg.GraphQL) == "" {
		return fmt.Errorf("profile missing graphql url")
	}
	switch cfg.Protocol {
	case "graphql-ws", "graphql-transport-ws":
	default:
		return fmt.Errorf("profile protocol %q unsupported", cfg.Protocol)
	}
	if cfg.Timeout.Duration < 0 || cfg.TokenTTL.Duration < 0 {
		return fmt.Errorf("profile durations must not be negative")
	}
	return nil
}
