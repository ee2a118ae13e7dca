package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
)

// TomlDigest holds digest run tuning
type TomlDigest struct {
	Window          int    `toml:"window"`
	RenderCap       int    `toml:"render_cap"`
	Schedule        string `toml:"schedule"`
	Timezone        string `toml:"timezone"`
	DispatchWorkers int    `toml:"dispatch_workers"`
	SubjectPrefix   string `toml:"subject_prefix"`
}

// TomlFeed holds interactive read tuning
type TomlFeed struct {
	Limit int `toml:"limit"`
}

// TomlMail holds the non-secret email provider settings
type TomlMail struct {
	APIURL          string `toml:"api_url"`
	From            string `toml:"from"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	MaxRetrySeconds int    `toml:"max_retry_seconds"`
}

// TomlRetention controls how long content items are kept
type TomlRetention struct {
	Days int `toml:"days"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Digest    TomlDigest    `toml:"digest"`
	Feed      TomlFeed      `toml:"feed"`
	Mail      TomlMail      `toml:"mail"`
	Retention TomlRetention `toml:"retention"`
}

// Default returns the configuration used when no file is present
func Default() *TomlConfig {
	return &TomlConfig{
		Digest: TomlDigest{
			Window:          100,
			RenderCap:       20,
			Schedule:        "0 8 * * *",
			Timezone:        "UTC",
			DispatchWorkers: 1,
		},
		Feed: TomlFeed{
			Limit: 50,
		},
		Mail: TomlMail{
			APIURL:          "https://api.resend.com",
			TimeoutSeconds:  10,
			MaxRetrySeconds: 30,
		},
		Retention: TomlRetention{
			Days: 365,
		},
	}
}

// LoadConfig reads the TOML file at path on top of the defaults. A missing
// file yields the defaults.
func LoadConfig(path string) (*TomlConfig, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return config, nil
}

func (c *TomlConfig) validate() error {
	switch {
	case c.Digest.Window < 1:
		return errors.New("digest.window must be positive")
	case c.Digest.RenderCap < 1:
		return errors.New("digest.render_cap must be positive")
	case c.Digest.DispatchWorkers < 1:
		return errors.New("digest.dispatch_workers must be positive")
	case c.Feed.Limit < 1:
		return errors.New("feed.limit must be positive")
	case c.Retention.Days < 1:
		return errors.New("retention.days must be positive")
	}
	return nil
}
