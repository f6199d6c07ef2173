package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration lets TOML files use strings like "600ms"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// TomlUpstream holds settings for talking to the imageboard API
type TomlUpstream struct {
	Host              string   `toml:"host"`
	UserAgent         string   `toml:"user_agent"`
	ExcludedExt       string   `toml:"excluded_ext"`
	Timeout           Duration `toml:"timeout"`
	LookupTimeout     Duration `toml:"lookup_timeout"`
	CommentsDeadline  Duration `toml:"comments_deadline"` // Zero means no deadline over the whole chain
	MaxComments       int      `toml:"max_comments"`
	MaxAvatarLookups  int      `toml:"max_avatar_lookups"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
}

// TomlFeed holds the window and gesture constants of the feed controller
type TomlFeed struct {
	PageLimit        int      `toml:"page_limit"`
	Tags             string   `toml:"tags"`
	KeepBehind       int      `toml:"keep_behind"`
	PreloadAhead     int      `toml:"preload_ahead"`
	PreloadThreshold int      `toml:"preload_threshold"`
	WheelThreshold   float64  `toml:"wheel_threshold"`
	SwipeThreshold   float64  `toml:"swipe_threshold"`
	SettleDelay      Duration `toml:"settle_delay"`
}

// TomlServer holds HTTP server settings
type TomlServer struct {
	AllowOrigins string `toml:"allow_origins"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Upstream TomlUpstream `toml:"upstream"`
	Feed     TomlFeed     `toml:"feed"`
	Server   TomlServer   `toml:"server"`
}

// Default returns the configuration used when no file is given. Values in a
// loaded file override these field by field.
func Default() *TomlConfig {
	return &TomlConfig{
		Upstream: TomlUpstream{
			Host:              "https://e621.net",
			UserAgent:         "snapboard/1.0 (personal feed proxy)",
			ExcludedExt:       "swf",
			Timeout:           Duration{15 * time.Second},
			LookupTimeout:     Duration{4 * time.Second},
			MaxComments:       50,
			MaxAvatarLookups:  10,
			RequestsPerSecond: 10,
			Burst:             10,
		},
		Feed: TomlFeed{
			PageLimit:        20,
			KeepBehind:       3,
			PreloadAhead:     5,
			PreloadThreshold: 3,
			WheelThreshold:   30,
			SwipeThreshold:   50,
			SettleDelay:      Duration{600 * time.Millisecond},
		},
		Server: TomlServer{
			AllowOrigins: "*",
		},
	}
}

// LoadConfig reads a TOML file on top of the defaults. An empty path returns
// the defaults.
func LoadConfig(path string) (*TomlConfig, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *TomlConfig) Validate() error {
	if c.Upstream.Host == "" {
		return fmt.Errorf("upstream.host must not be empty")
	}
	if c.Upstream.MaxComments < 1 {
		return fmt.Errorf("upstream.max_comments must be positive")
	}
	if c.Upstream.MaxAvatarLookups < 0 {
		return fmt.Errorf("upstream.max_avatar_lookups must not be negative")
	}
	if c.Feed.KeepBehind < 0 || c.Feed.PreloadAhead < 0 {
		return fmt.Errorf("feed.keep_behind and feed.preload_ahead must not be negative")
	}
	if c.Feed.PageLimit < 1 || c.Feed.PageLimit > 320 {
		return fmt.Errorf("feed.page_limit must be between 1 and 320")
	}
	return nil
}
