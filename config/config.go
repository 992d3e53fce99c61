package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	envAPIURL  = "VATOP_API_URL"
	envLiveURL = "VATOP_LIVE_URL"
)

// Config represents the complete dashboard configuration
type Config struct {
	Dashboard DashboardConfig `yaml:"dashboard"`
	API       APIConfig       `yaml:"api"`
	Live      LiveConfig      `yaml:"live"`
	UI        UIConfig        `yaml:"ui"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DashboardConfig contains general presentation settings
type DashboardConfig struct {
	Name string `yaml:"name"`
}

// APIConfig contains the REST origin and poll cadence
type APIConfig struct {
	BaseURL           string `yaml:"base_url"`
	PollIntervalSec   int    `yaml:"poll_interval_seconds"`
	RequestTimeoutSec int    `yaml:"request_timeout_seconds"`
	DetectionsLimit   int    `yaml:"detections_limit"`
}

// LiveConfig contains the websocket push origin and reconnect tunables
type LiveConfig struct {
	URL                 string `yaml:"url"`
	HandshakeTimeoutSec int    `yaml:"handshake_timeout_seconds"`
	MinReconnectSec     int    `yaml:"min_reconnect_seconds"`
	MaxReconnectSec     int    `yaml:"max_reconnect_seconds"`
}

// UIConfig contains renderer selection and pane sizing
type UIConfig struct {
	Mode        string           `yaml:"mode"`
	RefreshMS   int              `yaml:"refresh_ms"`
	Color       bool             `yaml:"color"`
	ClearScreen bool             `yaml:"clear_screen"`
	TargetFPS   int              `yaml:"target_fps"`
	PaneLines   PaneLinesConfig  `yaml:"pane_lines"`
	FeedBuffer  FeedBufferConfig `yaml:"feed_buffer"`
}

// PaneLinesConfig bounds the visible line count per pane
type PaneLinesConfig struct {
	Stats      int `yaml:"stats"`
	Streams    int `yaml:"streams"`
	Detections int `yaml:"detections"`
	Feed       int `yaml:"feed"`
	System     int `yaml:"system"`
}

// FeedBufferConfig bounds the live feed event buffer
type FeedBufferConfig struct {
	MaxEvents  int `yaml:"max_events"`
	MaxBytesKB int `yaml:"max_bytes_kb"`
}

// LoggingConfig contains daily file logging settings
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// DefaultConfig returns a pinned default configuration.
func DefaultConfig() Config {
	return Config{
		Dashboard: DashboardConfig{
			Name: "Video Analytics",
		},
		API: APIConfig{
			BaseURL:           "http://localhost:8000",
			PollIntervalSec:   2,
			RequestTimeoutSec: 5,
			DetectionsLimit:   25,
		},
		Live: LiveConfig{
			URL:                 "ws://localhost:8000/ws",
			HandshakeTimeoutSec: 10,
			MinReconnectSec:     1,
			MaxReconnectSec:     30,
		},
		UI: UIConfig{
			Mode:        "tview",
			RefreshMS:   250,
			Color:       true,
			ClearScreen: true,
			TargetFPS:   30,
			PaneLines: PaneLinesConfig{
				Stats:      8,
				Streams:    8,
				Detections: 8,
				Feed:       6,
				System:     6,
			},
			FeedBuffer: FeedBufferConfig{
				MaxEvents:  500,
				MaxBytesKB: 256,
			},
		},
		Logging: LoggingConfig{
			Enabled:       true,
			Dir:           "logs",
			RetentionDays: 7,
		},
	}
}

// normalize fills defaults and clamps invalid values.
func (c *Config) normalize() {
	if c == nil {
		return
	}
	def := DefaultConfig()
	if strings.TrimSpace(c.Dashboard.Name) == "" {
		c.Dashboard.Name = def.Dashboard.Name
	}
	c.API.BaseURL = strings.TrimSpace(c.API.BaseURL)
	if c.API.BaseURL == "" {
		c.API.BaseURL = def.API.BaseURL
	}
	if c.API.PollIntervalSec <= 0 {
		c.API.PollIntervalSec = def.API.PollIntervalSec
	}
	if c.API.RequestTimeoutSec <= 0 {
		c.API.RequestTimeoutSec = def.API.RequestTimeoutSec
	}
	if c.API.DetectionsLimit <= 0 {
		c.API.DetectionsLimit = def.API.DetectionsLimit
	}
	c.Live.URL = strings.TrimSpace(c.Live.URL)
	if c.Live.URL == "" {
		c.Live.URL = def.Live.URL
	}
	if c.Live.HandshakeTimeoutSec <= 0 {
		c.Live.HandshakeTimeoutSec = def.Live.HandshakeTimeoutSec
	}
	if c.Live.MinReconnectSec <= 0 {
		c.Live.MinReconnectSec = def.Live.MinReconnectSec
	}
	if c.Live.MaxReconnectSec <= 0 {
		c.Live.MaxReconnectSec = def.Live.MaxReconnectSec
	}
	if c.Live.MaxReconnectSec < c.Live.MinReconnectSec {
		c.Live.MaxReconnectSec = c.Live.MinReconnectSec
	}
	c.UI.Mode = strings.ToLower(strings.TrimSpace(c.UI.Mode))
	if c.UI.Mode == "" {
		c.UI.Mode = def.UI.Mode
	}
	if c.UI.RefreshMS <= 0 {
		c.UI.RefreshMS = def.UI.RefreshMS
	}
	if c.UI.TargetFPS <= 0 {
		c.UI.TargetFPS = def.UI.TargetFPS
	}
	if c.UI.PaneLines.Stats <= 0 {
		c.UI.PaneLines.Stats = def.UI.PaneLines.Stats
	}
	if c.UI.PaneLines.Streams <= 0 {
		c.UI.PaneLines.Streams = def.UI.PaneLines.Streams
	}
	if c.UI.PaneLines.Detections <= 0 {
		c.UI.PaneLines.Detections = def.UI.PaneLines.Detections
	}
	if c.UI.PaneLines.Feed <= 0 {
		c.UI.PaneLines.Feed = def.UI.PaneLines.Feed
	}
	if c.UI.PaneLines.System <= 0 {
		c.UI.PaneLines.System = def.UI.PaneLines.System
	}
	if c.UI.FeedBuffer.MaxEvents <= 0 {
		c.UI.FeedBuffer.MaxEvents = def.UI.FeedBuffer.MaxEvents
	}
	if c.UI.FeedBuffer.MaxBytesKB <= 0 {
		c.UI.FeedBuffer.MaxBytesKB = def.UI.FeedBuffer.MaxBytesKB
	}
	c.Logging.Dir = strings.TrimSpace(c.Logging.Dir)
	if c.Logging.Dir == "" {
		c.Logging.Dir = def.Logging.Dir
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = def.Logging.RetentionDays
	}
}

// applyEnv overrides the two origins from the environment. Env values win
// over both defaults and file values.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(envAPIURL)); v != "" {
		c.API.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(envLiveURL)); v != "" {
		c.Live.URL = v
	}
}

// Load reads YAML configuration from path on top of the built-in defaults,
// then applies environment overrides. An empty path yields the defaults.
// A missing file returns the defaults together with the read error so the
// caller can fall through to another candidate path.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		cfg.normalize()
		cfg.applyEnv()
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		cfg.normalize()
		cfg.applyEnv()
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.normalize()
	cfg.applyEnv()
	return cfg, nil
}

// Validate performs sanity checks on the configuration.
func (c Config) Validate() error {
	if err := validateOrigin(c.API.BaseURL, "api.base_url", "http", "https"); err != nil {
		return err
	}
	if err := validateOrigin(c.Live.URL, "live.url", "ws", "wss"); err != nil {
		return err
	}
	if c.API.PollIntervalSec <= 0 {
		return fmt.Errorf("api.poll_interval_seconds must be positive")
	}
	if c.API.RequestTimeoutSec <= 0 {
		return fmt.Errorf("api.request_timeout_seconds must be positive")
	}
	if c.Live.MinReconnectSec <= 0 {
		return fmt.Errorf("live.min_reconnect_seconds must be positive")
	}
	if c.Live.MaxReconnectSec < c.Live.MinReconnectSec {
		return fmt.Errorf("live.max_reconnect_seconds must be >= live.min_reconnect_seconds")
	}
	switch c.UI.Mode {
	case "tview", "ansi", "headless":
	default:
		return fmt.Errorf("ui.mode %q not recognized (want tview, ansi, or headless)", c.UI.Mode)
	}
	return nil
}

func validateOrigin(raw, field string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s %q must be an absolute URL", field, raw)
	}
	for _, scheme := range schemes {
		if parsed.Scheme == scheme {
			return nil
		}
	}
	return fmt.Errorf("%s %q must use scheme %s", field, raw, strings.Join(schemes, " or "))
}

// Print displays the effective configuration
func (c *Config) Print() {
	fmt.Printf("Dashboard: %s\n", c.Dashboard.Name)
	fmt.Printf("API: %s (poll every %ds, timeout %ds, detections limit %d)\n",
		c.API.BaseURL, c.API.PollIntervalSec, c.API.RequestTimeoutSec, c.API.DetectionsLimit)
	fmt.Printf("Live: %s (handshake %ds, reconnect %ds..%ds)\n",
		c.Live.URL, c.Live.HandshakeTimeoutSec, c.Live.MinReconnectSec, c.Live.MaxReconnectSec)
	fmt.Printf("UI: mode=%s refresh=%dms fps=%d color=%v\n",
		c.UI.Mode, c.UI.RefreshMS, c.UI.TargetFPS, c.UI.Color)
	if c.Logging.Enabled {
		fmt.Printf("Logging: %s (retain %d days)\n", c.Logging.Dir, c.Logging.RetentionDays)
	} else {
		fmt.Println("Logging: disabled")
	}
}
