package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// RelayChannel binds a logical bell channel to a GPIO pin.
type RelayChannel struct {
	Channel int `json:"channel"`
	Pin     int `json:"pin"`
}

type Config struct {
	DataDir    string
	ConfigFile string
	LogFile    string
	LogLevel   zerolog.Level

	ManifestURL string `json:"manifest_url"`
	NTPHost     string `json:"ntp_host"`
	ListenAddr  string `json:"listen_addr"`

	PresharedKey string `json:"preshared_key"`
	PasswordHash string `json:"password_hash"` // bcrypt hash of the web login password

	Relays             []RelayChannel `json:"relays"`
	DefaultBellSeconds int            `json:"default_bell_seconds"`

	PollIntervalMillis    int    `json:"poll_interval_ms"`
	WatchdogTimeoutMillis int    `json:"watchdog_timeout_ms"`
	AutoResyncTime        string `json:"auto_resync_time"` // "HH:MM", empty disables

	WifiInterface string `json:"wifi_interface"`
	WifiSSID      string `json:"wifi_ssid"`     // fallback when no stored credentials exist
	WifiPassword  string `json:"wifi_password"` //
	SetupAPName   string `json:"setup_ap_name"`

	DisplayWidth              int `json:"display_width"`
	DisplayHeight             int `json:"display_height"`
	ScreenOffTimeoutSeconds   int `json:"screen_off_timeout_seconds"`
	PixelShiftIntervalSeconds int `json:"pixel_shift_interval_seconds"`

	EventLogPath    string `json:"event_log_path"`
	EventLogMaxRows int    `json:"event_log_max_rows"`

	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`

	UpdateVersionURL string `json:"update_version_url"`
	Version          string `json:"version"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to controller config file")
	flag.StringVar(&cfg.DataDir, "data-dir", "data", "Directory for persisted controller state")
	flag.StringVar(&cfg.LogFile, "log-file", "/var/log/bell-controller.log", "Path to log file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.applyDefaults()
	cfg.validate()
	return cfg
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.NTPHost == "" {
		cfg.NTPHost = "0.uk.pool.ntp.org"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":80"
	}
	if cfg.DefaultBellSeconds == 0 {
		cfg.DefaultBellSeconds = 1
	}
	if cfg.PollIntervalMillis == 0 {
		cfg.PollIntervalMillis = 100
	}
	if cfg.WatchdogTimeoutMillis == 0 {
		cfg.WatchdogTimeoutMillis = 8388
	}
	if cfg.WifiInterface == "" {
		cfg.WifiInterface = "wlan0"
	}
	if cfg.SetupAPName == "" {
		cfg.SetupAPName = "Bell_Controller_Setup"
	}
	if cfg.DisplayWidth == 0 {
		cfg.DisplayWidth = 240
	}
	if cfg.DisplayHeight == 0 {
		cfg.DisplayHeight = 240
	}
	if cfg.ScreenOffTimeoutSeconds == 0 {
		cfg.ScreenOffTimeoutSeconds = 300
	}
	if cfg.PixelShiftIntervalSeconds == 0 {
		cfg.PixelShiftIntervalSeconds = 60
	}
	if cfg.EventLogPath == "" {
		cfg.EventLogPath = "data/events.db"
	}
	if cfg.EventLogMaxRows == 0 {
		cfg.EventLogMaxRows = 5000
	}
}

var hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

func (cfg *Config) validate() {
	var problems []string

	if cfg.ManifestURL == "" {
		problems = append(problems, "manifest_url is required")
	}
	if cfg.PresharedKey == "" {
		problems = append(problems, "preshared_key is required")
	}
	if cfg.PasswordHash == "" {
		problems = append(problems, "password_hash is required")
	}
	if len(cfg.Relays) == 0 {
		problems = append(problems, "at least one relay channel is required")
	}

	usedChannels := map[int]bool{}
	usedPins := map[int]int{}
	for _, r := range cfg.Relays {
		if usedChannels[r.Channel] {
			problems = append(problems, fmt.Sprintf("relay channel %d declared twice", r.Channel))
		}
		usedChannels[r.Channel] = true
		if other, exists := usedPins[r.Pin]; exists {
			problems = append(problems, fmt.Sprintf("relay channels %d and %d both use pin %d", other, r.Channel, r.Pin))
		} else {
			usedPins[r.Pin] = r.Channel
		}
	}

	if cfg.AutoResyncTime != "" && !hhmmPattern.MatchString(cfg.AutoResyncTime) {
		problems = append(problems, fmt.Sprintf("auto_resync_time %q is not HH:MM", cfg.AutoResyncTime))
	}

	if len(problems) > 0 {
		panic("Invalid controller config: " + strings.Join(problems, "; "))
	}
}

// RelayPins maps channel numbers to GPIO pins for the relay driver.
func (cfg *Config) RelayPins() map[int]int {
	pins := make(map[int]int, len(cfg.Relays))
	for _, r := range cfg.Relays {
		pins[r.Channel] = r.Pin
	}
	return pins
}
