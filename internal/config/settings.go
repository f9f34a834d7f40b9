package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Colors holds color values for the dashboard styles. Values can be
// xterm-256 codes (0-255) or hex colors (#rrggbb).
type Colors struct {
	Title        string `toml:"title"`
	Header       string `toml:"header"`
	Active       string `toml:"active"`
	Idle         string `toml:"idle"`
	Blocked      string `toml:"blocked"`
	Error        string `toml:"error"`
	Completed    string `toml:"completed"`
	Notification string `toml:"notification"`
	Help         string `toml:"help"`
	Border       string `toml:"border"`
}

// Layout holds dashboard sizing.
type Layout struct {
	DashboardWidth int `toml:"dashboard_width"`
}

// Settings is the tool-level configuration, separate from the orchestration
// config: where state goes, how the dashboard looks.
type Settings struct {
	SessionName string `toml:"session_name"`
	StateDir    string `toml:"state_dir"`
	Colors      Colors `toml:"colors"`
	Layout      Layout `toml:"layout"`
}

// DefaultSettings returns Settings populated with the hardcoded defaults.
func DefaultSettings() Settings {
	return Settings{
		SessionName: "agents",
		StateDir:    ".orchestration",
		Colors: Colors{
			Title:        "#cba6f7", // Mauve
			Header:       "#89b4fa", // Blue
			Active:       "#89b4fa", // Blue
			Idle:         "#7f849c", // Overlay 1
			Blocked:      "#f9e2af", // Yellow
			Error:        "#f38ba8", // Red
			Completed:    "#a6e3a1", // Green
			Notification: "#a6adc8", // Subtext 0
			Help:         "#7f849c", // Overlay 1
			Border:       "#585b70", // Surface 2
		},
		Layout: Layout{
			DashboardWidth: 100,
		},
	}
}

// SettingsPath returns the default settings file location, honoring
// XDG_CONFIG_HOME.
func SettingsPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "orchestrator", "settings.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "settings.toml"
	}
	return filepath.Join(home, ".config", "orchestrator", "settings.toml")
}

// LoadSettings reads settings from path, merged over defaults. A missing
// file is not an error: defaults are returned.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return s, err
	}
	return s, nil
}

const settingsTemplate = `# Orchestrator settings.
# Colors accept xterm-256 codes (0-255) or hex values (#rrggbb).

# session_name = "agents"
# state_dir = ".orchestration"

[colors]
# title = "#cba6f7"
# header = "#89b4fa"
# active = "#89b4fa"
# idle = "#7f849c"
# blocked = "#f9e2af"
# error = "#f38ba8"
# completed = "#a6e3a1"
# notification = "#a6adc8"
# help = "#7f849c"
# border = "#585b70"

[layout]
# dashboard_width = 100
`

// WriteDefaultSettings writes a commented template to path if no file
// exists there yet.
func WriteDefaultSettings(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(settingsTemplate), 0o644)
}
