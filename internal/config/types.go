package config

// Config is the optional host configuration file. The zero file (or no file)
// yields Defaults().
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Window  WindowConfig  `yaml:"window"`
	Journal JournalConfig `yaml:"journal"`
	API     APIConfig     `yaml:"api"`

	// Fingerprint is the BLAKE3 digest of the loaded file, "" for defaults.
	Fingerprint string `yaml:"-"`
	// Source is the absolute path the config was read from.
	Source string `yaml:"-"`
}

// LogConfig controls the stderr logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WindowConfig supplies the values window.create uses for missing params.
type WindowConfig struct {
	URL    string `yaml:"url"`
	Title  string `yaml:"title"`
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`
}

// JournalConfig enables the SQLite command journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// APIConfig enables the loopback status server.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	// Token, if set, must be sent as "Authorization: Bearer <token>".
	Token string `yaml:"token"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Window: WindowConfig{
			URL:    "https://www.baidu.com",
			Title:  "Nidvy",
			Width:  800,
			Height: 600,
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    "./nidvy-journal.db",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8765",
		},
	}
}
