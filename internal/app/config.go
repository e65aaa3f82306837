package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Config controls runtime behavior for the TUI app. Environment variables
// override the defaults; cobra flags are layered on top by the CLI.
type Config struct {
	Dev            bool   `env:"DSADOJO_DEV"`
	DevHTTP        string `env:"DSADOJO_DEV_HTTP"`
	DemoScenario   string `env:"DSADOJO_DEMO"`
	LogPath        string `env:"DSADOJO_LOG"`
	DataDir        string `env:"DSADOJO_DATA_DIR"`
	SetsDir        string `env:"DSADOJO_SETS_DIR"`
	EngineMode     string `env:"DSADOJO_ENGINE_MODE"`
	EngineOverride string `env:"DSADOJO_ENGINE"`
	ASCIIOnly      bool   `env:"DSADOJO_ASCII"`

	Autosave AutosaveConfig
	UI       UIConfig
}

type AutosaveConfig struct {
	Enabled         bool `env:"DSADOJO_AUTOSAVE"`
	IntervalSeconds int  `env:"DSADOJO_AUTOSAVE_INTERVAL"`
}

type UIConfig struct {
	StyleVariant string `env:"DSADOJO_THEME"`
	MotionLevel  string `env:"DSADOJO_MOTION"`
}

func DefaultConfig() Config {
	return Config{
		DevHTTP:    "127.0.0.1:17341",
		SetsDir:    "sets",
		EngineMode: "auto",
		Autosave: AutosaveConfig{
			Enabled:         true,
			IntervalSeconds: 30,
		},
		UI: UIConfig{
			StyleVariant: "modern_arcade",
			MotionLevel:  "full",
		},
	}
}

// LoadConfig builds the effective config: defaults, then environment.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.EngineMode {
	case "", "auto", "mock", "external":
	default:
		return fmt.Errorf("invalid engine mode %q", c.EngineMode)
	}
	if c.EngineMode == "" {
		c.EngineMode = "auto"
	}

	if c.Autosave.IntervalSeconds <= 0 {
		c.Autosave.IntervalSeconds = 30
	}

	switch c.UI.StyleVariant {
	case "", "modern_arcade", "cozy_clean", "retro_terminal":
	default:
		return fmt.Errorf("invalid ui style variant %q", c.UI.StyleVariant)
	}
	if c.UI.StyleVariant == "" {
		c.UI.StyleVariant = "modern_arcade"
	}
	switch c.UI.MotionLevel {
	case "", "off", "reduced", "full":
	default:
		return fmt.Errorf("invalid ui motion level %q", c.UI.MotionLevel)
	}
	if c.UI.MotionLevel == "" {
		c.UI.MotionLevel = "full"
	}

	if c.SetsDir == "" {
		c.SetsDir = "sets"
	}
	if c.DevHTTP == "" {
		c.DevHTTP = "127.0.0.1:17341"
	}

	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.New("cannot resolve user home directory")
		}
		c.DataDir = filepath.Join(home, ".local", "share", "dsadojo")
	}

	return nil
}
