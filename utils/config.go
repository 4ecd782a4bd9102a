package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Front-ends selectable with -ui
const (
	UITerminal = "tui"
	UIConsole  = "console"
	UIDiscord  = "discord"
)

// Config holds the client configuration. Environment variables (optionally
// from .env files) provide defaults; command-line flags override them.
type Config struct {
	BackendURL     string
	RequestTimeout time.Duration
	UI             string

	Demo     bool
	DemoAddr string

	LogFile  string
	LogLevel string

	DiscordToken         string
	DiscordCommandPrefix string
}

// LoadEnv loads the first .env file found among the standard locations.
// Variables already set in the environment win. Missing files are not an error.
func LoadEnv(locations ...string) []string {
	if len(locations) == 0 {
		locations = []string{".env", ".env.local", "config/.env"}
	}

	var loaded []string
	for _, location := range locations {
		if _, err := os.Stat(location); err != nil {
			continue
		}
		if err := godotenv.Load(location); err != nil {
			continue
		}
		loaded = append(loaded, location)
	}
	return loaded
}

// DefaultConfig builds a Config from the environment
func DefaultConfig() Config {
	return Config{
		BackendURL:           getEnv("BACKEND_URL", "http://localhost:8000"),
		RequestTimeout:       getEnvAsDuration("REQUEST_TIMEOUT", 0),
		UI:                   getEnv("ASSISTANT_UI", UITerminal),
		Demo:                 getEnvAsBool("ASSISTANT_DEMO", false),
		DemoAddr:             getEnv("DEMO_ADDR", "127.0.0.1:8765"),
		LogFile:              getEnv("LOG_FILE", "docassistant.log"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DiscordToken:         getEnv("DISCORD_BOT_TOKEN", ""),
		DiscordCommandPrefix: getEnv("DISCORD_COMMAND_PREFIX", "!doc "),
	}
}

// Validate checks the configuration for values the client cannot work with
func (c Config) Validate() error {
	if c.BackendURL == "" && !c.Demo {
		return errors.New("missing -backend")
	}
	if c.BackendURL != "" && !strings.HasPrefix(c.BackendURL, "http://") && !strings.HasPrefix(c.BackendURL, "https://") {
		return fmt.Errorf("backend url %q must start with http:// or https://", c.BackendURL)
	}
	if c.RequestTimeout < 0 {
		return errors.New("timeout must be >= 0")
	}
	switch c.UI {
	case UITerminal, UIConsole:
	case UIDiscord:
		if c.DiscordToken == "" {
			return errors.New("discord front-end needs DISCORD_BOT_TOKEN")
		}
	default:
		return fmt.Errorf("unknown ui %q (want %s, %s or %s)", c.UI, UITerminal, UIConsole, UIDiscord)
	}
	if c.Demo && c.DemoAddr == "" {
		return errors.New("missing -demo-addr")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	// bare numbers are seconds
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
