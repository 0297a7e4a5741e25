package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Sync        SyncConfig        `toml:"sync"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
}

// YouTubeConfig contains YouTube Music proxy settings.
type YouTubeConfig struct {
	ProxyURL string `toml:"proxy_url"`
	AuthFile string `toml:"auth_file"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SyncConfig contains reconciliation settings.
type SyncConfig struct {
	SnapshotDir string       `toml:"snapshot_dir"`
	Retry       RetryConfig  `toml:"retry"`
	Spotify     PolicyConfig `toml:"spotify"`
	YouTube     PolicyConfig `toml:"youtube"`
}

// RetryConfig mirrors the retry policy applied to every service call.
type RetryConfig struct {
	MaxAttempts      int `toml:"max_attempts"`
	InitialBackoffMS int `toml:"initial_backoff_ms"`
	MaxBackoffMS     int `toml:"max_backoff_ms"`
}

// PolicyConfig holds per-destination matching and pacing settings.
type PolicyConfig struct {
	Threshold       float64 `toml:"threshold"`
	BatchSize       int     `toml:"batch_size"`
	Workers         int     `toml:"workers"`
	MaxCalls        int     `toml:"max_calls"`
	WindowSeconds   int     `toml:"window_seconds"`
	WriteCap        int     `toml:"write_cap"`
	WritesPerSecond float64 `toml:"writes_per_second"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnvFiles loads KEY=VALUE pairs from the given dotenv files into the process environment.
//
// Missing files are skipped; variables already set in the environment win.
func LoadEnvFiles(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("%w: failed to load env files: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ApplyEnv overrides credentials with non-empty environment variables.
func (c *Config) ApplyEnv() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"CLIENT_ID", &c.Credentials.Spotify.ClientID},
		{"CLIENT_SECRET", &c.Credentials.Spotify.ClientSecret},
		{"REDIRECT_URI", &c.Credentials.Spotify.RedirectURI},
		{"SPOTIFY_ACCESS_TOKEN", &c.Credentials.Spotify.AccessToken},
		{"SPOTIFY_REFRESH_TOKEN", &c.Credentials.Spotify.RefreshToken},
		{"MUSYNC_PROXY_URL", &c.Credentials.YouTube.ProxyURL},
		{"MUSYNC_AUTH_FILE", &c.Credentials.YouTube.AuthFile},
	}

	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.key)); v != "" {
			*o.target = v
		}
	}
}

// SpotifyCredentials returns the credential map expected by the Spotify service.
func (c *Config) SpotifyCredentials() map[string]string {
	s := c.Credentials.Spotify
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
		"access_token":  s.AccessToken,
		"refresh_token": s.RefreshToken,
	}
}

// YouTubeCredentials returns the credential map expected by the YouTube Music service.
func (c *Config) YouTubeCredentials() map[string]string {
	return map[string]string{"auth_file": c.Credentials.YouTube.AuthFile}
}
