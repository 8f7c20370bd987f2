package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	EnvClientID     = "SPOTIFY_CLIENT_ID"
	EnvClientSecret = "SPOTIFY_CLIENT_SECRET"
	EnvCloudMode    = "PLSYNC_CLOUD_MODE"
	EnvLogLevel     = "PLSYNC_LOG_LEVEL"
)

// Config is the run configuration. It is built once at process start by [LoadConfig] or [ResolveConfig]
// and treated as read-only afterwards.
type Config struct {
	Spotify     SpotifyConfig     `toml:"spotify"`
	Playlists   PlaylistsConfig   `toml:"playlists"`
	Environment EnvironmentConfig `toml:"environment"`
	History     HistoryConfig     `toml:"history"`
	Server      ServerConfig      `toml:"server"`
}

// SpotifyConfig contains Spotify API credentials and request pacing settings.
type SpotifyConfig struct {
	ClientID          string  `toml:"client_id"`
	ClientSecret      string  `toml:"client_secret"`
	RedirectURI       string  `toml:"redirect_uri"`
	Scope             string  `toml:"scope"`
	RateLimit         float64 `toml:"rate_limit"` // seconds
	PlaylistMaxTracks int     `toml:"playlist_max_tracks"`
}

// Scopes splits the space separated scope string.
func (c SpotifyConfig) Scopes() []string {
	return strings.Fields(c.Scope)
}

// RateLimitDelay is the pause inserted between paginated reads and between write batches.
func (c SpotifyConfig) RateLimitDelay() time.Duration {
	return time.Duration(c.RateLimit * float64(time.Second))
}

// PlaylistsConfig lists the playlists scraped for tracks and the playlist they are added to.
type PlaylistsConfig struct {
	Sources     []string `toml:"sources"`
	Destination string   `toml:"destination"`
}

// EnvironmentConfig selects where the OAuth token cache lives.
//
// In cloud mode the cache file is kept under CloudCacheDir and mirrored to the
// object named CacheFileName in BucketName.
type EnvironmentConfig struct {
	CloudMode     bool   `toml:"cloud_mode"`
	CacheFileName string `toml:"cache_file_name"`
	BucketName    string `toml:"bucket_name"`
	CloudCacheDir string `toml:"cloud_cache_dir"`
	LocalCacheDir string `toml:"local_cache_dir"`
}

// HistoryConfig points at the sqlite database used to record runs.
type HistoryConfig struct {
	Path string `toml:"path"`
}

// ServerConfig contains HTTP trigger settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the listen address for the HTTP trigger.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LocalCachePath is the token cache location used outside cloud mode.
func (c *Config) LocalCachePath() string {
	return filepath.Join(c.Environment.LocalCacheDir, c.Environment.CacheFileName)
}

// CloudCachePath is the scratch location the bucket object is downloaded to in cloud mode.
func (c *Config) CloudCachePath() string {
	return filepath.Join(c.Environment.CloudCacheDir, c.Environment.CacheFileName)
}

// CachePath returns the token cache path selected by the environment mode.
func (c *Config) CachePath() string {
	if c.Environment.CloudMode {
		return c.CloudCachePath()
	}
	return c.LocalCachePath()
}

// CacheObjectKey is the bucket object name the token cache is mirrored to.
func (c *Config) CacheObjectKey() string {
	return c.Environment.CacheFileName
}

// Validate checks the settings a sync run cannot do without.
func (c *Config) Validate() error {
	if c.Playlists.Destination == "" {
		return fmt.Errorf("%w: playlists.destination is empty", ErrInvalidConfig)
	}
	if len(c.Playlists.Sources) == 0 {
		return fmt.Errorf("%w: no source playlists configured", ErrInvalidConfig)
	}
	for i, id := range c.Playlists.Sources {
		if id == "" {
			return fmt.Errorf("%w: playlists.sources[%d] is empty", ErrInvalidConfig, i)
		}
	}
	if c.Spotify.PlaylistMaxTracks <= 0 {
		return fmt.Errorf("%w: spotify.playlist_max_tracks must be positive", ErrInvalidConfig)
	}
	if c.Spotify.RateLimit < 0 {
		return fmt.Errorf("%w: spotify.rate_limit must not be negative", ErrInvalidConfig)
	}
	if c.Environment.CacheFileName == "" {
		return fmt.Errorf("%w: environment.cache_file_name is empty", ErrInvalidConfig)
	}
	if c.Environment.CloudMode && c.Environment.BucketName == "" {
		return fmt.Errorf("%w: environment.bucket_name is required in cloud mode", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their defaults, an empty local_cache_dir resolves to the directory holding the
// file, and environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	if config.Environment.LocalCacheDir == "" {
		config.Environment.LocalCacheDir = filepath.Dir(abs)
	}

	return withEnv(config, os.LookupEnv)
}

// ResolveConfig loads the file at path when it exists and falls back to the embedded defaults otherwise.
func ResolveConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err == nil {
		return LoadConfig(path)
	}

	config := DefaultConfig()
	if config.Environment.LocalCacheDir == "" {
		config.Environment.LocalCacheDir = executableDir()
	}
	return withEnv(config, os.LookupEnv)
}

// DefaultConfig returns a Config with defaults loaded from the embedded example config.
// Environment overrides are not applied.
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

// LoadEnv loads KEY=value pairs from the given dotenv files into the process environment.
// Variables already set are left alone and missing files are skipped.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// withEnv returns a copy of c with environment overrides applied.
func withEnv(c *Config, lookup func(string) (string, bool)) (*Config, error) {
	out := *c
	out.Playlists.Sources = slices.Clone(c.Playlists.Sources)

	if v, ok := lookup(EnvClientID); ok {
		out.Spotify.ClientID = v
	}
	if v, ok := lookup(EnvClientSecret); ok {
		out.Spotify.ClientSecret = v
	}
	if v, ok := lookup(EnvCloudMode); ok && v != "" {
		mode, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvCloudMode, v)
		}
		out.Environment.CloudMode = mode
	}
	return &out, nil
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
