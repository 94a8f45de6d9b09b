package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Field tags carry both yaml (config file write-back) and mapstructure
// (viper decode); the two must stay in sync or viper silently drops keys.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Paths     PathsConfig     `yaml:"paths" mapstructure:"paths"`
	Instagram InstagramConfig `yaml:"instagram" mapstructure:"instagram"`
	TikTok    TikTokConfig    `yaml:"tiktok" mapstructure:"tiktok"`
	Limits    LimitsConfig    `yaml:"limits" mapstructure:"limits"`
	path      string
}

type ServerConfig struct {
	Host      string `yaml:"host" mapstructure:"host"`
	Port      int    `yaml:"port" mapstructure:"port"`
	QueueSize int    `yaml:"queue_size" mapstructure:"queue_size"`
}

type LoggingConfig struct {
	LogPath           string `yaml:"log_path" mapstructure:"log_path"`
	EnableFileLogging bool   `yaml:"enable_file_logging" mapstructure:"enable_file_logging"`
}

type PathsConfig struct {
	// Base directory under which per-session workspaces are created.
	DownloadPath string `yaml:"download_path" mapstructure:"download_path"`
	// yt-dlp (or compatible) executable.
	DownloaderPath string `yaml:"downloader_path" mapstructure:"downloader_path"`
	// instaloader executable.
	InstaloaderPath string `yaml:"instaloader_path" mapstructure:"instaloader_path"`
	// Optional Netscape cookie jar handed to the generic downloader.
	CookiesFile string `yaml:"cookies_file" mapstructure:"cookies_file"`
}

type InstagramConfig struct {
	// Username whose previously established instaloader session is reused.
	// Empty means unauthenticated, which degrades carousel results.
	Username string `yaml:"username" mapstructure:"username"`
	// instaloader session file for Username. Empty = instaloader default.
	SessionFile string `yaml:"session_file" mapstructure:"session_file"`
}

type TikTokConfig struct {
	// Third-party resolver endpoint.
	APIURL  string        `yaml:"api_url" mapstructure:"api_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type LimitsConfig struct {
	// Per-destination ceiling callers use to pick a smaller format. Bytes.
	MaxFileSize int64 `yaml:"max_file_size" mapstructure:"max_file_size"`
	// Minimum interval between two progress updates for one download.
	ProgressInterval time.Duration `yaml:"progress_interval" mapstructure:"progress_interval"`
}

var (
	instance     *Config
	instanceOnce sync.Once
)

// Instance is the process-wide configuration owned by the composing
// application (main). The core packages never read it: the dispatcher and
// the adapters receive the struct explicitly at construction.
func Instance() *Config {
	if instance == nil {
		instanceOnce.Do(func() {
			instance = &Config{}
			instance.TikTok.APIURL = "https://www.tikwm.com/api/"
			instance.TikTok.Timeout = time.Second * 30
			instance.Limits.ProgressInterval = time.Second * 3
		})
	}
	return instance
}

// Path of the directory containing the config file
func (c *Config) Dir() string { return filepath.Dir(c.path) }

// Absolute path of the config file
func (c *Config) Path() string { return c.path }

func (c *Config) SetPath(p string) { c.path = p }

// WriteDefault persists the current state as a starting config file.
// Called by main when no config file exists yet.
func (c *Config) WriteDefault(path string) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}
