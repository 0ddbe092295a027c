// Package config provides configuration management for stacgrab. It handles
// loading, validating and persisting application settings from YAML files
// and provides sensible defaults for every recognized option.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glorpus-work/stacgrab/pkg/errors"
	"github.com/glorpus-work/stacgrab/pkg/fsutil"
)

// Config represents the application configuration.
type Config struct {
	Download DownloadSettings `yaml:"download"`
	HTTP     HTTPSettings     `yaml:"http"`
	S3       S3Settings       `yaml:"s3,omitempty"`
	Hooks    HookSettings     `yaml:"hooks,omitempty"`
	Settings Settings         `yaml:"settings"`
}

// DownloadSettings tune the download core.
type DownloadSettings struct {
	// MaxAttempts is the whole-collection retry budget.
	MaxAttempts int `yaml:"max_attempts"`

	// ResignBatchSize is the re-signing interval in items. 0 disables
	// periodic re-signing: the whole collection is signed once.
	ResignBatchSize int `yaml:"resign_batch_size"`

	// Assets restricts downloads to these asset keys. Empty means all.
	Assets []string `yaml:"assets,omitempty"`

	// Grouped selects per-source-collection subdirectories.
	Grouped bool `yaml:"grouped"`

	// Preview (size estimate) tuning.
	SkipPreview      bool  `yaml:"skip_preview"`
	PreviewSize      int   `yaml:"preview_size"`
	PreviewThreshold int   `yaml:"preview_threshold"`
	PreviewSeed      int64 `yaml:"preview_seed"`

	// SignBackoff is the fixed wait between signing attempts.
	SignBackoff time.Duration `yaml:"sign_backoff"`

	// SignExpiry is how long presigned URLs stay valid.
	SignExpiry time.Duration `yaml:"sign_expiry"`
}

// HTTPSettings tune the HTTP fetch client.
type HTTPSettings struct {
	Timeout         time.Duration `yaml:"timeout"`
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	RetryMaxBackoff time.Duration `yaml:"retry_max_backoff"`
	UserAgent       string        `yaml:"user_agent,omitempty"`
}

// S3Settings configure the S3 fetch client and the presigning signer.
type S3Settings struct {
	// Enabled turns the S3 fetch client on.
	Enabled bool `yaml:"enabled"`

	// Presign turns s3 hrefs into presigned HTTPS URLs at signing time.
	Presign bool `yaml:"presign"`

	Region      string `yaml:"region,omitempty"`
	AccessKey   string `yaml:"access_key,omitempty"`
	SecretKey   string `yaml:"secret_key,omitempty"`
	AccessToken string `yaml:"access_token,omitempty"`
	EndpointURL string `yaml:"endpoint_url,omitempty"`
}

// HookSettings hold Tengo hook scripts keyed by phase.
type HookSettings struct {
	PreDownload  string `yaml:"pre_download,omitempty"`
	PostDownload string `yaml:"post_download,omitempty"`
}

// Settings represents general application settings.
type Settings struct {
	LogLevel         string        `yaml:"log_level"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Download: DownloadSettings{
			MaxAttempts:      3,
			ResignBatchSize:  1000,
			Grouped:          true,
			PreviewSize:      10,
			PreviewThreshold: 10,
			PreviewSeed:      42,
			SignBackoff:      time.Second,
			SignExpiry:       time.Hour,
		},
		HTTP: HTTPSettings{
			Timeout:         30 * time.Minute,
			RetryAttempts:   5,
			RetryBackoff:    time.Second,
			RetryMaxBackoff: 30 * time.Second,
		},
		Settings: Settings{
			LogLevel:         "info",
			ProgressInterval: time.Second,
		},
	}
}

// GetDefaultConfigPath returns the default config file location.
func GetDefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to determine user config dir")
	}
	return filepath.Join(dir, "stacgrab", "config.yaml"), nil
}

// LoadConfig loads the configuration from path. A missing file yields the
// defaults; present keys override them.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig persists the configuration to path.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if err := fsutil.EnsureFileDir(path); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	return os.WriteFile(path, data, fsutil.FileModeDefault)
}

// Validate checks the configuration for nonsensical values.
func (c *Config) Validate() error {
	if c.Download.MaxAttempts < 1 {
		return errors.Wrap(errors.ErrConfigValidation, "download.max_attempts must be at least 1")
	}
	if c.Download.ResignBatchSize < 0 {
		return errors.Wrap(errors.ErrConfigValidation, "download.resign_batch_size cannot be negative")
	}
	if c.Download.PreviewSize < 1 {
		return errors.Wrap(errors.ErrConfigValidation, "download.preview_size must be at least 1")
	}
	if c.Download.PreviewThreshold < 1 {
		return errors.Wrap(errors.ErrConfigValidation, "download.preview_threshold must be at least 1")
	}
	if c.HTTP.RetryAttempts < 1 {
		return errors.Wrap(errors.ErrConfigValidation, "http.retry_attempts must be at least 1")
	}
	if c.Settings.ProgressInterval <= 0 {
		return errors.Wrap(errors.ErrConfigValidation, "settings.progress_interval must be positive")
	}
	return nil
}
