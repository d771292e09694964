package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	configName = "mediasort"
	envPrefix  = "MEDIASORT"
)

type Config struct {
	Source         string        `mapstructure:"source"`
	Destination    string        `mapstructure:"destination"`
	LogDir         string        `mapstructure:"log_dir"`
	LogLevel       string        `mapstructure:"log_level"`
	Workers        int           `mapstructure:"workers"`
	ImageExt       []string      `mapstructure:"image_extensions"`
	VideoExt       []string      `mapstructure:"video_extensions"`
	SkipDuplicates bool          `mapstructure:"skip_duplicates"`
	UseExifTool    bool          `mapstructure:"use_exiftool"`
	ExifToolPath   string        `mapstructure:"exiftool_path"`
	FFprobePath    string        `mapstructure:"ffprobe_path"`
	MetricsFile    string        `mapstructure:"metrics_file"`
	WatchSettle    time.Duration `mapstructure:"watch_settle"`
}

// fileConfig is the on-disk TOML shape written by WriteConfig.
type fileConfig struct {
	Source         string   `toml:"source"`
	Destination    string   `toml:"destination"`
	LogDir         string   `toml:"log_dir"`
	LogLevel       string   `toml:"log_level"`
	Workers        int      `toml:"workers"`
	ImageExt       []string `toml:"image_extensions"`
	VideoExt       []string `toml:"video_extensions"`
	SkipDuplicates bool     `toml:"skip_duplicates"`
	UseExifTool    bool     `toml:"use_exiftool"`
	ExifToolPath   string   `toml:"exiftool_path"`
	FFprobePath    string   `toml:"ffprobe_path"`
	MetricsFile    string   `toml:"metrics_file"`
	WatchSettle    string   `toml:"watch_settle"`
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("source", "")
	v.SetDefault("destination", filepath.Join(home, "Pictures", "mediasort"))
	v.SetDefault("log_dir", ".")
	v.SetDefault("log_level", "info")
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("image_extensions", []string{".jpg", ".jpeg", ".png", ".heic", ".gif", ".bmp", ".tiff"})
	v.SetDefault("video_extensions", []string{".mp4", ".avi", ".mov", ".mkv", ".flv", ".wmv"})
	v.SetDefault("skip_duplicates", true)
	v.SetDefault("use_exiftool", false)
	v.SetDefault("exiftool_path", "")
	v.SetDefault("ffprobe_path", "ffprobe")
	v.SetDefault("metrics_file", "")
	v.SetDefault("watch_settle", "2s")
}

// DefaultConfigPath is <user config dir>/mediasort/mediasort.toml.
func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to find user config dir: %w", err)
	}
	return filepath.Join(configDir, configName, configName+".toml"), nil
}

// LoadConfig reads defaults, then the config file, then MEDIASORT_*
// environment variables. An explicit path must exist; the default location
// may be missing.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("toml")
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, configName))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the built-in settings, ignoring any config file and
// the environment.
func DefaultConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.ImageExt = normalizeExts(c.ImageExt)
	c.VideoExt = normalizeExts(c.VideoExt)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// Validate checks invariants LoadConfig cannot express as defaults.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if len(c.ImageExt) == 0 && len(c.VideoExt) == 0 {
		return errors.New("no image or video extensions configured")
	}
	images := make(map[string]struct{}, len(c.ImageExt))
	for _, e := range c.ImageExt {
		images[e] = struct{}{}
	}
	for _, e := range c.VideoExt {
		if _, ok := images[e]; ok {
			return fmt.Errorf("extension %s is listed as both image and video", e)
		}
	}
	if c.WatchSettle < 0 {
		return fmt.Errorf("watch_settle must not be negative, got %s", c.WatchSettle)
	}
	return nil
}

// MarshalTOML renders the config in the format LoadConfig reads.
func (c *Config) MarshalTOML() ([]byte, error) {
	return toml.Marshal(fileConfig{
		Source:         c.Source,
		Destination:    c.Destination,
		LogDir:         c.LogDir,
		LogLevel:       c.LogLevel,
		Workers:        c.Workers,
		ImageExt:       c.ImageExt,
		VideoExt:       c.VideoExt,
		SkipDuplicates: c.SkipDuplicates,
		UseExifTool:    c.UseExifTool,
		ExifToolPath:   c.ExifToolPath,
		FFprobePath:    c.FFprobePath,
		MetricsFile:    c.MetricsFile,
		WatchSettle:    c.WatchSettle.String(),
	})
}

// WriteConfig writes c to path, creating parent directories. An existing
// file is only replaced when overwrite is set.
func WriteConfig(c *Config, path string, overwrite bool) error {
	if !overwrite {
		if ok, err := pathExists(path); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("config %s already exists", path)
		}
	}
	data, err := c.MarshalTOML()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = normalizeExt(e)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
