package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/opd-ai/film24/camera"
	"github.com/opd-ai/film24/filter"
	"github.com/opd-ai/film24/record"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config is the complete film24 configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Capture   CaptureConfig   `yaml:"capture"`
	Recording RecordingConfig `yaml:"recording"`
	Filters   FiltersConfig   `yaml:"filters"`
	Export    ExportConfig    `yaml:"export"`
	FPS       FPSConfig       `yaml:"fps"`
	Log       LogConfig       `yaml:"log"`
}

// StorageConfig locates recorded and exported files.
type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// CaptureConfig selects the camera and microphone.
type CaptureConfig struct {
	Position    string `yaml:"position"`    // back, front
	Orientation string `yaml:"orientation"` // portrait, portrait-upside-down, landscape-right, landscape-left
	Audio       bool   `yaml:"audio"`
}

// RecordingConfig tunes the recording sessions.
type RecordingConfig struct {
	Timescale           int32  `yaml:"timescale"`
	QueueDepth          int    `yaml:"queue_depth"`
	PoolSize            int    `yaml:"pool_size"`
	MaxConsecutiveDrops int    `yaml:"max_consecutive_drops"`
	FinishFailure       string `yaml:"finish_failure"` // keep, remove
}

// FiltersConfig locates LUT files.
type FiltersConfig struct {
	Dir        string `yaml:"dir"`
	Dimension  int    `yaml:"dimension"`   // edge of image LUTs
	CacheSize  int    `yaml:"cache_size"`  // decoded LUTs kept in memory
	ColorSpace string `yaml:"color_space"` // srgb, linear
	Watch      bool   `yaml:"watch"`
}

// ExportConfig tunes time-scale exports.
type ExportConfig struct {
	// SlowMotion scales recorded duration. Zero disables the export.
	SlowMotion float64 `yaml:"slow_motion"`
	Prefix     string  `yaml:"prefix"`
}

// FPSConfig sizes the frame-rate estimator.
type FPSConfig struct {
	Window int `yaml:"window"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Dir: "recordings"},
		Capture: CaptureConfig{Position: "back", Orientation: "portrait", Audio: true},
		Recording: RecordingConfig{
			Timescale:           600,
			QueueDepth:          record.DefaultQueueDepth,
			PoolSize:            record.DefaultQueueDepth + 4,
			MaxConsecutiveDrops: record.DefaultMaxConsecutiveDrops,
			FinishFailure:       "keep",
		},
		Filters: FiltersConfig{
			Dir:        "luts",
			Dimension:  filter.DefaultDimension,
			CacheSize:  filter.DefaultCacheSize,
			ColorSpace: "srgb",
		},
		Export: ExportConfig{Prefix: "export"},
		FPS:    FPSConfig{Window: 30},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Load reads and parses the file at path. A missing file yields the defaults.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"path":     path,
		}).Info("Config file not found, using defaults")
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Storage.Dir == "" {
		errs = append(errs, errors.New("storage.dir is required"))
	}
	if _, err := camera.ParsePosition(c.Capture.Position); err != nil {
		errs = append(errs, fmt.Errorf("capture.position: %w", err))
	}
	if _, err := camera.ParseOrientation(c.Capture.Orientation); err != nil {
		errs = append(errs, fmt.Errorf("capture.orientation: %w", err))
	}
	if c.Recording.Timescale <= 0 {
		errs = append(errs, fmt.Errorf("recording.timescale must be positive, got %d", c.Recording.Timescale))
	}
	if c.Recording.QueueDepth <= 0 {
		errs = append(errs, fmt.Errorf("recording.queue_depth must be positive, got %d", c.Recording.QueueDepth))
	}
	if c.Recording.PoolSize < c.Recording.QueueDepth+2 {
		errs = append(errs, fmt.Errorf("recording.pool_size must be at least queue_depth+2 (%d), got %d", c.Recording.QueueDepth+2, c.Recording.PoolSize))
	}
	if _, err := record.ParseFinishFailurePolicy(c.Recording.FinishFailure); err != nil {
		errs = append(errs, fmt.Errorf("recording.finish_failure: %w", err))
	}
	if c.Filters.Dimension < 2 {
		errs = append(errs, fmt.Errorf("filters.dimension must be at least 2, got %d", c.Filters.Dimension))
	}
	if c.Filters.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("filters.cache_size must be positive, got %d", c.Filters.CacheSize))
	}
	if _, err := filter.ParseColorSpace(c.Filters.ColorSpace); err != nil {
		errs = append(errs, fmt.Errorf("filters.color_space: %w", err))
	}
	if k := c.Export.SlowMotion; k < 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		errs = append(errs, fmt.Errorf("export.slow_motion must be zero or positive, got %v", k))
	}
	if c.FPS.Window < 2 {
		errs = append(errs, fmt.Errorf("fps.window must be at least 2, got %d", c.FPS.Window))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// ApplyLogging configures the standard logrus logger.
func (c LogConfig) ApplyLogging() error {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	switch c.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
