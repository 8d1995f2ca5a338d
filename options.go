package film24

import (
	"fmt"

	"github.com/opd-ai/film24/camera"
	"github.com/opd-ai/film24/config"
	"github.com/opd-ai/film24/filter"
	"github.com/opd-ai/film24/media"
	"github.com/opd-ai/film24/record"
	"github.com/spf13/afero"
)

// Options contains the configuration of a Pipeline.
type Options struct {
	// Fs backs the file store and the filter library. Nil means the OS.
	Fs         afero.Fs
	StorageDir string

	FilterDir       string
	FilterDimension int
	FilterCacheSize int
	ColorSpace      filter.ColorSpace
	WatchFilters    bool

	Position    camera.Position
	Orientation camera.Orientation
	Audio       bool
	// AudioFormat is the track format used when a recording starts before
	// the first microphone buffer has been seen.
	AudioFormat media.AudioFormat
	// Correction is applied in software to every frame.
	Correction media.Transform

	Timescale           int32
	QueueDepth          int
	PoolSize            int // pixel buffers per recording session
	MaxConsecutiveDrops int
	FinishFailure       record.FinishFailurePolicy

	// SlowMotion scales finished recordings. Zero disables time scaling.
	SlowMotion   float64
	ExportPrefix string

	FPSWindow int
}

// NewOptions returns the default options.
func NewOptions() *Options {
	opts, err := OptionsFromConfig(config.Default())
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return opts
}

// OptionsFromConfig converts a loaded configuration.
func OptionsFromConfig(cfg *config.Config) (*Options, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	position, err := camera.ParsePosition(cfg.Capture.Position)
	if err != nil {
		return nil, err
	}
	orientation, err := camera.ParseOrientation(cfg.Capture.Orientation)
	if err != nil {
		return nil, err
	}
	space, err := filter.ParseColorSpace(cfg.Filters.ColorSpace)
	if err != nil {
		return nil, err
	}
	policy, err := record.ParseFinishFailurePolicy(cfg.Recording.FinishFailure)
	if err != nil {
		return nil, err
	}
	return &Options{
		StorageDir:          cfg.Storage.Dir,
		FilterDir:           cfg.Filters.Dir,
		FilterDimension:     cfg.Filters.Dimension,
		FilterCacheSize:     cfg.Filters.CacheSize,
		ColorSpace:          space,
		WatchFilters:        cfg.Filters.Watch,
		Position:            position,
		Orientation:         orientation,
		Audio:               cfg.Capture.Audio,
		AudioFormat:         media.AudioFormat{Codec: media.AudioCodecPCM16, SampleRate: 48000, Channels: 1},
		Timescale:           cfg.Recording.Timescale,
		QueueDepth:          cfg.Recording.QueueDepth,
		PoolSize:            cfg.Recording.PoolSize,
		MaxConsecutiveDrops: cfg.Recording.MaxConsecutiveDrops,
		FinishFailure:       policy,
		SlowMotion:          cfg.Export.SlowMotion,
		ExportPrefix:        cfg.Export.Prefix,
		FPSWindow:           cfg.FPS.Window,
	}, nil
}
