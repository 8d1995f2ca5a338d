package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	film24 "github.com/opd-ai/film24"
	"github.com/opd-ai/film24/config"
	"github.com/opd-ai/film24/sim"
	"github.com/spf13/afero"
)

// CLIConfig holds the command-line options.
type CLIConfig struct {
	configPath string
	outDir     string
	lutDir     string
	filterID   string
	frames     int
	fps        int
	width      int
	height     int
	slowMotion float64
	logLevel   string
	audio      bool
	pace       bool
	help       bool
}

// parseCLIFlags parses command-line flags into a configuration.
func parseCLIFlags(fs *flag.FlagSet, args []string) (*CLIConfig, error) {
	c := &CLIConfig{}
	fs.StringVar(&c.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&c.outDir, "out", "", "Output directory (overrides storage.dir)")
	fs.StringVar(&c.lutDir, "lut-dir", "", "LUT directory (overrides filters.dir)")
	fs.StringVar(&c.filterID, "filter", "none", "Filter to record with")
	fs.IntVar(&c.frames, "frames", 90, "Number of frames to record")
	fs.IntVar(&c.fps, "fps", 30, "Simulated frame rate")
	fs.IntVar(&c.width, "width", 320, "Frame width")
	fs.IntVar(&c.height, "height", 240, "Frame height")
	fs.Float64Var(&c.slowMotion, "slowmo", -1, "Slow-motion factor, 0 to disable (default from config)")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	fs.BoolVar(&c.audio, "audio", true, "Record simulated microphone audio")
	fs.BoolVar(&c.pace, "pace", true, "Deliver frames in real time")
	fs.BoolVar(&c.help, "help", false, "Show help message")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return c, nil
}

// validateCLIConfig validates the command-line options.
func validateCLIConfig(c *CLIConfig) error {
	if c.frames <= 0 {
		return fmt.Errorf("frames must be positive")
	}
	if c.fps <= 0 || c.fps > 240 {
		return fmt.Errorf("fps must be between 1 and 240")
	}
	if c.width <= 0 || c.height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", c.width, c.height)
	}
	if c.slowMotion < 0 && c.slowMotion != -1 {
		return fmt.Errorf("slowmo cannot be negative")
	}
	return nil
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(fs afero.Fs, c *CLIConfig) (*config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(fs, c.configPath); err != nil {
			return nil, err
		}
	}
	if c.outDir != "" {
		cfg.Storage.Dir = c.outDir
	}
	if c.lutDir != "" {
		cfg.Filters.Dir = c.lutDir
	}
	if c.slowMotion >= 0 {
		cfg.Export.SlowMotion = c.slowMotion
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	cfg.Capture.Audio = c.audio
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run records one clip and prints the resulting files.
func run(ctx context.Context, fs afero.Fs, c *CLIConfig, out io.Writer) error {
	cfg, err := loadConfig(fs, c)
	if err != nil {
		return err
	}
	if err := cfg.Log.ApplyLogging(); err != nil {
		return err
	}
	opts, err := film24.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	opts.Fs = fs

	backend, _, _ := sim.NewPhoneBackend()
	p, err := film24.New(backend, opts)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Start(); err != nil {
		return fmt.Errorf("start camera: %w", err)
	}
	if err := p.StartRecording(c.filterID); err != nil {
		return fmt.Errorf("start recording: %w", err)
	}
	delivered, err := backend.Run(ctx, sim.RunOptions{
		Width:  c.width,
		Height: c.height,
		FPS:    c.fps,
		Frames: c.frames,
		Audio:  c.audio,
		Pace:   c.pace,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Fprintf(out, "Delivered %d frames at %.1f fps\n", delivered, p.FrameRate())

	res := <-p.StopRecording()
	if res.Err != nil {
		return fmt.Errorf("recording failed: %w", res.Err)
	}
	printFile(out, p, "Output", res.Output)
	if res.Original != "" {
		printFile(out, p, "Original", res.Original)
	}
	fmt.Fprintf(out, "Duration: %.3fs (%d frames, scaled: %v)\n", res.Duration.Seconds(), res.Frames, res.Scaled)
	return nil
}

func printFile(out io.Writer, p *film24.Pipeline, label, path string) {
	size, err := p.Store().Size(path)
	if err != nil {
		fmt.Fprintf(out, "%s: %s\n", label, path)
		return
	}
	fmt.Fprintf(out, "%s: %s (%s)\n", label, path, humanize.Bytes(uint64(size)))
}

func main() {
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	c, err := parseCLIFlags(flags, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if c.help {
		fmt.Println("film24 simulated recording")
		fmt.Println()
		fmt.Printf("Usage:\n  %s [options]\n\nOptions:\n", os.Args[0])
		flags.PrintDefaults()
		os.Exit(0)
	}
	if err := validateCLIConfig(c); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Use -help for usage information.\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, afero.NewOsFs(), c, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "film24-sim: %v\n", err)
		os.Exit(1)
	}
}
