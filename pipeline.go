package film24

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/opd-ai/film24/camera"
	"github.com/opd-ai/film24/export"
	"github.com/opd-ai/film24/filter"
	"github.com/opd-ai/film24/ingest"
	"github.com/opd-ai/film24/media"
	"github.com/opd-ai/film24/observe"
	"github.com/opd-ai/film24/pool"
	"github.com/opd-ai/film24/record"
	"github.com/opd-ai/film24/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Pipeline wires the capture device, the filter stage, the recording
// sessions and the exporter together behind the controls a camera UI needs.
type Pipeline struct {
	opts     Options
	store    *store.Store
	filters  *filter.Library
	stage    *ingest.Stage
	camera   *camera.Controller
	exporter *export.Exporter
	pools    *pool.Registry

	state *observe.Value[RecordingState]
	errs  *observe.Value[error]

	mu         sync.Mutex
	filterID   string
	slowMotion float64
	rec        *recording
	closed     bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a pipeline over backend. A nil options selects NewOptions.
func New(backend camera.Backend, options *Options) (*Pipeline, error) {
	if options == nil {
		options = NewOptions()
	}
	opts := *options
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if k := opts.SlowMotion; k < 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlowMotion, opts.SlowMotion)
	}

	st, err := store.New(opts.Fs, opts.StorageDir)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		opts:       opts,
		store:      st,
		exporter:   export.NewExporter(st, export.Options{Prefix: opts.ExportPrefix}),
		pools:      pool.NewRegistry(2 * max(opts.PoolSize, opts.QueueDepth+2)),
		state:      observe.NewValue(RecordingIdle),
		errs:       observe.NewValue[error](nil),
		slowMotion: opts.SlowMotion,
	}

	p.filters, err = filter.NewLibrary(opts.Fs, filter.LibraryOptions{
		Dir:        opts.FilterDir,
		Dimension:  opts.FilterDimension,
		CacheSize:  opts.FilterCacheSize,
		ColorSpace: opts.ColorSpace,
		OnChange:   p.filterChanged,
	})
	if err != nil {
		return nil, err
	}
	p.stage, err = ingest.NewStage(ingest.Options{Orientation: opts.Correction, FPSWindow: opts.FPSWindow})
	if err != nil {
		return nil, err
	}
	p.camera, err = camera.NewController(backend, p.stage, camera.Options{
		Position:    opts.Position,
		Audio:       opts.Audio,
		Orientation: opts.Orientation,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.forwardCameraErrors(ctx)

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"storage":  st.Root(),
		"filters":  opts.FilterDir,
	}).Info("Pipeline created")
	return p, nil
}

func (p *Pipeline) forwardCameraErrors(ctx context.Context) {
	ch, cancel := p.camera.Errors().Subscribe()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-ch:
				if !ok {
					return
				}
				if err != nil {
					p.errs.Set(err)
				}
			}
		}
	}()
}

// Start configures the camera, waiting for any permission prompt, and starts
// watching the filter directory when enabled.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.mu.Unlock()

	if p.opts.WatchFilters {
		ctx, cancel := context.WithCancel(context.Background())
		p.mu.Lock()
		prev := p.cancel
		p.cancel = func() { cancel(); prev() }
		p.mu.Unlock()
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := p.filters.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.report("Pipeline.Start", err)
			}
		}()
	}
	return p.camera.Configure()
}

func (p *Pipeline) report(function string, err error) {
	logrus.WithFields(logrus.Fields{
		"function": function,
		"error":    err.Error(),
	}).Error("Pipeline error")
	p.errs.Set(err)
}

// filterChanged reloads the active filter after its file changed on disk.
func (p *Pipeline) filterChanged(id string) {
	p.mu.Lock()
	active := p.filterID
	p.mu.Unlock()
	if id != active {
		return
	}
	t, err := p.filters.Resolve(id)
	if err != nil {
		p.report("Pipeline.filterChanged", err)
		return
	}
	p.stage.SetTransform(t)
}

// SelectFilter makes id the live transform for the preview and for the
// filtered stream of a recording in progress.
func (p *Pipeline) SelectFilter(id string) error {
	t, err := p.filters.Resolve(id)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.filterID = id
	p.mu.Unlock()
	p.stage.SetTransform(t)
	return nil
}

// Filters returns the filter library.
func (p *Pipeline) Filters() *filter.Library {
	return p.filters
}

// StartRecording selects filterID and starts recording. An identity filter
// records a single stream; any other filter records the filtered stream and
// the unfiltered original side by side.
func (p *Pipeline) StartRecording(filterID string) error {
	t, err := p.filters.Resolve(filterID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.rec != nil {
		return ErrRecordingInProgress
	}
	p.filterID = filterID
	p.stage.SetTransform(t)
	p.rec = &recording{p: p, filterID: filterID, filtering: !filter.IsPassthrough(t)}
	p.stage.AttachRecorder(p.rec)
	p.state.Set(RecordingActive)

	logrus.WithFields(logrus.Fields{
		"function":  "Pipeline.StartRecording",
		"filter":    filterID,
		"filtering": p.rec.filtering,
	}).Info("Recording started")
	return nil
}

// StopRecording stops the recording and finishes it asynchronously. The
// channel receives one Result: the finished clip or, with a slow-motion
// factor set, the time-scaled clip once its export completes.
func (p *Pipeline) StopRecording() <-chan Result {
	out := make(chan Result, 1)
	p.mu.Lock()
	rec := p.rec
	if rec == nil || p.state.Get() != RecordingActive {
		p.mu.Unlock()
		out <- Result{Err: ErrNotRecording}
		close(out)
		return out
	}
	factor := p.slowMotion
	p.stage.DetachRecorder()
	p.state.Set(RecordingFinishing)
	p.mu.Unlock()

	filtered, original := rec.stop()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		res := p.finish(filtered, original, factor)
		if res.Err != nil {
			p.report("Pipeline.StopRecording", res.Err)
		}
		p.mu.Lock()
		p.rec = nil
		p.state.Set(RecordingIdle)
		p.mu.Unlock()
		out <- res
		close(out)
	}()
	return out
}

func (p *Pipeline) finish(filtered, original *record.Session, factor float64) Result {
	if filtered == nil {
		return Result{Err: record.ErrNoFrames}
	}
	fo := <-filtered.Stop()
	var oo record.Outcome
	if original != nil {
		oo = <-original.Stop()
	}
	if fo.Err != nil {
		res := Result{Err: fo.Err}
		if original != nil && oo.Err == nil {
			res.Original = oo.Path
		}
		return res
	}

	res := Result{Output: fo.Path, Duration: fo.Duration, Frames: fo.Frames}
	if original != nil {
		if oo.Err != nil {
			p.report("Pipeline.finish", oo.Err)
		} else {
			res.Original = oo.Path
		}
	}
	if factor == 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Pipeline.finish",
			"output":   res.Output,
			"original": res.Original,
			"duration": res.Duration.String(),
		}).Info("Recording finished")
		return res
	}

	p.state.Set(RecordingExporting)
	_, results := p.exporter.TimeScale(fo.Path, factor)
	scaled := <-results
	if scaled.Err != nil {
		res.Err = scaled.Err
		return res
	}
	for _, path := range []string{res.Output, res.Original} {
		if path == "" {
			continue
		}
		if err := p.store.Remove(path); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Pipeline.finish",
				"path":     path,
				"error":    err.Error(),
			}).Warn("Could not remove temporary recording")
		}
	}
	return Result{Output: scaled.Output, Duration: scaled.Duration, Frames: scaled.Frames, Scaled: true}
}

// Refilter exports the clip at path re-rendered through filterID.
func (p *Pipeline) Refilter(path, filterID string) (*export.Job, <-chan export.Result, error) {
	t, err := p.filters.Resolve(filterID)
	if err != nil {
		return nil, nil, err
	}
	job, results := p.exporter.Refilter(path, t)
	return job, results, nil
}

// Trim exports range r of the clip at path into a new file. The range is in
// clip time and must last at least export.MinTrimDuration.
func (p *Pipeline) Trim(path string, r media.TimeRange) (*export.Job, <-chan export.Result) {
	return p.exporter.Trim(path, r)
}

// SetSlowMotionFactor sets the time-scale factor applied to recordings
// stopped from now on. Zero disables time scaling.
func (p *Pipeline) SetSlowMotionFactor(k float64) error {
	if k < 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSlowMotion, k)
	}
	p.mu.Lock()
	p.slowMotion = k
	p.mu.Unlock()
	return nil
}

// SetZoom sets the zoom factor.
func (p *Pipeline) SetZoom(factor float64) error { return p.camera.Zoom(factor) }

// SetFocus focuses and meters at a point of the preview view.
func (p *Pipeline) SetFocus(view camera.Point, bounds camera.Size) error {
	return p.camera.Focus(view, bounds)
}

// SetAutoFocus returns to continuous autofocus.
func (p *Pipeline) SetAutoFocus() error { return p.camera.AutoFocus() }

// SetExposure sets the exposure target bias in EV.
func (p *Pipeline) SetExposure(bias float64) error { return p.camera.Exposure(bias) }

// SetStabilization selects the stabilization mode.
func (p *Pipeline) SetStabilization(mode camera.StabilizationMode) error {
	return p.camera.Stabilization(mode)
}

// SetFrameRate sets the capture frame rate.
func (p *Pipeline) SetFrameRate(fps float64) error { return p.camera.FrameRate(fps) }

// SwitchCameraPosition toggles between the rear and front cameras.
func (p *Pipeline) SwitchCameraPosition() error { return p.camera.SwitchPosition() }

// Camera returns the device controller.
func (p *Pipeline) Camera() *camera.Controller { return p.camera }

// Store returns the file store holding recordings and exports.
func (p *Pipeline) Store() *store.Store { return p.store }

// CurrentFrame returns the latest filtered preview frame.
func (p *Pipeline) CurrentFrame() media.FilteredFrame {
	return p.stage.Preview().Get()
}

// Preview returns the live preview observable.
func (p *Pipeline) Preview() *observe.Value[media.FilteredFrame] {
	return p.stage.Preview()
}

// RecordingState returns the recording state observable.
func (p *Pipeline) RecordingState() *observe.Value[RecordingState] {
	return p.state
}

// Errors returns the observable of the latest camera or recording error.
func (p *Pipeline) Errors() *observe.Value[error] {
	return p.errs
}

// RecordingSeconds returns the length recorded so far.
func (p *Pipeline) RecordingSeconds() float64 {
	p.mu.Lock()
	rec := p.rec
	p.mu.Unlock()
	if rec == nil {
		return 0
	}
	return rec.seconds()
}

// FrameRate returns the measured capture frame rate.
func (p *Pipeline) FrameRate() float64 {
	return p.stage.FrameRate()
}

// Close aborts an active recording, shuts the camera down and waits for
// background work, including running exports.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	rec := p.rec
	active := p.state.Get() == RecordingActive
	cancel := p.cancel
	p.mu.Unlock()

	if rec != nil && active {
		p.stage.DetachRecorder()
		rec.abort()
		p.mu.Lock()
		if p.rec == rec {
			p.rec = nil
		}
		p.mu.Unlock()
		p.state.Set(RecordingIdle)
	}
	err := p.camera.Close()
	cancel()
	p.wg.Wait()
	p.exporter.Wait()
	p.pools.Close()

	logrus.WithFields(logrus.Fields{
		"function": "Pipeline.Close",
	}).Info("Pipeline closed")
	return err
}
