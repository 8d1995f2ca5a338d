package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/opd-ai/film24/clip"
	"github.com/opd-ai/film24/filter"
	"github.com/opd-ai/film24/media"
	"github.com/opd-ai/film24/store"
	"github.com/sirupsen/logrus"
)

// JobState is the lifecycle of an export job.
type JobState uint8

const (
	// JobPending has been created but not started.
	JobPending JobState = iota
	// JobExporting is reading the source and writing the output.
	JobExporting
	// JobCompleted produced its output.
	JobCompleted
	// JobFailed produced nothing; any partial output was removed.
	JobFailed
)

// String returns the state name.
func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobExporting:
		return "exporting"
	case JobCompleted:
		return "completed"
	case JobFailed:
		return "failed"
	default:
		return fmt.Sprintf("JobState(%d)", uint8(s))
	}
}

// Result is delivered once per job.
type Result struct {
	JobID    string
	Input    string
	Output   string
	Duration media.Time
	Frames   uint32
	Size     int64
	Err      error
}

// Job is one asynchronous export. Jobs cannot be cancelled.
type Job struct {
	ID     string
	Input  string
	Output string

	mu     sync.Mutex
	state  JobState
	result Result
	done   chan struct{}
}

// State returns the job state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Done is closed when the job completes or fails.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Result returns the job result, valid once Done is closed.
func (j *Job) Result() Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

func (j *Job) setState(s JobState) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

// Options configures an Exporter.
type Options struct {
	// Prefix names the output files. Empty means "export".
	Prefix string
}

// Exporter runs export jobs against one store. Each job writes a new
// uniquely named file and never modifies its input.
type Exporter struct {
	store  *store.Store
	prefix string
	wg     sync.WaitGroup

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewExporter creates an exporter writing into st.
func NewExporter(st *store.Store, opts Options) *Exporter {
	if opts.Prefix == "" {
		opts.Prefix = "export"
	}
	return &Exporter{store: st, prefix: opts.Prefix, jobs: make(map[string]*Job)}
}

// TimeScale exports input with its duration multiplied by k. Values of k
// below one speed the clip up, above one slow it down. k must be positive;
// callers skip the exporter entirely for k = 0.
func (e *Exporter) TimeScale(input string, k float64) (*Job, <-chan Result) {
	job, results := e.newJob(input, "scaled")
	if k <= 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		e.finish(job, results, Result{Err: fmt.Errorf("%w: %v", ErrInvalidFactor, k)})
		return job, results
	}
	e.spawn(job, results, func() (*Composition, error) {
		comp, err := NewComposition(e.store.Fs(), input)
		if err != nil {
			return nil, err
		}
		full := comp.FullRange()
		if err := comp.InsertTimeRange(full); err != nil {
			return nil, err
		}
		if err := comp.ScaleTimeRange(full, full.Duration.MulFloat(k)); err != nil {
			return nil, &Error{Kind: ErrCompositionInsert, Input: input, Err: err}
		}
		return comp, nil
	}, nil, false)
	return job, results
}

// Refilter re-renders every frame of input through t into a new file at the
// original timing. Audio is copied unchanged.
func (e *Exporter) Refilter(input string, t filter.Transform) (*Job, <-chan Result) {
	job, results := e.newJob(input, "refiltered")
	if t == nil {
		e.finish(job, results, Result{Err: ErrNilTransform})
		return job, results
	}
	e.spawn(job, results, func() (*Composition, error) {
		comp, err := NewComposition(e.store.Fs(), input)
		if err != nil {
			return nil, err
		}
		if err := comp.InsertTimeRange(comp.FullRange()); err != nil {
			return nil, err
		}
		return comp, nil
	}, t, true)
	return job, results
}

// MinTrimDuration is the shortest range Trim accepts.
var MinTrimDuration = media.NewTime(600, 600)

// Trim exports range r of input, in clip time, starting at zero in the
// output. Frames at both ends of the range are kept and audio is copied.
// Ranges shorter than MinTrimDuration are rejected.
func (e *Exporter) Trim(input string, r media.TimeRange) (*Job, <-chan Result) {
	job, results := e.newJob(input, "trimmed")
	if !r.Duration.IsValid() || r.Duration.Compare(MinTrimDuration) < 0 {
		e.finish(job, results, Result{Err: fmt.Errorf("%w: %s", ErrTrimTooShort, r.Duration)})
		return job, results
	}
	e.spawn(job, results, func() (*Composition, error) {
		comp, err := NewComposition(e.store.Fs(), input)
		if err != nil {
			return nil, err
		}
		if err := comp.InsertTimeRange(r); err != nil {
			return nil, err
		}
		return comp, nil
	}, nil, true)
	return job, results
}

// Job returns a job by ID.
func (e *Exporter) Job(id string) (*Job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[id]
	return j, ok
}

// Wait blocks until every started job has finished.
func (e *Exporter) Wait() {
	e.wg.Wait()
}

func (e *Exporter) newJob(input, kind string) (*Job, chan Result) {
	job := &Job{
		ID:     uuid.NewString(),
		Input:  input,
		Output: e.store.TempPath(e.prefix+"-"+kind, clip.FileExtension),
		done:   make(chan struct{}),
	}
	e.mu.Lock()
	e.jobs[job.ID] = job
	e.mu.Unlock()
	return job, make(chan Result, 1)
}

func (e *Exporter) spawn(job *Job, results chan Result, build func() (*Composition, error), t filter.Transform, withAudio bool) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		job.setState(JobExporting)
		logrus.WithFields(logrus.Fields{
			"function": "Exporter.spawn",
			"job":      job.ID,
			"input":    job.Input,
			"output":   job.Output,
		}).Info("Export started")

		comp, err := build()
		if err != nil {
			e.finish(job, results, Result{Err: err})
			return
		}
		e.finish(job, results, e.render(job, comp, t, withAudio))
	}()
}

func (e *Exporter) render(job *Job, comp *Composition, t filter.Transform, withAudio bool) Result {
	res, err := e.write(job, comp, t, withAudio)
	if err != nil {
		if rerr := e.store.Remove(job.Output); rerr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Exporter.render",
				"job":      job.ID,
				"error":    rerr.Error(),
			}).Warn("Could not remove partial export")
		}
		var exportErr *Error
		if !errors.As(err, &exportErr) {
			err = &Error{Kind: ErrExportFailed, Input: job.Input, Err: err}
		}
		return Result{Err: err}
	}
	return res
}

func (e *Exporter) write(job *Job, comp *Composition, t filter.Transform, withAudio bool) (Result, error) {
	src, err := e.store.Open(job.Input)
	if err != nil {
		return Result{}, err
	}
	defer src.Close()
	reader, err := clip.NewReader(src)
	if err != nil {
		return Result{}, err
	}

	out, err := e.store.Create(job.Output)
	if err != nil {
		return Result{}, err
	}
	defer out.Close()

	hdr := comp.Header()
	enc := clip.NewEncoder(out, hdr.Timescale)
	if err := enc.AddVideoTrack(hdr.Video); err != nil {
		return Result{}, err
	}
	if withAudio && hdr.Audio != nil {
		if err := enc.AddAudioTrack(*hdr.Audio); err != nil {
			return Result{}, err
		}
	}
	if err := enc.Begin(media.NewTime(0, hdr.Timescale)); err != nil {
		return Result{}, err
	}

	var frame *media.PixelBuffer
	if t != nil && !filter.IsPassthrough(t) {
		if frame, err = media.NewPixelBuffer(hdr.Video.Width, hdr.Video.Height, hdr.Video.Format); err != nil {
			return Result{}, err
		}
	}

	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("read source: %w", err)
		}
		at, ok := comp.Map(rec.PTS)
		if !ok {
			continue
		}
		switch rec.Kind {
		case clip.KindVideo:
			payload := rec.Payload
			if frame != nil {
				if payload, err = refilter(frame, payload, t); err != nil {
					return Result{}, err
				}
			}
			if err := enc.WriteVideo(at, payload); err != nil {
				return Result{}, err
			}
		case clip.KindAudio:
			if withAudio && enc.HasAudio() {
				if err := enc.WriteAudio(at, rec.Payload); err != nil {
					return Result{}, err
				}
			}
		}
	}

	trailer, err := enc.Finish(comp.Duration())
	if err != nil {
		return Result{}, err
	}
	if err := out.Close(); err != nil {
		return Result{}, err
	}
	size, _ := e.store.Size(job.Output)
	return Result{Duration: trailer.Duration, Frames: trailer.VideoFrames, Size: size}, nil
}

// refilter runs one stored frame through t, reusing frame as scratch space.
func refilter(frame *media.PixelBuffer, payload []byte, t filter.Transform) ([]byte, error) {
	copy(frame.Pix, payload)
	img, err := t.Apply(frame.Image())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.GetName(), err)
	}
	if err := frame.Render(img); err != nil {
		return nil, err
	}
	return frame.Pix, nil
}

func (e *Exporter) finish(job *Job, results chan Result, res Result) {
	res.JobID, res.Input = job.ID, job.Input
	state := JobCompleted
	entry := logrus.WithFields(logrus.Fields{
		"function": "Exporter.finish",
		"job":      job.ID,
		"input":    job.Input,
	})
	if res.Err != nil {
		state = JobFailed
		entry.WithField("error", res.Err.Error()).Error("Export failed")
	} else {
		res.Output = job.Output
		entry.WithFields(logrus.Fields{
			"output":   res.Output,
			"duration": res.Duration.String(),
			"size":     humanize.Bytes(uint64(res.Size)),
		}).Info("Export completed")
	}

	job.mu.Lock()
	job.state = state
	job.result = res
	job.mu.Unlock()
	close(job.done)
	results <- res
	close(results)
}
