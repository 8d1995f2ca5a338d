package export

import (
	"fmt"

	"github.com/opd-ai/film24/clip"
	"github.com/opd-ai/film24/media"
	"github.com/spf13/afero"
)

type segment struct {
	source   media.TimeRange // in clip time
	duration media.Time      // in composition time
}

// Composition is a single video track assembled from time ranges of one
// source clip. Times are relative to the start of the clip.
type Composition struct {
	source   string
	info     clip.Info
	segments []segment
}

// NewComposition loads the source clip at path. The composition starts empty.
func NewComposition(fs afero.Fs, path string) (*Composition, error) {
	info, err := clip.Probe(fs, path)
	if err != nil {
		return nil, &Error{Kind: ErrCompositionInsert, Input: path, Err: err}
	}
	return &Composition{source: path, info: info}, nil
}

// Source returns the clip path.
func (c *Composition) Source() string {
	return c.source
}

// SourceDuration returns the duration of the whole source clip.
func (c *Composition) SourceDuration() media.Time {
	return c.info.Duration
}

// Transform returns the orientation of the source video track.
func (c *Composition) Transform() media.Transform {
	return c.info.Video.Transform
}

// Header returns the source clip header.
func (c *Composition) Header() clip.Header {
	return c.info.Header
}

// FullRange returns the time range of the whole source clip.
func (c *Composition) FullRange() media.TimeRange {
	return media.TimeRange{Start: media.NewTime(0, c.info.Timescale), Duration: c.info.Duration}
}

// Duration returns the composition length.
func (c *Composition) Duration() media.Time {
	d := media.NewTime(0, c.info.Timescale)
	for _, s := range c.segments {
		d = d.Add(s.duration)
	}
	return d
}

// InsertTimeRange appends r of the source clip to the end of the track.
func (c *Composition) InsertTimeRange(r media.TimeRange) error {
	zero := media.NewTime(0, c.info.Timescale)
	if !r.IsValid() || r.Start.Before(zero) || r.End().After(c.info.Duration) {
		return &Error{
			Kind:  ErrCompositionInsert,
			Input: c.source,
			Err:   fmt.Errorf("range %s+%s outside clip of %s", r.Start, r.Duration, c.info.Duration),
		}
	}
	c.segments = append(c.segments, segment{source: r, duration: r.Duration})
	return nil
}

// ScaleTimeRange stretches the segment occupying r, in composition time, to
// last d.
func (c *Composition) ScaleTimeRange(r media.TimeRange, d media.Time) error {
	if !d.IsValid() || d.Value < 0 {
		return fmt.Errorf("%w: duration %s", ErrScaleRange, d)
	}
	at := media.NewTime(0, c.info.Timescale)
	for i, s := range c.segments {
		if at.Compare(r.Start) == 0 && s.duration.Compare(r.Duration) == 0 {
			c.segments[i].duration = d
			return nil
		}
		at = at.Add(s.duration)
	}
	return fmt.Errorf("%w: %s+%s", ErrScaleRange, r.Start, r.Duration)
}

// Map returns the composition time of a sample at clip time t, and false
// when no segment contains it. Segment ends are inclusive so the final
// sample of a clip, which sits at its duration, is kept.
func (c *Composition) Map(t media.Time) (media.Time, bool) {
	at := media.NewTime(0, c.info.Timescale)
	for _, s := range c.segments {
		if !t.Before(s.source.Start) && !t.After(s.source.End()) {
			offset := t.Sub(s.source.Start)
			ratio := 1.0
			if s.source.Duration.Value > 0 {
				ratio = s.duration.Seconds() / s.source.Duration.Seconds()
			}
			return at.Add(offset.MulFloat(ratio)), true
		}
		at = at.Add(s.duration)
	}
	return media.InvalidTime, false
}
