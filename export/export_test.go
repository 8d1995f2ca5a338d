package export

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/opd-ai/film24/clip"
	"github.com/opd-ai/film24/filter"
	"github.com/opd-ai/film24/media"
	"github.com/opd-ai/film24/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var portrait = media.Transform{Rotation: 90, Mirrored: true}

// writeClip records frames 4x2 BGRA frames at 30 fps, with one audio buffer
// per frame when audio is set.
func writeClip(t *testing.T, st *store.Store, path string, frames int, audio bool) {
	t.Helper()
	f, err := st.Create(path)
	require.NoError(t, err)
	enc := clip.NewEncoder(f, 600)
	require.NoError(t, enc.AddVideoTrack(clip.VideoTrack{Width: 4, Height: 2, Format: media.PixelFormatBGRA32, Transform: portrait}))
	if audio {
		require.NoError(t, enc.AddAudioTrack(clip.AudioTrack{SampleRate: 48000, Channels: 1}))
	}
	start := media.NewTime(1200, 600)
	require.NoError(t, enc.Begin(start))
	pix := bytes.Repeat([]byte{10, 20, 200, 255}, 8)
	for i := 0; i < frames; i++ {
		pts := start.Add(media.NewTime(int64(i*20), 600))
		require.NoError(t, enc.WriteVideo(pts, pix))
		if audio {
			require.NoError(t, enc.WriteAudio(pts, make([]byte, 1600)))
		}
	}
	_, err = enc.Finish(start.Add(media.NewTime(int64((frames-1)*20), 600)))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func setup(t *testing.T) (*store.Store, *Exporter) {
	t.Helper()
	st, err := store.New(afero.NewMemMapFs(), "/media")
	require.NoError(t, err)
	writeClip(t, st, "/media/source.f24", 30, true)
	return st, NewExporter(st, Options{})
}

func await(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("export did not finish")
		return Result{}
	}
}

func TestTimeScaleDuration(t *testing.T) {
	st, exp := setup(t)
	source, err := clip.Probe(st.Fs(), "/media/source.f24")
	require.NoError(t, err)
	d := source.Duration.Seconds()

	for _, k := range []float64{0.5, 1, 2, 4} {
		job, results := exp.TimeScale("/media/source.f24", k)
		res := await(t, results)
		require.NoError(t, res.Err, "k=%v", k)
		assert.Equal(t, JobCompleted, job.State())
		assert.Equal(t, job.Output, res.Output)
		assert.Equal(t, job.ID, res.JobID)

		info, err := clip.Probe(st.Fs(), res.Output)
		require.NoError(t, err)
		assert.InDelta(t, d*k, info.Duration.Seconds(), 1.0/600, "k=%v", k)
		assert.Equal(t, uint32(30), info.VideoFrames)
		assert.Equal(t, portrait, info.Video.Transform)
		assert.Nil(t, info.Audio, "time-scaled output is video only")
	}

	after, err := clip.Probe(st.Fs(), "/media/source.f24")
	require.NoError(t, err)
	assert.Equal(t, source, after)
}

func TestTimeScaleSpacing(t *testing.T) {
	st, exp := setup(t)
	_, results := exp.TimeScale("/media/source.f24", 2)
	res := await(t, results)
	require.NoError(t, res.Err)

	f, err := st.Open(res.Output)
	require.NoError(t, err)
	defer f.Close()
	r, err := clip.NewReader(f)
	require.NoError(t, err)

	var pts []int64
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		pts = append(pts, rec.PTS.Value)
	}
	require.Len(t, pts, 30)
	for i, v := range pts {
		assert.Equal(t, int64(i*40), v)
	}
}

func TestTimeScaleUniqueOutputs(t *testing.T) {
	_, exp := setup(t)
	a, ra := exp.TimeScale("/media/source.f24", 2)
	b, rb := exp.TimeScale("/media/source.f24", 2)
	assert.NotEqual(t, a.Output, b.Output)
	assert.NotEqual(t, a.ID, b.ID)
	require.NoError(t, await(t, ra).Err)
	require.NoError(t, await(t, rb).Err)

	got, ok := exp.Job(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestTimeScaleRejectsFactor(t *testing.T) {
	_, exp := setup(t)
	for _, k := range []float64{0, -1} {
		job, results := exp.TimeScale("/media/source.f24", k)
		res := await(t, results)
		assert.ErrorIs(t, res.Err, ErrInvalidFactor)
		assert.Equal(t, JobFailed, job.State())
		assert.Empty(t, res.Output)
	}
}

func TestTimeScaleMissingInput(t *testing.T) {
	st, exp := setup(t)
	job, results := exp.TimeScale("/media/missing.f24", 2)
	res := await(t, results)

	var exportErr *Error
	require.ErrorAs(t, res.Err, &exportErr)
	assert.ErrorIs(t, res.Err, ErrCompositionInsert)
	assert.Equal(t, JobFailed, job.State())
	assert.False(t, st.Exists(job.Output))
}

func TestTimeScaleCorruptInput(t *testing.T) {
	st, exp := setup(t)
	data, err := afero.ReadFile(st.Fs(), "/media/source.f24")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(st.Fs(), "/media/cut.f24", data[:len(data)/2], 0o644))

	job, results := exp.TimeScale("/media/cut.f24", 2)
	res := await(t, results)
	assert.Error(t, res.Err)
	assert.False(t, st.Exists(job.Output))
	<-job.Done()
	assert.Equal(t, res, job.Result())
}

func TestRefilter(t *testing.T) {
	st, exp := setup(t)
	_, results := exp.Refilter("/media/source.f24", filter.GrayscaleTransform{})
	res := await(t, results)
	require.NoError(t, res.Err)

	f, err := st.Open(res.Output)
	require.NoError(t, err)
	defer f.Close()
	r, err := clip.NewReader(f)
	require.NoError(t, err)
	require.NotNil(t, r.Header().Audio)
	assert.Equal(t, portrait, r.Header().Video.Transform)

	var video, audio int
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if rec.Kind == clip.KindAudio {
			audio++
			continue
		}
		video++
		b, g, red := rec.Payload[0], rec.Payload[1], rec.Payload[2]
		assert.Equal(t, b, g)
		assert.Equal(t, g, red)
		assert.Equal(t, uint8(255), rec.Payload[3])
	}
	assert.Equal(t, 30, video)
	assert.Equal(t, 30, audio)
	assert.InDelta(t, 29.0/30, res.Duration.Seconds(), 1e-9)
}

func TestRefilterNilTransform(t *testing.T) {
	_, exp := setup(t)
	_, results := exp.Refilter("/media/source.f24", nil)
	assert.ErrorIs(t, await(t, results).Err, ErrNilTransform)
}

func readPTS(t *testing.T, st *store.Store, path string) (video, audio []int64) {
	t.Helper()
	f, err := st.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := clip.NewReader(f)
	require.NoError(t, err)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return video, audio
		}
		require.NoError(t, err)
		if rec.Kind == clip.KindVideo {
			video = append(video, rec.PTS.ConvertScale(600).Value)
		} else {
			audio = append(audio, rec.PTS.ConvertScale(600).Value)
		}
	}
}

func TestTrim(t *testing.T) {
	st, exp := setup(t)
	writeClip(t, st, "/media/long.f24", 90, true)

	// Frames sit every 20 ticks; [600, 1200] holds frames 30 to 60.
	r := media.TimeRange{Start: media.NewTime(600, 600), Duration: media.NewTime(600, 600)}
	job, results := exp.Trim("/media/long.f24", r)
	res := await(t, results)
	require.NoError(t, res.Err)
	assert.Equal(t, JobCompleted, job.State())
	assert.NotEqual(t, "/media/long.f24", res.Output)

	info, err := clip.Probe(st.Fs(), res.Output)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, info.Duration.Seconds(), 1e-9)
	assert.Equal(t, uint32(31), info.VideoFrames)
	assert.Equal(t, uint32(31), info.AudioBuffers)
	assert.Equal(t, portrait, info.Video.Transform)

	video, audio := readPTS(t, st, res.Output)
	require.Len(t, video, 31)
	for i, pts := range video {
		assert.Equal(t, int64(i*20), pts)
	}
	assert.Equal(t, video, audio)

	source, err := clip.Probe(st.Fs(), "/media/long.f24")
	require.NoError(t, err)
	assert.Equal(t, uint32(90), source.VideoFrames)
}

func TestTrimRejectsRanges(t *testing.T) {
	st, exp := setup(t)
	writeClip(t, st, "/media/long.f24", 90, false)

	tests := []struct {
		name   string
		r      media.TimeRange
		target error
	}{
		{"below one second", media.TimeRange{Start: media.NewTime(0, 600), Duration: media.NewTime(599, 600)}, ErrTrimTooShort},
		{"invalid duration", media.TimeRange{Start: media.NewTime(0, 600), Duration: media.InvalidTime}, ErrTrimTooShort},
		{"past the end", media.TimeRange{Start: media.NewTime(1200, 600), Duration: media.NewTime(900, 600)}, ErrCompositionInsert},
		{"before the start", media.TimeRange{Start: media.NewTime(-60, 600), Duration: media.NewTime(600, 600)}, ErrCompositionInsert},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, results := exp.Trim("/media/long.f24", tt.r)
			res := await(t, results)
			assert.ErrorIs(t, res.Err, tt.target)
			assert.Equal(t, JobFailed, job.State())
			assert.Empty(t, res.Output)
			assert.False(t, st.Exists(job.Output))
		})
	}
}

func TestCompositionRanges(t *testing.T) {
	st, _ := setup(t)
	comp, err := NewComposition(st.Fs(), "/media/source.f24")
	require.NoError(t, err)
	assert.Zero(t, comp.Duration().Value)

	tooLong := media.TimeRange{Start: media.NewTime(0, 600), Duration: media.NewTime(6000, 600)}
	assert.ErrorIs(t, comp.InsertTimeRange(tooLong), ErrCompositionInsert)

	half := media.TimeRange{Start: media.NewTime(0, 600), Duration: media.NewTime(290, 600)}
	require.NoError(t, comp.InsertTimeRange(half))
	rest := media.TimeRange{Start: media.NewTime(290, 600), Duration: media.NewTime(290, 600)}
	require.NoError(t, comp.InsertTimeRange(rest))
	assert.Equal(t, int64(580), comp.Duration().Value)

	// Slow down only the second half.
	assert.ErrorIs(t, comp.ScaleTimeRange(media.TimeRange{Start: media.NewTime(100, 600), Duration: media.NewTime(290, 600)}, media.NewTime(580, 600)), ErrScaleRange)
	require.NoError(t, comp.ScaleTimeRange(rest, media.NewTime(580, 600)))
	assert.Equal(t, int64(870), comp.Duration().Value)

	at, ok := comp.Map(media.NewTime(100, 600))
	require.True(t, ok)
	assert.Equal(t, int64(100), at.Value)
	at, ok = comp.Map(media.NewTime(390, 600))
	require.True(t, ok)
	assert.Equal(t, int64(290+200), at.Value)
	_, ok = comp.Map(media.NewTime(1000, 600))
	assert.False(t, ok)
}

func TestJobStateString(t *testing.T) {
	assert.Equal(t, "pending", JobPending.String())
	assert.Equal(t, "exporting", JobExporting.String())
	assert.Equal(t, "completed", JobCompleted.String())
	assert.Equal(t, "failed", JobFailed.String())
}
