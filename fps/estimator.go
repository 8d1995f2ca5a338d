package fps

import (
	"math"
	"sync"

	"github.com/opd-ai/film24/media"
)

// DefaultWindow is the number of timestamps kept by NewEstimator(0).
const DefaultWindow = 30

// Estimator keeps a rolling window of recent frame timestamps.
type Estimator struct {
	mu     sync.Mutex
	window []float64 // ring of timestamps in seconds
	head   int
	count  int
}

// NewEstimator creates an estimator over the last size timestamps. A size
// below two selects DefaultWindow.
func NewEstimator(size int) *Estimator {
	if size < 2 {
		size = DefaultWindow
	}
	return &Estimator{window: make([]float64, size)}
}

// Observe records a frame timestamp. Invalid timestamps are ignored; a
// timestamp that does not move forward (a new stream after a camera switch)
// restarts the window.
func (e *Estimator) Observe(ts media.Time) {
	sec := ts.Seconds()
	if math.IsNaN(sec) || math.IsInf(sec, 0) {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.count > 0 && sec <= e.latest() {
		e.count = 0
		e.head = 0
	}
	e.window[e.head] = sec
	e.head = (e.head + 1) % len(e.window)
	if e.count < len(e.window) {
		e.count++
	}
}

// Rate returns frames per second over the window, or 0 with fewer than two
// samples.
func (e *Estimator) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.count < 2 {
		return 0
	}
	span := e.latest() - e.oldest()
	if span <= 0 {
		return 0
	}
	return float64(e.count-1) / span
}

// Interval returns the mean spacing between frames in seconds, or 0 with
// fewer than two samples.
func (e *Estimator) Interval() float64 {
	r := e.Rate()
	if r == 0 {
		return 0
	}
	return 1 / r
}

// Within reports whether the current rate is within tolerance fps of target.
func (e *Estimator) Within(target, tolerance float64) bool {
	r := e.Rate()
	return r > 0 && math.Abs(r-target) <= tolerance
}

// Count returns the number of timestamps in the window.
func (e *Estimator) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// Reset empties the window.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count = 0
	e.head = 0
}

func (e *Estimator) latest() float64 {
	return e.window[(e.head-1+len(e.window))%len(e.window)]
}

func (e *Estimator) oldest() float64 {
	return e.window[(e.head-e.count+len(e.window))%len(e.window)]
}
