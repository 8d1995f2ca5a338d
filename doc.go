// Package film24 is the capture, filter and record core of a camera app.
//
// A [Pipeline] owns one capture device session, a live color-filter stage
// and up to two recording sessions. It exposes the controls and
// observables a camera UI binds to: filter selection, zoom, focus,
// exposure, stabilization, frame rate, camera switching, the live
// filtered preview and the recording state.
//
// # Getting Started
//
//	opts := film24.NewOptions()
//	opts.StorageDir = "/var/lib/film24"
//
//	p, err := film24.New(backend, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	if err := p.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Recording
//
// StartRecording takes a filter identifier. The identity filters ("",
// "none" and "original") record one stream. Any other filter records the
// filtered stream and the unfiltered original side by side, so the look
// can be changed later with [Pipeline.Refilter].
//
//	_ = p.StartRecording("kodak-2383")
//	// ...
//	res := <-p.StopRecording()
//	if res.Err != nil {
//	    log.Println("recording failed:", res.Err)
//	}
//	fmt.Println(res.Output, res.Original, res.Duration)
//
// # Slow Motion
//
// With a non-zero factor set through [Pipeline.SetSlowMotionFactor], the
// finished filtered clip is re-timed by the factor and the result replaces
// both temporary recordings. A factor of 2 doubles the duration.
//
// # Concurrency
//
// Device configuration runs on the camera controller's session queue;
// frames arrive on the backend's delivery goroutine and are never blocked
// by configuration. Recordings finish and exports run in the background;
// their outcomes arrive on channels rather than callbacks.
package film24
