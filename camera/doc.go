// Package camera implements the device session controller: permission
// gating, device discovery, input and output wiring, and the zoom, focus,
// exposure, stabilization and frame-rate controls.
//
// # Session queue
//
// Every configuration step runs on one [dispatch.Queue]. Configure suspends
// the queue while a permission prompt is open, so work submitted during the
// prompt runs, in order, once the user answers. Reconfigure and
// SwitchPosition tear the session down and rebuild it on the same queue,
// which makes rapid repeated calls safe: each one waits for the previous
// teardown.
//
// # Capabilities
//
// A [Device] exposes optional controls through small interfaces such as
// [Zoomer] and [Focuser]. A control the attached device lacks returns an
// [*UnsupportedError]; a control invoked with no device attached returns
// [ErrNoDevice]. Failures while applying a supported control are logged and
// swallowed so the live stream is never interrupted.
//
//	ctrl, _ := camera.NewController(backend, stage, camera.Options{Audio: true})
//	if err := ctrl.Configure(); err != nil {
//		var perm *camera.PermissionError
//		if errors.As(err, &perm) { ... }
//	}
//	_ = ctrl.Zoom(3)
package camera
