// Package sim provides an in-process capture backend for tests and the
// film24-sim command.
//
// SIMULATION ONLY: no camera or microphone is involved. [Backend] implements
// camera.Backend with scriptable permissions and injectable faults, and
// delivers synthetic frames with exact timestamps:
//
//	backend, back, _ := sim.NewPhoneBackend()
//	n, err := backend.Run(ctx, sim.RunOptions{FPS: 30, Frames: 31})
package sim
