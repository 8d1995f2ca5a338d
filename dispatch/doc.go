// Package dispatch provides a serial execution context: a single goroutine
// that runs submitted work in submission order and can be suspended.
//
// The camera session controller uses one Queue for every configuration and
// stream-lifecycle operation, and suspends it while the user answers a
// capture permission prompt:
//
//	q := dispatch.NewQueue("session")
//	defer q.Close()
//
//	q.Suspend()
//	q.Async(configure) // held until Resume
//	askPermission(func() { q.Resume() })
package dispatch
