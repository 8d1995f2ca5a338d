// Package observe provides latest-value observables for the presentation
// layer: the current preview frame, the recording state and the last error.
//
// A subscriber that falls behind only ever sees the newest value; producers
// never block on slow consumers, so publishing from the frame delivery
// goroutine cannot stall the camera feed.
package observe
