// Package export produces new clips from finished ones without touching the
// source: time-scaled exports for slow motion and speed-up, trims to a
// selected range, and re-filtered exports that run every frame through a
// color transform.
//
// A job is started with [Exporter.TimeScale], [Exporter.Trim] or
// [Exporter.Refilter] and
// reports exactly one [Result] on the returned channel. Failed jobs carry an
// [*Error] and leave no output behind.
//
//	job, results := exporter.TimeScale(path, 2)
//	res := <-results
//	if res.Err != nil { ... }
//	log.Println(job.ID, res.Output, res.Duration)
package export
