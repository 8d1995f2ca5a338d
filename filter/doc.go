// Package filter provides the color transforms ("filters") applied to live
// frames, and the library that resolves a filter identifier to a transform.
//
// # Lookup tables
//
// A filter is usually a 3-D lookup table ([LUT]) sampled with trilinear
// interpolation. Tables are read from Adobe .cube files with [ParseCube] or
// from tiled PNG, JPEG and WebP images with [DecodeImageLUT]:
//
//	lib, _ := filter.NewLibrary(afero.NewOsFs(), filter.LibraryOptions{Dir: "luts"})
//	t, err := lib.Resolve("kodak")
//	out, err := t.Apply(img)
//
// The identifiers "", "none" and "original" resolve to [Identity], which
// passes frames through unmodified.
//
// # Hot reload
//
// [Library.Watch] observes the table directory with fsnotify and drops cached
// tables whose files change, so the next Resolve reads the new version.
package filter
