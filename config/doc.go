// Package config loads the film24 YAML configuration. Keys missing from a
// file keep their [Default] values.
//
//	storage:
//	  dir: recordings
//	capture:
//	  position: back
//	  audio: true
//	filters:
//	  dir: luts
//	  color_space: linear
//	export:
//	  slow_motion: 2
//	log:
//	  level: debug
package config
