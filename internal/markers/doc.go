// Package markers decodes fiducial-marker detection messages and matches
// them against marker-board models.
//
// A detection message is JSON with a top-level "markers" array:
//
//	{"markers":[{"id":3,"corners":[0,0,10,0,10,10,0,10],"confidence":0.9}]}
//
// Corners hold four image points (x0,y0 ... x3,y3) in a consistent winding.
// The confidence field is optional and defaults to 1.0.
package markers
