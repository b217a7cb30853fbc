// Package geometry holds the projective-geometry collaborators used by the
// tracking engine: rigid 4x4 transforms, the pinhole camera model loaded from
// calibration data, planar homographies and a pose-from-correspondences
// solver.
//
// Transforms are row-major 4x4 matrices. Translate post-multiplies, so a
// chain of Translate calls walks along the local axes of the transform, the
// same way the producers describe board-relative positions.
package geometry
