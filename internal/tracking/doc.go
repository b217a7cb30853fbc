// Package tracking keeps the pose of marker boards as seen by each camera.
//
// Every (board, camera) pair has its own state: the current transform, an
// optional one-euro filter bank, and an update mode with a deadline:
//
//	Normal   recompute on every update call
//	Blocked  no recompute until the deadline
//	Forced   recompute on every call until the deadline, then behave like
//	         Blocked; one recompute is guaranteed even if no update call
//	         arrived before the deadline
//
// Modes only change through BlockUpdate and ForceUpdate.
package tracking
