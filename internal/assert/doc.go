// Package assert provides assertions that only exist in builds tagged
// loopsync_debug. Release builds compile them away.
package assert
