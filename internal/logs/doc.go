// Package logs reads the daemon's log files for `sam logs`.
//
// Tail returns the last N lines or everything after a byte offset, and can
// poll for new lines in follow mode. The sam.log pointer moves to a new file
// each day, so an offset past the end of the file restarts from the top.
package logs
