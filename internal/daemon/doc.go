// Package daemon coordinates the long-running attendance process and its
// system integration points.
//
// It wires the settings store, attendance storage, capture loop, report
// syncer and UI event hub into a single lifecycle with flock-based locking
// to prevent multiple instances. Background timers (day rollover, database
// snapshots) and the camera hotplug monitor start with the daemon and are
// torn down by Cleanup, which runs at most once whether it is triggered by
// the window closing, a signal, or process exit.
//
// Keep orchestration here: scan, storage and workbook logic live in their
// own packages while the daemon focuses on startup, shutdown, and cross
// component side effects.
package daemon
