// Package main hosts the sam CLI entrypoint and command graph.
//
// Subcommands translate terminal invocations into IPC calls against the
// attendance daemon: camera control, manual entries, today's roster, settings
// maintenance and SF2 report actions. The hidden daemon command runs the
// daemon process itself.
package main
