// Package daemonrun hosts the foreground daemon process: logging, pid file,
// signal handling and the IPC socket around a daemon.Daemon.
package daemonrun
