// Package daemonctl launches, probes and stops the background daemon on
// behalf of CLI commands.
package daemonctl
