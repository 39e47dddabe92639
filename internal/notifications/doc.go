// Package notifications pushes attendance events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured.
// Individual event families can be switched off in the [notifications]
// config section; suppressed events return nil without touching the network.
package notifications
