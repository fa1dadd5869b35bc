// Package notify pushes short status messages to an ntfy topic. Each event
// category is gated by its own configuration flag, and an unconfigured topic
// yields a no-op service so callers never need to check whether
// notifications are enabled.
package notify
