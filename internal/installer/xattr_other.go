//go:build !darwin

package installer

// clearQuarantine is a no-op outside macOS.
func clearQuarantine(string) {}
