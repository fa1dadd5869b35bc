package media

import (
	"context"
	"fmt"
	"strings"

	"clipforge/internal/procexec"
)

// Credentials optionally authenticates the fetcher against providers that
// require a login.
type Credentials struct {
	Username string
	Password string
}

// Args returns the fetcher authentication flags, empty when unset.
func (c *Credentials) Args() []string {
	if c == nil {
		return nil
	}
	var args []string
	if c.Username != "" {
		args = append(args, "--username", c.Username)
	}
	if c.Password != "" {
		args = append(args, "--password", c.Password)
	}
	return args
}

// Runner executes a binary and captures its output.
type Runner interface {
	RunCapture(ctx context.Context, binary string, args []string) (procexec.Capture, error)
}

// MetadataArgs builds the fetcher argument vector that emits one JSON
// document describing the video without downloading any media.
func MetadataArgs(url string, creds *Credentials) []string {
	args := []string{"--dump-json", "--no-playlist", "--no-warnings"}
	args = append(args, creds.Args()...)
	return append(args, url)
}

// FetchVideoInfo queries the fetcher at fetcherPath for the video's
// metadata. On a nonzero exit the tool's error output is surfaced verbatim,
// with a placeholder when it produced none.
func FetchVideoInfo(ctx context.Context, runner Runner, fetcherPath, url string, creds *Credentials) (*VideoInfo, error) {
	capture, err := runner.RunCapture(ctx, fetcherPath, MetadataArgs(url, creds))
	if err != nil {
		return nil, err
	}
	if capture.ExitCode != 0 {
		reason := strings.TrimSpace(string(capture.Stderr))
		if reason == "" {
			reason = "fetcher produced no error output"
		}
		return nil, fmt.Errorf("metadata query failed: %s: %w", reason, &procexec.ExitError{Code: capture.ExitCode})
	}
	return ParseVideoInfo(capture.Stdout)
}
