// Package toolchain tracks the two external tools clipforge depends on: the
// fetcher that queries and downloads remote media, and the processor that
// cuts and transcodes it. The Manager resolves where each tool comes from,
// verifies versions through a persistent cache, and publishes lifecycle
// status to observers.
package toolchain

import (
	"regexp"
	"strings"

	"clipforge/internal/textutil"
)

// Kind identifies one of the managed external tools.
type Kind string

const (
	// KindFetcher is the metadata and download tool (yt-dlp).
	KindFetcher Kind = "fetcher"
	// KindProcessor is the media processing tool (ffmpeg).
	KindProcessor Kind = "processor"
)

var allKinds = []Kind{KindFetcher, KindProcessor}

// Kinds returns the managed tool kinds in display order.
func Kinds() []Kind {
	return append([]Kind(nil), allKinds...)
}

// ParseKind maps user input to a Kind.
func ParseKind(value string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(KindFetcher), "yt-dlp", "ytdlp":
		return KindFetcher, true
	case string(KindProcessor), "ffmpeg":
		return KindProcessor, true
	}
	return "", false
}

// Source identifies where a tool binary comes from.
type Source string

const (
	// SourceManaged is a copy installed into the managed directory.
	SourceManaged Source = "managed"
	// SourceSystem is a copy discovered on this machine.
	SourceSystem Source = "system"
)

// ParseSource maps user input to a Source.
func ParseSource(value string) (Source, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(SourceManaged):
		return SourceManaged, true
	case string(SourceSystem), "path":
		return SourceSystem, true
	}
	return "", false
}

// Descriptor carries the per-kind constants: binary name, version query, and
// the rule for extracting a version from the tool's output.
type Descriptor struct {
	Kind         Kind
	DisplayName  string
	BinaryName   string
	VersionArgs  []string
	ParseVersion func(output string) string
}

var descriptors = map[Kind]Descriptor{
	KindFetcher: {
		Kind:         KindFetcher,
		DisplayName:  textutil.Title(string(KindFetcher)),
		BinaryName:   "yt-dlp",
		VersionArgs:  []string{"--version"},
		ParseVersion: parseFetcherVersion,
	},
	KindProcessor: {
		Kind:         KindProcessor,
		DisplayName:  textutil.Title(string(KindProcessor)),
		BinaryName:   "ffmpeg",
		VersionArgs:  []string{"-version"},
		ParseVersion: parseProcessorVersion,
	},
}

// DescriptorFor returns the descriptor for a kind. Unknown kinds yield a
// zero descriptor.
func DescriptorFor(kind Kind) Descriptor {
	return descriptors[kind]
}

// parseFetcherVersion expects a bare version token on the first line, the
// fetcher's whole --version output.
func parseFetcherVersion(output string) string {
	line := firstNonEmptyLine(output)
	if line == "" || strings.ContainsAny(line, " \t") {
		return ""
	}
	if !strings.ContainsAny(line, "0123456789") {
		return ""
	}
	return line
}

var processorVersionPattern = regexp.MustCompile(`version\s+(\S+)`)

// parseProcessorVersion extracts the version token from the processor's
// banner line ("ffmpeg version 7.1 Copyright ...").
func parseProcessorVersion(output string) string {
	match := processorVersionPattern.FindStringSubmatch(firstNonEmptyLine(output))
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSuffix(match[1], "-static")
}

func firstNonEmptyLine(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
