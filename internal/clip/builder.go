// Package clip turns extraction requests into fetcher argument vectors,
// parses the tool's progress output into weighted completion fractions, and
// runs clip jobs end to end.
package clip

import (
	"strconv"
	"strings"

	"clipforge/internal/config"
	"clipforge/internal/media"
)

// Request describes one time-bounded extraction.
type Request struct {
	URL          string
	Title        string
	FormatID     string
	SourceCodec  string
	StartSeconds float64
	EndSeconds   float64
	OutputPath   string
	Credentials  *media.Credentials
}

// Builder renders fetcher argument vectors for clip extraction. Container
// and codec targets come from configuration.
type Builder struct {
	Container  string
	VideoCodec string
	AudioCodec string
}

// NewBuilder derives a Builder from the clip configuration.
func NewBuilder(cfg *config.Config) Builder {
	return Builder{
		Container:  cfg.Clip.Container,
		VideoCodec: cfg.Clip.VideoCodec,
		AudioCodec: cfg.Clip.AudioCodec,
	}
}

// codecFamilies maps an encoder target to the codec tag prefixes it does
// not need to re-encode.
var codecFamilies = map[string][]string{
	"libx264":    {"avc1", "h264"},
	"libx265":    {"hev1", "hvc1", "hevc", "h265"},
	"libvpx-vp9": {"vp9", "vp09"},
	"libaom-av1": {"av01", "av1"},
}

// NeedsReencode reports whether the source codec is outside the configured
// compatibility target. An unknown or absent codec tag re-encodes, since
// compatibility cannot be assumed.
func (b Builder) NeedsReencode(sourceCodec string) bool {
	source := strings.ToLower(strings.TrimSpace(sourceCodec))
	if source == "" || source == "none" {
		return true
	}
	for _, prefix := range codecFamilies[strings.ToLower(b.VideoCodec)] {
		if strings.HasPrefix(source, prefix) {
			return false
		}
	}
	return true
}

// ClipArgs builds the literal argument vector for a clip extraction. The
// processor acts as the seek-capable download backend so only the requested
// time range of the remote stream is fetched; the range is handed to it as
// input options. No shell is ever involved.
func (b Builder) ClipArgs(req Request, processorPath string) []string {
	args := []string{
		"--newline",
		"--no-playlist",
		"--downloader", "ffmpeg",
		"--downloader-args", "ffmpeg_i:-ss " + formatSeconds(req.StartSeconds) + " -to " + formatSeconds(req.EndSeconds),
		"--ffmpeg-location", processorPath,
		"-f", req.FormatID + "+bestaudio/best",
		"--merge-output-format", b.Container,
	}
	if b.NeedsReencode(req.SourceCodec) {
		args = append(args, "--postprocessor-args", "ffmpeg:-c:v "+b.VideoCodec+" -c:a "+b.AudioCodec)
	}
	args = append(args, req.Credentials.Args()...)
	args = append(args, "-o", req.OutputPath, req.URL)
	return args
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
