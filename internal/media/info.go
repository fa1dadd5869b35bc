// Package media models the metadata document the fetcher emits for a video
// and the format-selection rules derived from it.
package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMetadataParse marks a metadata document that could not be decoded.
var ErrMetadataParse = errors.New("metadata parse failed")

// VideoInfo is the fetcher's description of a single video.
type VideoInfo struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	DurationSeconds float64  `json:"duration"`
	Thumbnail       string   `json:"thumbnail"`
	Formats         []Format `json:"formats"`
}

// Format describes one downloadable rendition of a video. Numeric fields
// are zero when the provider omits them.
type Format struct {
	ID             string  `json:"format_id"`
	VideoCodec     string  `json:"vcodec"`
	AudioCodec     string  `json:"acodec"`
	VideoExt       string  `json:"video_ext"`
	Protocol       string  `json:"protocol"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	FrameRate      float64 `json:"fps"`
	Bitrate        float64 `json:"tbr"`
	FileSize       int64   `json:"filesize"`
	FileSizeApprox int64   `json:"filesize_approx"`
	QualityNote    string  `json:"format_note"`
}

// ParseVideoInfo decodes one metadata document.
func ParseVideoInfo(data []byte) (*VideoInfo, error) {
	var info VideoInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataParse, err)
	}
	if strings.TrimSpace(info.ID) == "" {
		return nil, fmt.Errorf("%w: document has no video id", ErrMetadataParse)
	}
	return &info, nil
}

// HasVideo reports whether the format carries a video stream. Providers
// disagree on schema: most publish a codec tag, some only mark the video
// container extension, so both are consulted.
func (f Format) HasVideo() bool {
	if codec := strings.TrimSpace(f.VideoCodec); codec != "" {
		return codec != "none"
	}
	ext := strings.TrimSpace(f.VideoExt)
	return ext != "" && ext != "none"
}

// SeekableTransport reports whether the format is delivered over a
// byte-range-seekable single stream. Segmented transports cannot serve a
// time-bounded extract without downloading every segment.
func (f Format) SeekableTransport() bool {
	protocol := strings.ToLower(strings.TrimSpace(f.Protocol))
	for _, marker := range []string{"m3u8", "dash", "frag", "ism", "f4m"} {
		if strings.Contains(protocol, marker) {
			return false
		}
	}
	return true
}

// ClipCandidates returns the formats usable for time-range extraction:
// those with a video stream on a seekable transport.
func (v *VideoInfo) ClipCandidates() []Format {
	var out []Format
	for _, f := range v.Formats {
		if f.HasVideo() && f.SeekableTransport() {
			out = append(out, f)
		}
	}
	return out
}

// FormatByID returns the format with the given identifier.
func (v *VideoInfo) FormatByID(id string) (Format, bool) {
	for _, f := range v.Formats {
		if f.ID == id {
			return f, true
		}
	}
	return Format{}, false
}
