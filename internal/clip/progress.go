package clip

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// EventKind identifies which stage of a clip job a progress line reports.
type EventKind int

const (
	// EventDownload carries a fractional download percentage.
	EventDownload EventKind = iota
	// EventEncode marks post-processing activity. The processor reports
	// frames and elapsed time but no total, so there is no percentage.
	EventEncode
	// EventMerge marks the final stream merge announcement.
	EventMerge
)

// ProgressEvent is one recognized progress line. Percent is only meaningful
// for EventDownload.
type ProgressEvent struct {
	Kind    EventKind
	Percent float64
}

var (
	downloadPattern = regexp.MustCompile(`\[download\]\s+([0-9.]+)%`)
	framePattern    = regexp.MustCompile(`frame=\s*\d+`)
	timePattern     = regexp.MustCompile(`time=\s*[0-9:.]+`)
)

// ParseProgressLine recognizes the three progress shapes the tools emit:
// a download percentage, a processor status line carrying both a frame
// counter and an elapsed-time token, and the merge announcement. Anything
// else is not an event.
func ParseProgressLine(line string) (ProgressEvent, bool) {
	if m := downloadPattern.FindStringSubmatch(line); m != nil {
		if percent, err := strconv.ParseFloat(m[1], 64); err == nil {
			return ProgressEvent{Kind: EventDownload, Percent: percent}, true
		}
	}
	if framePattern.MatchString(line) && timePattern.MatchString(line) {
		return ProgressEvent{Kind: EventEncode}, true
	}
	if strings.Contains(line, "[Merger]") || strings.Contains(line, "Merging formats") {
		return ProgressEvent{Kind: EventMerge}, true
	}
	return ProgressEvent{}, false
}

// Stage weights for the combined fraction. Downloading dominates the wall
// clock, so it owns most of the range; encode and merge are short fixed
// marks near the end.
const (
	downloadWeight = 0.80
	encodeMark     = 0.85
	mergeMark      = 0.95
)

// Tracker folds progress events into a single monotonic completion
// fraction in [0, 1]. Stages can repeat or arrive out of order when the
// fetcher retries a stream; the fraction never moves backwards.
type Tracker struct {
	fraction float64
}

// Observe folds one event into the combined fraction and returns it.
func (t *Tracker) Observe(event ProgressEvent) float64 {
	var target float64
	switch event.Kind {
	case EventDownload:
		target = downloadWeight * math.Min(event.Percent, 100) / 100
	case EventEncode:
		target = encodeMark
	case EventMerge:
		target = mergeMark
	}
	if target > t.fraction {
		t.fraction = target
	}
	return t.fraction
}

// Complete pins the fraction to 1. Called once the process has exited
// successfully and the output file exists.
func (t *Tracker) Complete() float64 {
	t.fraction = 1
	return t.fraction
}
