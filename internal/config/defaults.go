package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultLogDir               = "~/.local/share/clipforge/logs"
	defaultOutputDir            = "~/clips"
	defaultFetcherDownloadURL   = "https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp"
	defaultProcessorDownloadURL = "https://johnvansickle.com/ffmpeg/releases/ffmpeg-release-amd64-static.tar.xz"
	defaultDownloadTimeout      = 600
	defaultClipContainer        = "mp4"
	defaultClipVideoCodec       = "libx264"
	defaultClipAudioCodec       = "aac"
	defaultNotifyTimeout        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir(),
			LogDir:    defaultLogDir,
			OutputDir: defaultOutputDir,
		},
		Tools: Tools{
			FetcherDownloadURL:   defaultFetcherDownloadURL,
			ProcessorDownloadURL: defaultProcessorDownloadURL,
			DownloadTimeout:      defaultDownloadTimeout,
		},
		Clip: Clip{
			Container:  defaultClipContainer,
			VideoCodec: defaultClipVideoCodec,
			AudioCodec: defaultClipAudioCodec,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Installs:       true,
			Clips:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultDataDir() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "clipforge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.local/share/clipforge"
	}
	return filepath.Join(home, ".local", "share", "clipforge")
}
