package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTools(); err != nil {
		return err
	}
	c.normalizeClip()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir()
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() error {
	c.Tools.FetcherDownloadURL = strings.TrimSpace(c.Tools.FetcherDownloadURL)
	if c.Tools.FetcherDownloadURL == "" {
		c.Tools.FetcherDownloadURL = defaultFetcherDownloadURL
	}
	c.Tools.ProcessorDownloadURL = strings.TrimSpace(c.Tools.ProcessorDownloadURL)
	if c.Tools.ProcessorDownloadURL == "" {
		c.Tools.ProcessorDownloadURL = defaultProcessorDownloadURL
	}
	if c.Tools.DownloadTimeout <= 0 {
		c.Tools.DownloadTimeout = defaultDownloadTimeout
	}
	if len(c.Tools.SearchDirs) > 0 {
		dirs := make([]string, 0, len(c.Tools.SearchDirs))
		seen := make(map[string]struct{}, len(c.Tools.SearchDirs))
		for _, dir := range c.Tools.SearchDirs {
			trimmed := strings.TrimSpace(dir)
			if trimmed == "" {
				continue
			}
			expanded, err := expandPath(trimmed)
			if err != nil {
				return fmt.Errorf("tools.search_dirs: %w", err)
			}
			if _, exists := seen[expanded]; exists {
				continue
			}
			seen[expanded] = struct{}{}
			dirs = append(dirs, expanded)
		}
		c.Tools.SearchDirs = dirs
	}
	return nil
}

func (c *Config) normalizeClip() {
	c.Clip.Container = strings.ToLower(strings.TrimSpace(c.Clip.Container))
	if c.Clip.Container == "" {
		c.Clip.Container = defaultClipContainer
	}
	c.Clip.VideoCodec = strings.TrimSpace(c.Clip.VideoCodec)
	if c.Clip.VideoCodec == "" {
		c.Clip.VideoCodec = defaultClipVideoCodec
	}
	c.Clip.AudioCodec = strings.TrimSpace(c.Clip.AudioCodec)
	if c.Clip.AudioCodec == "" {
		c.Clip.AudioCodec = defaultClipAudioCodec
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("CLIPFORGE_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
