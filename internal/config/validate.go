package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateClip(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTools() error {
	if c.Tools.FetcherDownloadURL == "" {
		return errors.New("tools.fetcher_download_url must be set")
	}
	if c.Tools.ProcessorDownloadURL == "" {
		return errors.New("tools.processor_download_url must be set")
	}
	if c.Tools.DownloadTimeout <= 0 {
		return errors.New("tools.download_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateClip() error {
	switch c.Clip.Container {
	case "mp4", "mkv", "webm", "mov":
	default:
		return fmt.Errorf("clip.container: unsupported container %q", c.Clip.Container)
	}
	if c.Clip.VideoCodec == "" {
		return errors.New("clip.video_codec must be set")
	}
	if c.Clip.AudioCodec == "" {
		return errors.New("clip.audio_codec must be set")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
