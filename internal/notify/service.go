package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipforge/internal/config"
)

const userAgent = "ClipForge-Go/0.1.0"

// Service defines the notification surface exposed to the installer and the
// clip pipeline.
type Service interface {
	NotifyInstallCompleted(ctx context.Context, tool, version string) error
	NotifyInstallFailed(ctx context.Context, tool string, err error) error
	NotifyClipCompleted(ctx context.Context, title, outputFile string) error
	NotifyClipFailed(ctx context.Context, title string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		installs: cfg.Notifications.Installs,
		clips:    cfg.Notifications.Clips,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	installs bool
	clips    bool
	errors   bool
}

func (n *ntfyService) NotifyInstallCompleted(ctx context.Context, tool, version string) error {
	if !n.installs {
		return nil
	}
	tool = strings.TrimSpace(tool)
	message := fmt.Sprintf("📥 Installed %s", tool)
	if version = strings.TrimSpace(version); version != "" {
		message = fmt.Sprintf("%s %s", message, version)
	}
	data := payload{
		title:   "ClipForge - Tool Installed",
		message: message,
		tags:    []string{"clipforge", "install", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyInstallFailed(ctx context.Context, tool string, err error) error {
	if !n.errors {
		return nil
	}
	data := payload{
		title:    "ClipForge - Install Failed",
		message:  fmt.Sprintf("❌ Installing %s failed: %s", strings.TrimSpace(tool), errorText(err)),
		tags:     []string{"clipforge", "install", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyClipCompleted(ctx context.Context, title, outputFile string) error {
	if !n.clips {
		return nil
	}
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("✅ Clip ready: %s", title)
	if outputFile = strings.TrimSpace(outputFile); outputFile != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, outputFile)
	}
	data := payload{
		title:   "ClipForge - Clip Ready",
		message: message,
		tags:    []string{"clipforge", "clip", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyClipFailed(ctx context.Context, title string, err error) error {
	if !n.errors {
		return nil
	}
	data := payload{
		title:    "ClipForge - Clip Failed",
		message:  fmt.Sprintf("❌ Clip failed: %s: %s", strings.TrimSpace(title), errorText(err)),
		tags:     []string{"clipforge", "clip", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "ClipForge - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"clipforge", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func errorText(err error) string {
	if err == nil {
		return "unknown"
	}
	return strings.TrimSpace(err.Error())
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyInstallCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyInstallFailed(context.Context, string, error) error     { return nil }
func (noopService) NotifyClipCompleted(context.Context, string, string) error    { return nil }
func (noopService) NotifyClipFailed(context.Context, string, error) error        { return nil }
func (noopService) TestNotification(context.Context) error                       { return nil }
