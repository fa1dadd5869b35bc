package installer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"
)

const userAgent = "ClipForge-Go/0.1.0"

// download streams the release payload into dir and returns the written
// file path. The file keeps the name from the final request URL so archive
// detection sees the real extension even after redirects.
func (i *Installer) download(ctx context.Context, url, dir string, onProgress func(read, total int64)) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := i.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s from %s", resp.Status, resp.Request.URL.Host)
	}

	name := path.Base(resp.Request.URL.Path)
	if name == "" || name == "." || name == "/" {
		name = "download"
	}
	target := filepath.Join(dir, name)

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}
	defer out.Close()

	progress := &progressWriter{total: resp.ContentLength, onProgress: onProgress}
	if _, err := io.Copy(io.MultiWriter(out, progress), resp.Body); err != nil {
		return "", fmt.Errorf("read payload: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	progress.flush()
	return target, nil
}

// progressWriter reports byte counts as they stream through, rate limited
// so status subscribers are not flooded.
type progressWriter struct {
	total      int64
	read       int64
	lastEmit   time.Time
	onProgress func(read, total int64)
}

const progressInterval = 200 * time.Millisecond

func (w *progressWriter) Write(p []byte) (int, error) {
	w.read += int64(len(p))
	if w.onProgress == nil {
		return len(p), nil
	}
	if now := time.Now(); now.Sub(w.lastEmit) >= progressInterval {
		w.lastEmit = now
		w.onProgress(w.read, w.total)
	}
	return len(p), nil
}

// flush emits the final byte count regardless of rate limiting.
func (w *progressWriter) flush() {
	if w.onProgress != nil {
		w.onProgress(w.read, w.total)
	}
}
