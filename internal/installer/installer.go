// Package installer downloads managed copies of the external tools,
// extracts them from release archives when needed, and installs them
// atomically under the managed binary directory.
package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"

	"clipforge/internal/config"
	"clipforge/internal/fileutil"
	"clipforge/internal/logging"
	"clipforge/internal/notify"
	"clipforge/internal/state"
	"clipforge/internal/toolchain"
)

var (
	// ErrDownload marks a failure to fetch the release payload.
	ErrDownload = errors.New("download failed")
	// ErrExtraction marks a failure to unpack the release archive or to
	// find the tool binary inside it.
	ErrExtraction = errors.New("archive extraction failed")
	// ErrVerification marks a freshly installed binary that did not report
	// a usable version. Unlike routine status checks, this is fatal.
	ErrVerification = errors.New("installed binary failed verification")
)

// Installer drives the download-extract-install-verify pipeline for managed
// tool copies.
type Installer struct {
	cfg      *config.Config
	store    *state.Store
	manager  *toolchain.Manager
	logger   *slog.Logger
	notifier notify.Service
	client   *http.Client
}

// Option adjusts Installer construction.
type Option func(*Installer)

// WithHTTPClient replaces the download client.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Installer) {
		i.client = client
	}
}

// WithNotifier replaces the notification service.
func WithNotifier(notifier notify.Service) Option {
	return func(i *Installer) {
		i.notifier = notifier
	}
}

// New builds an Installer. The store may be nil, in which case no source
// preference is persisted after installs.
func New(cfg *config.Config, store *state.Store, manager *toolchain.Manager, logger *slog.Logger, opts ...Option) *Installer {
	inst := &Installer{
		cfg:      cfg,
		store:    store,
		manager:  manager,
		logger:   logging.NewComponentLogger(logger, "installer"),
		notifier: notify.NewService(cfg),
		client:   &http.Client{},
	}
	for _, opt := range opts {
		opt(inst)
	}
	return inst
}

// Install downloads and installs a managed copy of the tool, replacing any
// existing managed copy. On success the managed source becomes the
// persisted preference and the returned status is the installed one.
func (i *Installer) Install(ctx context.Context, kind toolchain.Kind) (toolchain.Status, error) {
	desc := toolchain.DescriptorFor(kind)
	managedDir := i.cfg.ManagedBinDir()
	if err := os.MkdirAll(managedDir, 0o755); err != nil {
		return i.fail(ctx, kind, fmt.Errorf("create managed directory: %w", err))
	}

	lock := flock.New(filepath.Join(managedDir, ".install-"+string(kind)+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return i.fail(ctx, kind, fmt.Errorf("acquire install lock: %w", err))
	}
	if !locked {
		// Another install of the same tool owns the lock; leave its
		// published status untouched.
		return toolchain.Status{}, fmt.Errorf("another install of %s is already in progress", desc.BinaryName)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	started := time.Now()
	i.manager.SetStatus(toolchain.Status{Kind: kind, Phase: toolchain.PhaseDownloading})
	// The download will supersede whatever the cache describes.
	i.manager.InvalidateVersion(ctx, kind)

	workDir, err := os.MkdirTemp(i.cfg.Paths.DataDir, "install-"+string(kind)+"-*")
	if err != nil {
		return i.fail(ctx, kind, fmt.Errorf("create work directory: %w", err))
	}
	defer func() {
		_ = os.RemoveAll(workDir)
	}()

	url := i.downloadURL(kind)
	i.logger.Info("downloading tool",
		logging.String(logging.FieldTool, desc.BinaryName),
		logging.String("url", url),
	)

	downloadCtx := ctx
	if timeout := time.Duration(i.cfg.Tools.DownloadTimeout) * time.Second; timeout > 0 {
		var cancel context.CancelFunc
		downloadCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	payloadPath, err := i.download(downloadCtx, url, workDir, i.progressFunc(kind))
	if err != nil {
		return i.fail(ctx, kind, fmt.Errorf("%w: %w", ErrDownload, err))
	}

	binaryPath := payloadPath
	if format := archiveFormatFor(filepath.Base(payloadPath)); format != formatNone {
		binaryPath, err = extractBinary(payloadPath, format, desc.BinaryName, workDir)
		if err != nil {
			return i.fail(ctx, kind, fmt.Errorf("%w: %w", ErrExtraction, err))
		}
	}

	target := filepath.Join(managedDir, desc.BinaryName)
	if err := fileutil.ReplaceFile(binaryPath, target, 0o755); err != nil {
		return i.fail(ctx, kind, fmt.Errorf("install binary: %w", err))
	}
	clearQuarantine(target)

	version, ok := i.manager.VerifyVersion(ctx, kind, target)
	if !ok {
		// A managed copy that cannot report a version must not be left
		// looking installed.
		_ = os.Remove(target)
		return i.fail(ctx, kind, fmt.Errorf("%w: %s did not report a version", ErrVerification, target))
	}

	if i.store != nil {
		if err := i.store.SetPreference(ctx, string(kind), string(toolchain.SourceManaged)); err != nil {
			i.logger.Warn("failed to persist source preference",
				logging.String(logging.FieldTool, desc.BinaryName),
				logging.Error(err),
			)
		}
	}

	status := toolchain.Status{
		Kind:    kind,
		Phase:   toolchain.PhaseInstalled,
		Version: version,
		Source:  toolchain.SourceManaged,
		Path:    target,
	}
	i.manager.SetStatus(status)
	i.logger.Info("tool installed",
		logging.String(logging.FieldTool, desc.BinaryName),
		logging.String("version", version),
		logging.String("path", target),
		logging.Duration("elapsed", time.Since(started)),
	)
	if err := i.notifier.NotifyInstallCompleted(ctx, desc.BinaryName, version); err != nil {
		i.logger.Warn("install notification failed", logging.Error(err))
	}
	return status, nil
}

// InstallAll installs every tool concurrently. Each install proceeds
// independently; the returned error aggregates any failures.
func (i *Installer) InstallAll(ctx context.Context) error {
	kinds := toolchain.Kinds()
	errs := make([]error, len(kinds))
	var wg sync.WaitGroup
	for idx, kind := range kinds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := i.Install(ctx, kind); err != nil {
				errs[idx] = fmt.Errorf("%s: %w", kind, err)
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (i *Installer) downloadURL(kind toolchain.Kind) string {
	switch kind {
	case toolchain.KindProcessor:
		return i.cfg.Tools.ProcessorDownloadURL
	default:
		return i.cfg.Tools.FetcherDownloadURL
	}
}

// progressFunc converts byte counts into downloading statuses. With an
// unknown total only the byte count is reported and the fraction stays
// zero.
func (i *Installer) progressFunc(kind toolchain.Kind) func(read, total int64) {
	return func(read, total int64) {
		status := toolchain.Status{Kind: kind, Phase: toolchain.PhaseDownloading}
		if total > 0 {
			status.Progress = math.Min(float64(read)/float64(total), 1)
			status.Message = fmt.Sprintf("%s / %s", humanize.Bytes(uint64(read)), humanize.Bytes(uint64(total)))
		} else {
			status.Message = fmt.Sprintf("%s downloaded", humanize.Bytes(uint64(read)))
		}
		i.manager.SetStatus(status)
	}
}

func (i *Installer) fail(ctx context.Context, kind toolchain.Kind, err error) (toolchain.Status, error) {
	desc := toolchain.DescriptorFor(kind)
	i.logger.Error("install failed",
		logging.String(logging.FieldTool, desc.BinaryName),
		logging.Error(err),
	)
	status := toolchain.Status{Kind: kind, Phase: toolchain.PhaseError, Message: err.Error()}
	i.manager.SetStatus(status)
	if nerr := i.notifier.NotifyInstallFailed(ctx, desc.BinaryName, err); nerr != nil {
		i.logger.Warn("failure notification failed", logging.Error(nerr))
	}
	return status, err
}
