package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"clipforge/internal/config"
	"clipforge/internal/fileutil"
	"clipforge/internal/logging"
	"clipforge/internal/notify"
	"clipforge/internal/procexec"
	"clipforge/internal/toolchain"
)

// ErrClipCreation marks a clip job that ran but did not produce the
// requested output. The wrapped text carries the tool's own error line
// when one was seen.
var ErrClipCreation = errors.New("clip creation failed")

// Progress is one progress update for a running job.
type Progress struct {
	JobID    string
	Fraction float64
}

// Result describes a finished clip job.
type Result struct {
	JobID      string
	OutputPath string
}

// Service runs clip jobs. Each job gets its own executor, so jobs can be
// cancelled individually and never share a child process.
type Service struct {
	cfg      *config.Config
	manager  *toolchain.Manager
	logger   *slog.Logger
	notifier notify.Service

	mu   sync.Mutex
	jobs map[string]*procexec.Executor
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier overrides the notification service.
func WithNotifier(notifier notify.Service) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// NewService creates a clip service backed by the given tool manager.
func NewService(cfg *config.Config, manager *toolchain.Manager, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		manager:  manager,
		logger:   logging.NewComponentLogger(logger, "clip"),
		notifier: notify.NewService(cfg),
		jobs:     make(map[string]*procexec.Executor),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create runs one clip job to completion and blocks until the process has
// exited and the output file is in place. Both tools must be ready; the
// fetcher is the child process and drives the processor itself. Progress
// updates are delivered on the calling goroutine, starting with a zero
// fraction that carries the job ID.
func (s *Service) Create(ctx context.Context, req Request, onProgress func(Progress)) (Result, error) {
	fetcherPath, err := s.manager.ResolvedPath(toolchain.KindFetcher)
	if err != nil {
		return Result{}, err
	}
	processorPath, err := s.manager.ResolvedPath(toolchain.KindProcessor)
	if err != nil {
		return Result{}, err
	}

	jobID := uuid.NewString()
	result := Result{JobID: jobID, OutputPath: req.OutputPath}

	// The fetcher writes into a scratch directory so a failed job never
	// leaves partial files at the requested output path.
	workDir, err := os.MkdirTemp(s.cfg.Paths.DataDir, "clip-*")
	if err != nil {
		return result, fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	scratch := req
	scratch.OutputPath = filepath.Join(workDir, filepath.Base(req.OutputPath))
	args := NewBuilder(s.cfg).ClipArgs(scratch, processorPath)

	executor := procexec.New()
	s.mu.Lock()
	s.jobs[jobID] = executor
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.jobs, jobID)
		s.mu.Unlock()
	}()

	s.logger.Info("clip started",
		logging.String(logging.FieldJobID, jobID),
		logging.String("url", req.URL),
		logging.String("format", req.FormatID),
		logging.Float64("start", req.StartSeconds),
		logging.Float64("end", req.EndSeconds),
		logging.String("output", req.OutputPath),
	)

	tracker := &Tracker{}
	emit := func(fraction float64) {
		if onProgress != nil {
			onProgress(Progress{JobID: jobID, Fraction: fraction})
		}
	}
	emit(0)

	var lastLine, lastError string
	exit, err := executor.Run(ctx, fetcherPath, args, func(line string) {
		lastLine = line
		if strings.Contains(line, "ERROR") {
			lastError = line
		}
		if event, ok := ParseProgressLine(line); ok {
			emit(tracker.Observe(event))
		}
	})
	if err != nil {
		if errors.Is(err, procexec.ErrCancelled) {
			s.logger.Info("clip cancelled", logging.String(logging.FieldJobID, jobID))
			return result, err
		}
		return s.fail(ctx, req, jobID, fmt.Errorf("%w: %w", ErrClipCreation, err))
	}
	if exit != 0 {
		reason := strings.TrimSpace(lastError)
		if reason == "" {
			reason = strings.TrimSpace(lastLine)
		}
		if reason == "" {
			reason = "fetcher produced no error output"
		}
		return s.fail(ctx, req, jobID, fmt.Errorf("%w: %s: %w", ErrClipCreation, reason, &procexec.ExitError{Code: exit}))
	}
	if _, err := os.Stat(scratch.OutputPath); err != nil {
		return s.fail(ctx, req, jobID, fmt.Errorf("%w: output file was not created", ErrClipCreation))
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return s.fail(ctx, req, jobID, fmt.Errorf("%w: %w", ErrClipCreation, err))
	}
	if err := fileutil.MoveFile(scratch.OutputPath, req.OutputPath); err != nil {
		return s.fail(ctx, req, jobID, fmt.Errorf("%w: %w", ErrClipCreation, err))
	}
	emit(tracker.Complete())

	s.logger.Info("clip completed",
		logging.String(logging.FieldJobID, jobID),
		logging.String("output", req.OutputPath),
	)
	if nerr := s.notifier.NotifyClipCompleted(ctx, s.displayTitle(req), req.OutputPath); nerr != nil {
		s.logger.Warn("clip notification failed", logging.Error(nerr))
	}
	return result, nil
}

// Cancel kills the named job's process if it is still running. Unknown job
// IDs are ignored.
func (s *Service) Cancel(jobID string) {
	s.mu.Lock()
	executor := s.jobs[jobID]
	s.mu.Unlock()
	if executor != nil {
		executor.Cancel()
	}
}

func (s *Service) fail(ctx context.Context, req Request, jobID string, err error) (Result, error) {
	s.logger.Error("clip failed",
		logging.String(logging.FieldJobID, jobID),
		logging.Error(err),
	)
	if nerr := s.notifier.NotifyClipFailed(ctx, s.displayTitle(req), err); nerr != nil {
		s.logger.Warn("failure notification failed", logging.Error(nerr))
	}
	return Result{JobID: jobID, OutputPath: req.OutputPath}, err
}

func (s *Service) displayTitle(req Request) string {
	if strings.TrimSpace(req.Title) != "" {
		return req.Title
	}
	return filepath.Base(req.OutputPath)
}
