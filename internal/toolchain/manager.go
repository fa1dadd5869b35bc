package toolchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/procexec"
	"clipforge/internal/state"
)

// ErrNotReady is returned when a tool is asked for before it has a selected,
// verified binary.
var ErrNotReady = errors.New("tool is not ready")

// Runner executes a binary and captures its output. It exists so tests can
// substitute canned results for real process spawns.
type Runner interface {
	RunCapture(ctx context.Context, binary string, args []string) (procexec.Capture, error)
}

type captureRunner struct{}

func (captureRunner) RunCapture(ctx context.Context, binary string, args []string) (procexec.Capture, error) {
	return procexec.New().RunCapture(ctx, binary, args)
}

// Manager resolves tool binaries, verifies their versions, and publishes
// status changes to subscribers.
type Manager struct {
	cfg    *config.Config
	store  *state.Store
	logger *slog.Logger
	runner Runner

	mu           sync.Mutex
	statuses     map[Kind]Status
	observers    map[int]func(Status)
	nextObserver int
}

// Option adjusts Manager construction.
type Option func(*Manager)

// WithRunner replaces the process runner used for version probes.
func WithRunner(runner Runner) Option {
	return func(m *Manager) {
		m.runner = runner
	}
}

// NewManager builds a Manager. The store may be nil, in which case
// preferences and version caching are disabled.
func NewManager(cfg *config.Config, store *state.Store, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg,
		store:     store,
		logger:    logging.NewComponentLogger(logger, "toolchain"),
		runner:    captureRunner{},
		statuses:  make(map[Kind]Status, len(allKinds)),
		observers: make(map[int]func(Status)),
	}
	for _, kind := range allKinds {
		m.statuses[kind] = Status{Kind: kind, Phase: PhaseNotInstalled}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers an observer for status changes and returns a function
// that removes it. Observers are invoked outside the manager lock, in the
// goroutine that caused the change.
func (m *Manager) Subscribe(fn func(Status)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextObserver
	m.nextObserver++
	m.observers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.observers, id)
	}
}

// SetStatus records a status and notifies subscribers. The installer uses
// this to publish download progress.
func (m *Manager) SetStatus(status Status) {
	m.mu.Lock()
	m.statuses[status.Kind] = status
	observers := make([]func(Status), 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	m.mu.Unlock()

	for _, fn := range observers {
		fn(status)
	}
}

// Status returns the last recorded status for a kind.
func (m *Manager) Status(kind Kind) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[kind]
}

// Statuses returns the last recorded status for every kind in display order.
func (m *Manager) Statuses() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Status, 0, len(allKinds))
	for _, kind := range allKinds {
		out = append(out, m.statuses[kind])
	}
	return out
}

// CheckStatus re-resolves where a tool comes from and records the result.
// Resolution honors the persisted preference first, then a managed copy,
// then a system copy, which is reported as found but not ready until
// selected.
func (m *Manager) CheckStatus(ctx context.Context, kind Kind) Status {
	m.SetStatus(Status{Kind: kind, Phase: PhaseChecking})

	var pref string
	if m.store != nil {
		var err error
		pref, err = m.store.Preference(ctx, string(kind))
		if err != nil {
			m.logger.Warn("failed to read source preference",
				logging.String(logging.FieldTool, string(kind)),
				logging.Error(err),
			)
		}
	}

	managed := m.managedExists(kind)
	systemPath := m.discoverSystem(ctx, kind)
	if systemPath != "" && m.store != nil {
		if err := m.store.SetLastSystemPath(ctx, string(kind), systemPath); err != nil {
			m.logger.Warn("failed to record system path",
				logging.String(logging.FieldTool, string(kind)),
				logging.Error(err),
			)
		}
	}

	var status Status
	switch {
	case pref == string(SourceSystem) && systemPath != "":
		if version, ok := m.VerifyVersion(ctx, kind, systemPath); ok {
			status = Status{Kind: kind, Phase: PhaseInstalled, Version: version, Source: SourceSystem, Path: systemPath}
		} else {
			// The preferred system copy no longer answers a version
			// query. Treat the preference as stale rather than failing.
			status = Status{Kind: kind, Phase: PhaseNotInstalled}
		}
	case managed:
		target := managedPath(m.cfg, kind)
		if version, ok := m.VerifyVersion(ctx, kind, target); ok {
			status = Status{Kind: kind, Phase: PhaseInstalled, Version: version, Source: SourceManaged, Path: target}
		} else {
			// A managed copy is this tool's own artifact; one that cannot
			// report a version is broken, not merely unknown.
			status = Status{Kind: kind, Phase: PhaseError, Message: fmt.Sprintf("managed copy of %s failed verification", DescriptorFor(kind).BinaryName)}
		}
	case systemPath != "":
		if version, ok := m.VerifyVersion(ctx, kind, systemPath); ok {
			status = Status{Kind: kind, Phase: PhaseFoundInPath, Version: version, Source: SourceSystem, Path: systemPath}
		} else {
			status = Status{Kind: kind, Phase: PhaseNotInstalled}
		}
	default:
		status = Status{Kind: kind, Phase: PhaseNotInstalled}
	}

	m.SetStatus(status)
	return status
}

// CheckAll refreshes every tool and returns the results in display order.
func (m *Manager) CheckAll(ctx context.Context) []Status {
	out := make([]Status, 0, len(allKinds))
	for _, kind := range allKinds {
		out = append(out, m.CheckStatus(ctx, kind))
	}
	return out
}

// SelectSource persists which copy of a tool to use and re-resolves its
// status. Selecting a source whose binary is absent is an error.
func (m *Manager) SelectSource(ctx context.Context, kind Kind, source Source) (Status, error) {
	switch source {
	case SourceManaged:
		if !m.managedExists(kind) {
			return Status{}, fmt.Errorf("no managed copy of %s is installed", DescriptorFor(kind).BinaryName)
		}
	case SourceSystem:
		if m.discoverSystem(ctx, kind) == "" {
			return Status{}, fmt.Errorf("no system copy of %s was found", DescriptorFor(kind).BinaryName)
		}
	default:
		return Status{}, fmt.Errorf("unknown source %q", source)
	}

	if m.store != nil {
		if err := m.store.SetPreference(ctx, string(kind), string(source)); err != nil {
			return Status{}, fmt.Errorf("persist source preference: %w", err)
		}
	}
	return m.CheckStatus(ctx, kind), nil
}

// ResolvedPath returns the binary path for a ready tool. Callers must check
// status first if they want to react to the specific phase.
func (m *Manager) ResolvedPath(kind Kind) (string, error) {
	status := m.Status(kind)
	if !status.Ready() {
		return "", fmt.Errorf("%w: %s is %s", ErrNotReady, DescriptorFor(kind).BinaryName, status.Phase)
	}
	return status.Path, nil
}
