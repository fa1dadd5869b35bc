package toolchain

import (
	"context"
	"os"

	"clipforge/internal/logging"
	"clipforge/internal/state"
)

// VerifyVersion reports the version of the binary at path. Results are
// cached against the path and its modification time, so repeated checks of
// an unchanged binary never spawn a process. A probe failure means "no
// version is known", not that the tool is broken; callers that need install
// verification treat an empty result as fatal themselves.
func (m *Manager) VerifyVersion(ctx context.Context, kind Kind, path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	mtimeNS := info.ModTime().UnixNano()

	if m.store != nil {
		entry, ok, err := m.store.VersionEntry(ctx, string(kind))
		if err != nil {
			m.logger.Warn("failed to read version cache",
				logging.String(logging.FieldTool, string(kind)),
				logging.Error(err),
			)
		} else if ok && entry.Path == path && entry.ModTimeNS == mtimeNS {
			return entry.Version, true
		}
	}

	desc := DescriptorFor(kind)
	capture, err := m.runner.RunCapture(ctx, path, desc.VersionArgs)
	if err != nil || capture.ExitCode != 0 {
		return "", false
	}
	version := desc.ParseVersion(string(capture.Stdout))
	if version == "" {
		return "", false
	}

	if m.store != nil {
		entry := state.VersionEntry{Path: path, Version: version, ModTimeNS: mtimeNS}
		if err := m.store.SaveVersionEntry(ctx, string(kind), entry); err != nil {
			m.logger.Warn("failed to save version cache",
				logging.String(logging.FieldTool, string(kind)),
				logging.Error(err),
			)
		}
	}
	return version, true
}

// InvalidateVersion drops the cached version for a kind. The installer calls
// this after replacing a binary so the next check probes the new copy.
func (m *Manager) InvalidateVersion(ctx context.Context, kind Kind) {
	if m.store == nil {
		return
	}
	if err := m.store.ClearVersionEntry(ctx, string(kind)); err != nil {
		m.logger.Warn("failed to clear version cache",
			logging.String(logging.FieldTool, string(kind)),
			logging.Error(err),
		)
	}
}
