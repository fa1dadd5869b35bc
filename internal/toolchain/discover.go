package toolchain

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"clipforge/internal/config"
)

// managedPath returns where the managed copy of a tool lives, whether or not
// it exists yet.
func managedPath(cfg *config.Config, kind Kind) string {
	return filepath.Join(cfg.ManagedBinDir(), DescriptorFor(kind).BinaryName)
}

// discoverSystem looks for a usable system copy of the tool outside the
// managed directory. Configured search directories win over PATH, and a
// previously recorded location is tried last so a tool that fell off PATH is
// still found.
func (m *Manager) discoverSystem(ctx context.Context, kind Kind) string {
	desc := DescriptorFor(kind)
	managedDir := m.cfg.ManagedBinDir()

	for _, dir := range m.cfg.Tools.SearchDirs {
		candidate := filepath.Join(dir, desc.BinaryName)
		if isExecutableFile(candidate) && filepath.Dir(candidate) != managedDir {
			return candidate
		}
	}

	if found, err := exec.LookPath(desc.BinaryName); err == nil {
		if abs, err := filepath.Abs(found); err == nil {
			found = abs
		}
		if filepath.Dir(found) != managedDir {
			return found
		}
	}

	if m.store != nil {
		last, err := m.store.LastSystemPath(ctx, string(kind))
		if err == nil && last != "" && isExecutableFile(last) {
			return last
		}
	}
	return ""
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

// managedExists reports whether an executable managed copy is present.
func (m *Manager) managedExists(kind Kind) bool {
	return isExecutableFile(managedPath(m.cfg, kind))
}
