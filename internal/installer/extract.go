package installer

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

type archiveFormat int

const (
	formatNone archiveFormat = iota
	formatZip
	formatTarGz
	formatTarXz
)

func archiveFormatFor(name string) archiveFormat {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return formatZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return formatTarGz
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return formatTarXz
	}
	return formatNone
}

// extractBinary unpacks the archive under workDir and returns the path of
// the entry whose base name matches binaryName exactly. Release archives
// nest the binary inside a versioned directory, so the whole tree is
// searched.
func extractBinary(archivePath string, format archiveFormat, binaryName, workDir string) (string, error) {
	extractDir := filepath.Join(workDir, "extracted")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", fmt.Errorf("create extraction directory: %w", err)
	}

	var err error
	switch format {
	case formatZip:
		err = extractZip(archivePath, extractDir)
	case formatTarGz, formatTarXz:
		err = extractTarball(archivePath, format, extractDir)
	default:
		return "", fmt.Errorf("unsupported archive %s", filepath.Base(archivePath))
	}
	if err != nil {
		return "", err
	}

	return locateBinary(extractDir, binaryName)
}

func extractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		target, err := safeJoin(destDir, file.Name)
		if err != nil {
			return err
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		src, err := file.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", file.Name, err)
		}
		err = writeEntry(target, file.Mode(), src)
		_ = src.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTarball(archivePath string, format archiveFormat, destDir string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	var decompressed io.Reader
	switch format {
	case formatTarGz:
		gz, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		decompressed = gz
	case formatTarXz:
		xzr, err := xz.NewReader(file)
		if err != nil {
			return fmt.Errorf("open xz stream: %w", err)
		}
		decompressed = xzr
	default:
		return fmt.Errorf("not a tarball format")
	}

	reader := tar.NewReader(decompressed)
	for {
		header, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := writeEntry(target, header.FileInfo().Mode().Perm(), reader); err != nil {
				return err
			}
		default:
			// Links and special files are never the tool binary.
		}
	}
}

func writeEntry(target string, mode fs.FileMode, src io.Reader) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(target), err)
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(target), err)
	}
	return out.Close()
}

// safeJoin joins an archive entry name onto base, rejecting entries that
// would escape it.
func safeJoin(base, name string) (string, error) {
	target := filepath.Join(base, filepath.FromSlash(name))
	if target != filepath.Clean(base) && !strings.HasPrefix(target, filepath.Clean(base)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}
	return target, nil
}

// locateBinary walks the extracted tree for a regular file named exactly
// binaryName.
func locateBinary(root, binaryName string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if found != "" || entry.IsDir() || entry.Name() != binaryName {
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		found = path
		return fs.SkipAll
	})
	if err != nil {
		return "", fmt.Errorf("scan extracted files: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("binary %q not found in archive", binaryName)
	}
	return found, nil
}
