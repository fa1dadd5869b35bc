package installer_test

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/ulikunitz/xz"

	"clipforge/internal/config"
	"clipforge/internal/installer"
	"clipforge/internal/logging"
	"clipforge/internal/state"
	"clipforge/internal/testsupport"
	"clipforge/internal/toolchain"
)

const (
	fetcherScript   = "#!/bin/sh\necho 2025.03.03\n"
	processorScript = "#!/bin/sh\necho 'ffmpeg version 7.0.2-static https://example.invalid/'\n"
)

func sortedNames(entries map[string]string) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func buildTarGz(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	writeTar(t, gz, entries)
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
	return buf.Bytes()
}

func buildTarXz(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	xzw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("create xz writer: %v", err)
	}
	writeTar(t, xzw, entries)
	if err := xzw.Close(); err != nil {
		t.Fatalf("close xz writer: %v", err)
	}
	return buf.Bytes()
}

func writeTar(t *testing.T, out io.Writer, entries map[string]string) {
	t.Helper()
	tw := tar.NewWriter(out)
	for _, name := range sortedNames(entries) {
		content := entries[name]
		header := &tar.Header{
			Name:     name,
			Mode:     0o755,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatalf("write tar header %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("write tar entry %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
}

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range sortedNames(entries) {
		header := &zip.FileHeader{Name: name, Method: zip.Deflate}
		header.SetMode(0o755)
		w, err := zw.CreateHeader(header)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(entries[name])); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	return buf.Bytes()
}

func serveFiles(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for urlPath, body := range files {
		mux.HandleFunc(urlPath, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(body)
		})
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

type harness struct {
	cfg     *config.Config
	store   *state.Store
	manager *toolchain.Manager
	inst    *installer.Installer
}

func newHarness(t *testing.T, fetcherURL, processorURL string) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithDownloadURLs(fetcherURL, processorURL))
	store := testsupport.MustOpenStore(t, cfg)
	manager := toolchain.NewManager(cfg, store, logging.NewNop())
	return &harness{
		cfg:     cfg,
		store:   store,
		manager: manager,
		inst:    installer.New(cfg, store, manager, logging.NewNop()),
	}
}

func TestInstallRawBinary(t *testing.T) {
	server := serveFiles(t, map[string][]byte{"/yt-dlp": []byte(fetcherScript)})
	h := newHarness(t, server.URL+"/yt-dlp", "")

	var phases []toolchain.Phase
	h.manager.Subscribe(func(s toolchain.Status) {
		phases = append(phases, s.Phase)
	})

	status, err := h.inst.Install(context.Background(), toolchain.KindFetcher)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if status.Phase != toolchain.PhaseInstalled {
		t.Fatalf("phase = %s, want %s", status.Phase, toolchain.PhaseInstalled)
	}
	if status.Version != "2025.03.03" {
		t.Fatalf("version = %q, want 2025.03.03", status.Version)
	}
	if status.Source != toolchain.SourceManaged {
		t.Fatalf("source = %s, want %s", status.Source, toolchain.SourceManaged)
	}

	target := filepath.Join(h.cfg.ManagedBinDir(), "yt-dlp")
	if status.Path != target {
		t.Fatalf("path = %q, want %q", status.Path, target)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("stat installed binary: %v", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Fatalf("installed binary not executable: %o", info.Mode().Perm())
	}

	pref, err := h.store.Preference(context.Background(), string(toolchain.KindFetcher))
	if err != nil {
		t.Fatalf("read preference: %v", err)
	}
	if pref != string(toolchain.SourceManaged) {
		t.Fatalf("preference = %q, want managed", pref)
	}

	if len(phases) < 2 {
		t.Fatalf("expected download and install transitions, got %v", phases)
	}
	if phases[0] != toolchain.PhaseDownloading {
		t.Fatalf("first phase = %s, want %s", phases[0], toolchain.PhaseDownloading)
	}
	if phases[len(phases)-1] != toolchain.PhaseInstalled {
		t.Fatalf("last phase = %s, want %s", phases[len(phases)-1], toolchain.PhaseInstalled)
	}

	path, err := h.manager.ResolvedPath(toolchain.KindFetcher)
	if err != nil {
		t.Fatalf("ResolvedPath after install: %v", err)
	}
	if path != target {
		t.Fatalf("resolved path = %q, want %q", path, target)
	}
}

func TestInstallReportsDownloadProgress(t *testing.T) {
	// Pad the script well past the copy buffer so the download spans
	// several reads. The padding is shell comments, so the installed
	// binary still verifies.
	payload := []byte(fetcherScript + strings.Repeat("# release notes padding\n", 16*1024))
	mux := http.NewServeMux()
	mux.HandleFunc("/yt-dlp", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	h := newHarness(t, server.URL+"/yt-dlp", "")

	var downloads []toolchain.Status
	h.manager.Subscribe(func(s toolchain.Status) {
		if s.Phase == toolchain.PhaseDownloading {
			downloads = append(downloads, s)
		}
	})

	if _, err := h.inst.Install(context.Background(), toolchain.KindFetcher); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if len(downloads) == 0 {
		t.Fatal("no downloading statuses observed")
	}

	fractional := false
	for i, s := range downloads {
		if i > 0 && s.Progress < downloads[i-1].Progress {
			t.Fatalf("download progress moved backwards: %v after %v", s.Progress, downloads[i-1].Progress)
		}
		if s.Progress > 0 && s.Progress < 1 {
			fractional = true
			if !strings.Contains(s.Message, " / ") {
				t.Fatalf("fractional update should carry byte counts, got %q", s.Message)
			}
		}
	}
	if !fractional {
		t.Fatal("expected at least one fractional download update")
	}
	if last := downloads[len(downloads)-1].Progress; last != 1 {
		t.Fatalf("final download fraction = %v, want 1", last)
	}
}

func TestInstallExtractsTarGz(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"ffmpeg-7.0-amd64-static/ffmpeg":    processorScript,
		"ffmpeg-7.0-amd64-static/GPLv3.txt": "license text",
	})
	server := serveFiles(t, map[string][]byte{"/ffmpeg-release.tar.gz": archive})
	h := newHarness(t, "", server.URL+"/ffmpeg-release.tar.gz")

	status, err := h.inst.Install(context.Background(), toolchain.KindProcessor)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if status.Version != "7.0.2" {
		t.Fatalf("version = %q, want 7.0.2", status.Version)
	}
	if _, err := os.Stat(filepath.Join(h.cfg.ManagedBinDir(), "ffmpeg")); err != nil {
		t.Fatalf("stat installed binary: %v", err)
	}
}

func TestInstallExtractsTarXz(t *testing.T) {
	archive := buildTarXz(t, map[string]string{
		"ffmpeg-7.0-amd64-static/ffmpeg": processorScript,
		"ffmpeg-7.0-amd64-static/readme": "notes",
	})
	server := serveFiles(t, map[string][]byte{"/ffmpeg-release.tar.xz": archive})
	h := newHarness(t, "", server.URL+"/ffmpeg-release.tar.xz")

	status, err := h.inst.Install(context.Background(), toolchain.KindProcessor)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if status.Version != "7.0.2" {
		t.Fatalf("version = %q, want 7.0.2", status.Version)
	}
}

func TestInstallExtractsZip(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"yt-dlp-release/yt-dlp": fetcherScript,
	})
	server := serveFiles(t, map[string][]byte{"/yt-dlp.zip": archive})
	h := newHarness(t, server.URL+"/yt-dlp.zip", "")

	status, err := h.inst.Install(context.Background(), toolchain.KindFetcher)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if status.Version != "2025.03.03" {
		t.Fatalf("version = %q, want 2025.03.03", status.Version)
	}
}

func TestInstallFailsWhenArchiveLacksBinary(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"yt-dlp-release/README.md": "no binary here",
	})
	server := serveFiles(t, map[string][]byte{"/yt-dlp.zip": archive})
	h := newHarness(t, server.URL+"/yt-dlp.zip", "")

	_, err := h.inst.Install(context.Background(), toolchain.KindFetcher)
	if !errors.Is(err, installer.ErrExtraction) {
		t.Fatalf("error = %v, want ErrExtraction", err)
	}
	if phase := h.manager.Status(toolchain.KindFetcher).Phase; phase != toolchain.PhaseError {
		t.Fatalf("phase = %s, want %s", phase, toolchain.PhaseError)
	}
	if _, statErr := os.Stat(filepath.Join(h.cfg.ManagedBinDir(), "yt-dlp")); !os.IsNotExist(statErr) {
		t.Fatalf("binary must not be installed on extraction failure: %v", statErr)
	}
}

func TestInstallReportsDownloadFailure(t *testing.T) {
	server := serveFiles(t, map[string][]byte{"/yt-dlp": []byte(fetcherScript)})
	h := newHarness(t, server.URL+"/missing", "")

	_, err := h.inst.Install(context.Background(), toolchain.KindFetcher)
	if !errors.Is(err, installer.ErrDownload) {
		t.Fatalf("error = %v, want ErrDownload", err)
	}
	status := h.manager.Status(toolchain.KindFetcher)
	if status.Phase != toolchain.PhaseError {
		t.Fatalf("phase = %s, want %s", status.Phase, toolchain.PhaseError)
	}
	if status.Message == "" {
		t.Fatal("error status must carry a message")
	}
}

func TestInstallVerificationFailureRemovesBinary(t *testing.T) {
	server := serveFiles(t, map[string][]byte{"/yt-dlp": []byte("#!/bin/sh\nexit 3\n")})
	h := newHarness(t, server.URL+"/yt-dlp", "")

	_, err := h.inst.Install(context.Background(), toolchain.KindFetcher)
	if !errors.Is(err, installer.ErrVerification) {
		t.Fatalf("error = %v, want ErrVerification", err)
	}
	if _, statErr := os.Stat(filepath.Join(h.cfg.ManagedBinDir(), "yt-dlp")); !os.IsNotExist(statErr) {
		t.Fatalf("unverifiable binary must be removed: %v", statErr)
	}
	if phase := h.manager.Status(toolchain.KindFetcher).Phase; phase != toolchain.PhaseError {
		t.Fatalf("phase = %s, want %s", phase, toolchain.PhaseError)
	}
}

func TestInstallOverwritesExistingManagedCopy(t *testing.T) {
	server := serveFiles(t, map[string][]byte{"/yt-dlp": []byte(fetcherScript)})
	h := newHarness(t, server.URL+"/yt-dlp", "")

	target := filepath.Join(h.cfg.ManagedBinDir(), "yt-dlp")
	if err := os.WriteFile(target, []byte("#!/bin/sh\necho 2024.01.01\n"), 0o755); err != nil {
		t.Fatalf("write stale binary: %v", err)
	}

	status, err := h.inst.Install(context.Background(), toolchain.KindFetcher)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if status.Version != "2025.03.03" {
		t.Fatalf("version = %q, want the fresh copy's 2025.03.03", status.Version)
	}
}

func TestInstallAll(t *testing.T) {
	server := serveFiles(t, map[string][]byte{
		"/yt-dlp": []byte(fetcherScript),
		"/ffmpeg": []byte(processorScript),
	})
	h := newHarness(t, server.URL+"/yt-dlp", server.URL+"/ffmpeg")

	if err := h.inst.InstallAll(context.Background()); err != nil {
		t.Fatalf("InstallAll: %v", err)
	}
	for _, status := range h.manager.Statuses() {
		if status.Phase != toolchain.PhaseInstalled {
			t.Fatalf("%s phase = %s, want %s", status.Kind, status.Phase, toolchain.PhaseInstalled)
		}
		if status.Version == "" {
			t.Fatalf("%s has no version after install", status.Kind)
		}
	}
}

func TestInstallAllAggregatesFailures(t *testing.T) {
	server := serveFiles(t, map[string][]byte{"/yt-dlp": []byte(fetcherScript)})
	h := newHarness(t, server.URL+"/yt-dlp", server.URL+"/missing")

	err := h.inst.InstallAll(context.Background())
	if !errors.Is(err, installer.ErrDownload) {
		t.Fatalf("error = %v, want ErrDownload for the processor", err)
	}
	if phase := h.manager.Status(toolchain.KindFetcher).Phase; phase != toolchain.PhaseInstalled {
		t.Fatalf("fetcher phase = %s, want %s despite processor failure", phase, toolchain.PhaseInstalled)
	}
	if phase := h.manager.Status(toolchain.KindProcessor).Phase; phase != toolchain.PhaseError {
		t.Fatalf("processor phase = %s, want %s", phase, toolchain.PhaseError)
	}
}
