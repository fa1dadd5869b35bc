package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipforge/internal/media"
	"clipforge/internal/toolchain"
)

const sampleMetadataJSON = `{
  "id": "abc123",
  "title": "Test Video",
  "duration": 120.5,
  "formats": [
    {"format_id": "251", "vcodec": "none", "acodec": "opus", "protocol": "https"},
    {"format_id": "96", "vcodec": "avc1.640028", "acodec": "mp4a.40.2", "protocol": "m3u8_native", "width": 1920, "height": 1080},
    {"format_id": "137", "vcodec": "avc1.640028", "acodec": "none", "protocol": "https", "width": 1920, "height": 1080, "fps": 30, "tbr": 4423.4, "filesize": 123456789, "format_note": "1080p"}
  ]
}`

type cliEnv struct {
	base       string
	configPath string
	dataDir    string
	outputDir  string
}

func newCLIEnv(t *testing.T, extraConfig string) *cliEnv {
	t.Helper()
	t.Setenv("PATH", "")

	base := t.TempDir()
	env := &cliEnv{
		base:       base,
		configPath: filepath.Join(base, "config.toml"),
		dataDir:    filepath.Join(base, "data"),
		outputDir:  filepath.Join(base, "clips"),
	}

	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\noutput_dir = %q\n%s",
		env.dataDir,
		filepath.Join(base, "logs"),
		env.outputDir,
		extraConfig,
	)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

// installStub places a stub executable at the managed location.
func (e *cliEnv) installStub(t *testing.T, name, body string) {
	t.Helper()
	path := filepath.Join(e.dataDir, "bin", name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir managed dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
}

func (e *cliEnv) installDefaultStubs(t *testing.T) {
	t.Helper()
	e.installStub(t, "yt-dlp", "#!/bin/sh\necho 2025.06.09\n")
	e.installStub(t, "ffmpeg", "#!/bin/sh\necho 'ffmpeg version 7.1.1 Copyright (c) 2000-2025 the FFmpeg developers'\n")
}

// fetcherCLIStub answers the version probe, the metadata query, and clip
// invocations in one script.
const fetcherCLIStub = `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo 2025.06.09
  exit 0
fi
if [ "$1" = "--dump-json" ]; then
  printf '%%s\n' '%s'
  exit 0
fi
out=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "-o" ]; then out="$arg"; fi
  prev="$arg"
done
echo '[download] 100%% of 10.00MiB'
printf 'clip-bytes' > "$out"
exit 0
`

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIStatusNothingInstalled(t *testing.T) {
	env := newCLIEnv(t, "")

	out, _, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "yt-dlp") || !strings.Contains(out, "ffmpeg") {
		t.Fatalf("status should list both tools: %q", out)
	}
	if strings.Count(out, "Not installed") != 2 {
		t.Fatalf("expected both tools not installed: %q", out)
	}
}

func TestCLIStatusWithManagedTools(t *testing.T) {
	env := newCLIEnv(t, "")
	env.installDefaultStubs(t)

	out, _, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Installed", "2025.06.09", "7.1.1", "managed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q: %q", want, out)
		}
	}
}

func TestCLIStatusJSON(t *testing.T) {
	env := newCLIEnv(t, "")
	env.installDefaultStubs(t)

	out, _, err := runCLI(t, env.configPath, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}

	var statuses []toolchain.Status
	if err := json.Unmarshal([]byte(out), &statuses); err != nil {
		t.Fatalf("parse status JSON: %v\n%s", err, out)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected two statuses, got %d", len(statuses))
	}
	if statuses[0].Kind != toolchain.KindFetcher || statuses[0].Phase != toolchain.PhaseInstalled {
		t.Fatalf("unexpected fetcher status: %+v", statuses[0])
	}
	if statuses[1].Version != "7.1.1" {
		t.Fatalf("unexpected processor status: %+v", statuses[1])
	}
}

func TestCLISelectAndRemove(t *testing.T) {
	env := newCLIEnv(t, "")
	env.installDefaultStubs(t)

	out, _, err := runCLI(t, env.configPath, "select", "fetcher", "managed")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !strings.Contains(out, "Using yt-dlp 2025.06.09 from managed copy") {
		t.Fatalf("unexpected select output: %q", out)
	}

	out, _, err = runCLI(t, env.configPath, "remove", "fetcher")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !strings.Contains(out, "Removed managed copy of yt-dlp") {
		t.Fatalf("unexpected remove output: %q", out)
	}
	if !strings.Contains(out, "yt-dlp is now: Not installed") {
		t.Fatalf("remove should report the fallback state: %q", out)
	}
	if _, err := os.Stat(filepath.Join(env.dataDir, "bin", "yt-dlp")); !os.IsNotExist(err) {
		t.Fatalf("managed copy should be gone, stat: %v", err)
	}

	out, _, err = runCLI(t, env.configPath, "remove", "fetcher")
	if err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if !strings.Contains(out, "No managed copy of yt-dlp to remove") {
		t.Fatalf("unexpected second remove output: %q", out)
	}
}

func TestCLISelectRejectsUnknownArguments(t *testing.T) {
	env := newCLIEnv(t, "")

	_, _, err := runCLI(t, env.configPath, "select", "transcoder", "managed")
	if err == nil || !strings.Contains(err.Error(), "unknown tool") {
		t.Fatalf("expected unknown tool error, got %v", err)
	}

	_, _, err = runCLI(t, env.configPath, "select", "fetcher", "floppy")
	if err == nil || !strings.Contains(err.Error(), "unknown source") {
		t.Fatalf("expected unknown source error, got %v", err)
	}
}

func TestCLIInstallDownloadsTools(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/yt-dlp", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#!/bin/sh\necho 2025.03.03\n")
	})
	mux.HandleFunc("/ffmpeg", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#!/bin/sh\necho 'ffmpeg version 7.0.2 Copyright (c) 2000-2025 the FFmpeg developers'\n")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	extra := fmt.Sprintf("[tools]\nfetcher_download_url = %q\nprocessor_download_url = %q\n",
		server.URL+"/yt-dlp", server.URL+"/ffmpeg")
	env := newCLIEnv(t, extra)

	out, _, err := runCLI(t, env.configPath, "install")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	for _, want := range []string{"Downloading yt-dlp...", "Downloading ffmpeg...", "Installed yt-dlp 2025.03.03", "Installed ffmpeg 7.0.2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("install output missing %q: %q", want, out)
		}
	}
	for _, name := range []string{"yt-dlp", "ffmpeg"} {
		info, err := os.Stat(filepath.Join(env.dataDir, "bin", name))
		if err != nil {
			t.Fatalf("managed %s missing: %v", name, err)
		}
		if info.Mode().Perm()&0o111 == 0 {
			t.Fatalf("managed %s not executable", name)
		}
	}
}

func TestCLIInstallSingleTool(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/yt-dlp", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#!/bin/sh\necho 2025.03.03\n")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	extra := fmt.Sprintf("[tools]\nfetcher_download_url = %q\n", server.URL+"/yt-dlp")
	env := newCLIEnv(t, extra)

	out, _, err := runCLI(t, env.configPath, "install", "yt-dlp")
	if err != nil {
		t.Fatalf("install yt-dlp: %v", err)
	}
	if !strings.Contains(out, "Installed yt-dlp 2025.03.03") {
		t.Fatalf("unexpected install output: %q", out)
	}
	if _, err := os.Stat(filepath.Join(env.dataDir, "bin", "ffmpeg")); !os.IsNotExist(err) {
		t.Fatalf("processor should not have been installed, stat: %v", err)
	}
}

func TestCLIInfoCommand(t *testing.T) {
	env := newCLIEnv(t, "")
	env.installStub(t, "yt-dlp", fmt.Sprintf(fetcherCLIStub, sampleMetadataJSON))
	env.installStub(t, "ffmpeg", "#!/bin/sh\necho 'ffmpeg version 7.1.1'\n")

	out, _, err := runCLI(t, env.configPath, "info", "https://example.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"Test Video", "abc123", "120.5s", "137", "1080p", "yes"} {
		if !strings.Contains(out, want) {
			t.Fatalf("info output missing %q: %q", want, out)
		}
	}

	out, _, err = runCLI(t, env.configPath, "info", "--json", "https://example.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("info --json: %v", err)
	}
	var info media.VideoInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("parse info JSON: %v\n%s", err, out)
	}
	if info.Title != "Test Video" || len(info.Formats) != 3 {
		t.Fatalf("unexpected info JSON: %+v", info)
	}
}

func TestCLIClipCommand(t *testing.T) {
	env := newCLIEnv(t, "")
	env.installStub(t, "yt-dlp", fmt.Sprintf(fetcherCLIStub, sampleMetadataJSON))
	env.installStub(t, "ffmpeg", "#!/bin/sh\necho 'ffmpeg version 7.1.1'\n")

	out, _, err := runCLI(t, env.configPath, "clip", "https://example.com/watch?v=abc123", "--start", "1", "--end", "3")
	if err != nil {
		t.Fatalf("clip: %v", err)
	}
	if !strings.Contains(out, `Clipping "Test Video" [1s to 3s] using format 137`) {
		t.Fatalf("clip output missing plan line: %q", out)
	}
	if !strings.Contains(out, "Created ") {
		t.Fatalf("clip output missing result line: %q", out)
	}

	wantFile := filepath.Join(env.outputDir, "Test Video [1-3].mp4")
	data, err := os.ReadFile(wantFile)
	if err != nil {
		t.Fatalf("read clip output: %v", err)
	}
	if string(data) != "clip-bytes" {
		t.Fatalf("clip content = %q", data)
	}
}

func TestCLIClipRejectsBadRange(t *testing.T) {
	env := newCLIEnv(t, "")

	_, _, err := runCLI(t, env.configPath, "clip", "https://example.com/v", "--start", "5", "--end", "5")
	if err == nil || !strings.Contains(err.Error(), "--end must be greater than --start") {
		t.Fatalf("expected range error, got %v", err)
	}
}

func TestCLIClipRequiresReadyTools(t *testing.T) {
	env := newCLIEnv(t, "")

	_, _, err := runCLI(t, env.configPath, "clip", "https://example.com/v", "--start", "1", "--end", "3")
	if err == nil || !strings.Contains(err.Error(), "not ready") {
		t.Fatalf("expected readiness error, got %v", err)
	}
	if !strings.Contains(err.Error(), "clipforge install") {
		t.Fatalf("error should point at the install command, got %v", err)
	}
}

func TestCLIConfigInitAndShow(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "generated.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration to "+target) {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	_, _, err = runCLI(t, "", "config", "init", "--path", target)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected overwrite guard, got %v", err)
	}

	env := newCLIEnv(t, "")
	out, _, err = runCLI(t, env.configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "data_dir") || !strings.Contains(out, env.dataDir) {
		t.Fatalf("config show should render effective paths: %q", out)
	}
}

func TestCLIConfigValidate(t *testing.T) {
	env := newCLIEnv(t, "")

	out, _, err := runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Config path: "+env.configPath) {
		t.Fatalf("validate should report the flagged config path: %q", out)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}

	env = newCLIEnv(t, "[logging]\nformat = \"yaml\"\n")
	_, _, err = runCLI(t, env.configPath, "config", "validate")
	if err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging format rejection, got %v", err)
	}
}

func TestCLITestNotify(t *testing.T) {
	env := newCLIEnv(t, "")
	out, _, err := runCLI(t, env.configPath, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	if !strings.Contains(out, "Notifications are not configured") {
		t.Fatalf("unexpected unconfigured output: %q", out)
	}

	received := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get("Title")
	}))
	defer server.Close()

	extra := fmt.Sprintf("[notifications]\nntfy_topic = %q\n", server.URL+"/clipforge-test")
	env = newCLIEnv(t, extra)
	out, _, err = runCLI(t, env.configPath, "test-notify")
	if err != nil {
		t.Fatalf("test-notify with topic: %v", err)
	}
	if !strings.Contains(out, "Test notification sent") {
		t.Fatalf("unexpected output: %q", out)
	}
	select {
	case title := <-received:
		if title != "ClipForge - Test" {
			t.Fatalf("notification title = %q", title)
		}
	default:
		t.Fatal("test notification never reached the server")
	}
}

func TestCLILogsCommand(t *testing.T) {
	env := newCLIEnv(t, "")

	logDir := filepath.Join(env.base, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	logPath := filepath.Join(logDir, "clipforge.log")
	content := "level=INFO msg=\"install started\"\nlevel=INFO msg=\"install completed\"\nlevel=INFO msg=\"clip completed\"\n"
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "logs", "-n", "2")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "install started") {
		t.Fatalf("logs should trim to the last two lines: %q", out)
	}
	for _, want := range []string{"install completed", "clip completed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("logs output missing %q: %q", want, out)
		}
	}
}

func TestCLILogsCommandEmptyFile(t *testing.T) {
	env := newCLIEnv(t, "")

	out, _, err := runCLI(t, env.configPath, "logs")
	if err != nil {
		t.Fatalf("logs without a file: %v", err)
	}
	if strings.TrimSpace(out) != "" {
		t.Fatalf("expected no output, got %q", out)
	}
}
