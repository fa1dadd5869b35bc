package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"clipforge/internal/toolchain"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// phaseLabel renders a status phase for humans, optionally colorized.
func phaseLabel(status toolchain.Status, colorize bool) string {
	label := phaseText(status.Phase)
	if !colorize {
		return label
	}
	switch status.Phase {
	case toolchain.PhaseInstalled:
		return ansiGreen + label + ansiReset
	case toolchain.PhaseFoundInPath:
		return ansiYellow + label + ansiReset
	case toolchain.PhaseError:
		return ansiRed + label + ansiReset
	default:
		return label
	}
}

func phaseText(phase toolchain.Phase) string {
	switch phase {
	case toolchain.PhaseNotInstalled:
		return "Not installed"
	case toolchain.PhaseChecking:
		return "Checking"
	case toolchain.PhaseDownloading:
		return "Downloading"
	case toolchain.PhaseInstalled:
		return "Installed"
	case toolchain.PhaseFoundInPath:
		return "Found in PATH"
	case toolchain.PhaseError:
		return "Error"
	default:
		return string(phase)
	}
}
