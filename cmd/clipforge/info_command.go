package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"clipforge/internal/media"
	"clipforge/internal/procexec"
	"clipforge/internal/toolchain"
)

func newInfoCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var username, password string

	cmd := &cobra.Command{
		Use:   "info <url>",
		Short: "Show video metadata and available formats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withToolchain(func(env *toolEnv) error {
				status := env.manager.CheckStatus(cmd.Context(), toolchain.KindFetcher)
				if !status.Ready() {
					return fmt.Errorf("yt-dlp is not ready (%s); run \"clipforge install\" first", phaseText(status.Phase))
				}
				fetcherPath, err := env.manager.ResolvedPath(toolchain.KindFetcher)
				if err != nil {
					return err
				}

				info, err := media.FetchVideoInfo(cmd.Context(), procexec.New(), fetcherPath, args[0], credentials(username, password))
				if err != nil {
					return err
				}

				if jsonOutput {
					return writeJSON(cmd, info)
				}

				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Title:    %s\n", info.Title)
				fmt.Fprintf(stdout, "ID:       %s\n", info.ID)
				fmt.Fprintf(stdout, "Duration: %.1fs\n", info.DurationSeconds)
				if info.Thumbnail != "" {
					fmt.Fprintf(stdout, "Thumb:    %s\n", info.Thumbnail)
				}
				fmt.Fprintln(stdout)

				candidates := make(map[string]bool)
				for _, f := range info.ClipCandidates() {
					candidates[f.ID] = true
				}

				rows := make([][]string, 0, len(info.Formats))
				for _, f := range info.Formats {
					clippable := ""
					if candidates[f.ID] {
						clippable = "yes"
					}
					rows = append(rows, []string{
						f.ID,
						formatResolution(f),
						formatRate(f.FrameRate),
						formatBitrate(f.Bitrate),
						formatSize(f),
						f.QualityNote,
						clippable,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Format", "Resolution", "FPS", "Bitrate", "Size", "Note", "Clip"},
					rows, 2, 3, 4))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit metadata as JSON")
	cmd.Flags().StringVar(&username, "username", "", "Account username for the video provider")
	cmd.Flags().StringVar(&password, "password", "", "Account password for the video provider")
	return cmd
}

func credentials(username, password string) *media.Credentials {
	if username == "" && password == "" {
		return nil
	}
	return &media.Credentials{Username: username, Password: password}
}

func formatResolution(f media.Format) string {
	if f.Width <= 0 && f.Height <= 0 {
		return "-"
	}
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

func formatRate(fps float64) string {
	if fps <= 0 {
		return "-"
	}
	return fmt.Sprintf("%g", fps)
}

func formatBitrate(tbr float64) string {
	if tbr <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0fk", tbr)
}

func formatSize(f media.Format) string {
	switch {
	case f.FileSize > 0:
		return humanize.Bytes(uint64(f.FileSize))
	case f.FileSizeApprox > 0:
		return "~" + humanize.Bytes(uint64(f.FileSizeApprox))
	default:
		return "-"
	}
}
