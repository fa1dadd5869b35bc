package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"clipforge/internal/clip"
	"clipforge/internal/config"
	"clipforge/internal/media"
	"clipforge/internal/procexec"
	"clipforge/internal/textutil"
	"clipforge/internal/toolchain"
)

func newClipCommand(ctx *commandContext) *cobra.Command {
	var (
		start, end float64
		formatID   string
		output     string
		username   string
		password   string
	)

	cmd := &cobra.Command{
		Use:   "clip <url>",
		Short: "Create a clip from a remote video",
		Long: "Fetches the video's metadata, downloads only the requested time range,\n" +
			"and writes the merged clip into the output directory.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if start < 0 {
				return errors.New("--start must not be negative")
			}
			if end <= start {
				return errors.New("--end must be greater than --start")
			}

			return ctx.withToolchain(func(env *toolEnv) error {
				for _, status := range env.manager.CheckAll(cmd.Context()) {
					if !status.Ready() {
						name := toolchain.DescriptorFor(status.Kind).BinaryName
						return fmt.Errorf("%s is not ready (%s); run \"clipforge install\" first", name, phaseText(status.Phase))
					}
				}
				fetcherPath, err := env.manager.ResolvedPath(toolchain.KindFetcher)
				if err != nil {
					return err
				}

				creds := credentials(username, password)
				info, err := media.FetchVideoInfo(cmd.Context(), procexec.New(), fetcherPath, args[0], creds)
				if err != nil {
					return err
				}

				format, err := chooseFormat(info, formatID)
				if err != nil {
					return err
				}
				outputPath, err := resolveOutputPath(env.cfg, info, output, start, end)
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Clipping %q [%gs to %gs] using format %s\n", info.Title, start, end, format.ID)

				svc := clip.NewService(env.cfg, env.manager, env.logger)
				result, err := svc.Create(cmd.Context(), clip.Request{
					URL:          args[0],
					Title:        info.Title,
					FormatID:     format.ID,
					SourceCodec:  format.VideoCodec,
					StartSeconds: start,
					EndSeconds:   end,
					OutputPath:   outputPath,
					Credentials:  creds,
				}, clipProgress(stdout))
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Created %s\n", result.OutputPath)
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&start, "start", 0, "Clip start in seconds")
	cmd.Flags().Float64Var(&end, "end", 0, "Clip end in seconds")
	cmd.Flags().StringVarP(&formatID, "format", "f", "", "Source format ID (defaults to the best clip candidate)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (defaults into the output directory)")
	cmd.Flags().StringVar(&username, "username", "", "Account username for the video provider")
	cmd.Flags().StringVar(&password, "password", "", "Account password for the video provider")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func chooseFormat(info *media.VideoInfo, formatID string) (media.Format, error) {
	candidates := info.ClipCandidates()
	if formatID != "" {
		format, ok := info.FormatByID(formatID)
		if !ok {
			return media.Format{}, fmt.Errorf("format %q not offered for this video", formatID)
		}
		for _, candidate := range candidates {
			if candidate.ID == format.ID {
				return format, nil
			}
		}
		return media.Format{}, fmt.Errorf("format %q cannot be clipped (segmented transport or no video stream)", formatID)
	}

	if len(candidates) == 0 {
		return media.Format{}, errors.New("no clip-capable formats offered for this video")
	}
	best := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.Height > best.Height ||
			(candidate.Height == best.Height && candidate.Bitrate > best.Bitrate) {
			best = candidate
		}
	}
	return best, nil
}

func resolveOutputPath(cfg *config.Config, info *media.VideoInfo, flag string, start, end float64) (string, error) {
	if flag != "" {
		return config.ExpandPath(flag)
	}
	base := textutil.SanitizeFileName(info.Title)
	if base == "" {
		base = textutil.SanitizeToken(info.ID)
	}
	name := fmt.Sprintf("%s [%g-%g].%s", base, start, end, cfg.Clip.Container)
	return filepath.Join(cfg.Paths.OutputDir, name), nil
}

// clipProgress renders a progress bar on a TTY and stays quiet elsewhere.
func clipProgress(out io.Writer) func(clip.Progress) {
	if !shouldColorize(out) {
		return nil
	}
	bar := progressbar.NewOptions(1000,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("clipping"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
	return func(p clip.Progress) {
		_ = bar.Set(int(p.Fraction * 1000))
		if p.Fraction >= 1 {
			_ = bar.Finish()
		}
	}
}
