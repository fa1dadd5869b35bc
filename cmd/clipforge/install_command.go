package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"clipforge/internal/installer"
	"clipforge/internal/toolchain"
)

func newInstallCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "install [tool]",
		Short: "Download and install managed copies of the tools",
		Long: "Downloads the named tool (or both when omitted) into the managed\n" +
			"directory, verifies it runs, and selects the managed copy.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withToolchain(func(env *toolEnv) error {
				inst := installer.New(env.cfg, env.store, env.manager, env.logger)
				stdout := cmd.OutOrStdout()

				render := newInstallRenderer(stdout)
				unsubscribe := env.manager.Subscribe(render.observe)
				defer unsubscribe()

				if len(args) == 1 {
					kind, ok := toolchain.ParseKind(args[0])
					if !ok {
						return fmt.Errorf("unknown tool %q (expected fetcher or processor)", args[0])
					}
					status, err := inst.Install(cmd.Context(), kind)
					render.close()
					if err != nil {
						return err
					}
					fmt.Fprintf(stdout, "Installed %s %s\n", toolchain.DescriptorFor(kind).BinaryName, status.Version)
					return nil
				}

				err := inst.InstallAll(cmd.Context())
				render.close()
				for _, status := range env.manager.Statuses() {
					if status.Phase == toolchain.PhaseInstalled {
						fmt.Fprintf(stdout, "Installed %s %s\n", toolchain.DescriptorFor(status.Kind).BinaryName, status.Version)
					}
				}
				return err
			})
		},
	}
}

// installRenderer turns manager status updates into terminal feedback. On a
// TTY download progress drives a progress bar; otherwise each download is
// announced once and the install outcome lines speak for themselves.
type installRenderer struct {
	mu        sync.Mutex
	out       io.Writer
	useBar    bool
	bar       *progressbar.ProgressBar
	announced map[toolchain.Kind]bool
}

func newInstallRenderer(out io.Writer) *installRenderer {
	return &installRenderer{
		out:       out,
		useBar:    shouldColorize(out),
		announced: make(map[toolchain.Kind]bool),
	}
}

func (r *installRenderer) observe(status toolchain.Status) {
	if status.Phase != toolchain.PhaseDownloading {
		r.close()
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := toolchain.DescriptorFor(status.Kind).BinaryName
	if !r.useBar {
		if !r.announced[status.Kind] {
			r.announced[status.Kind] = true
			fmt.Fprintf(r.out, "Downloading %s...\n", name)
		}
		return
	}

	if r.bar == nil {
		r.bar = progressbar.NewOptions(1000,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
	}
	description := "downloading " + name
	if status.Message != "" {
		description += " (" + status.Message + ")"
	}
	r.bar.Describe(description)
	_ = r.bar.Set(int(status.Progress * 1000))
}

func (r *installRenderer) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
}
