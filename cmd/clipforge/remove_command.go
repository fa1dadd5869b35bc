package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"clipforge/internal/toolchain"
)

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <tool>",
		Short: "Delete the managed copy of a tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := toolchain.ParseKind(args[0])
			if !ok {
				return fmt.Errorf("unknown tool %q (expected fetcher or processor)", args[0])
			}

			return ctx.withToolchain(func(env *toolEnv) error {
				name := toolchain.DescriptorFor(kind).BinaryName
				target := filepath.Join(env.cfg.ManagedBinDir(), name)

				removed := true
				if err := os.Remove(target); err != nil {
					if !os.IsNotExist(err) {
						return fmt.Errorf("remove managed copy: %w", err)
					}
					removed = false
				}
				env.manager.InvalidateVersion(cmd.Context(), kind)

				// A managed preference now points at nothing.
				pref, err := env.store.Preference(cmd.Context(), string(kind))
				if err == nil && pref == string(toolchain.SourceManaged) {
					if err := env.store.SetPreference(cmd.Context(), string(kind), ""); err != nil {
						return fmt.Errorf("clear source preference: %w", err)
					}
				}

				stdout := cmd.OutOrStdout()
				if removed {
					fmt.Fprintf(stdout, "Removed managed copy of %s\n", name)
				} else {
					fmt.Fprintf(stdout, "No managed copy of %s to remove\n", name)
				}

				status := env.manager.CheckStatus(cmd.Context(), kind)
				fmt.Fprintf(stdout, "%s is now: %s\n", name, phaseText(status.Phase))
				return nil
			})
		},
	}
}
