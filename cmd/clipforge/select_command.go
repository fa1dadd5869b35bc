package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/toolchain"
)

func newSelectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "select <tool> <managed|system>",
		Short: "Choose which copy of a tool to use",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := toolchain.ParseKind(args[0])
			if !ok {
				return fmt.Errorf("unknown tool %q (expected fetcher or processor)", args[0])
			}
			source, ok := toolchain.ParseSource(args[1])
			if !ok {
				return fmt.Errorf("unknown source %q (expected managed or system)", args[1])
			}

			return ctx.withToolchain(func(env *toolEnv) error {
				status, err := env.manager.SelectSource(cmd.Context(), kind, source)
				if err != nil {
					return err
				}
				name := toolchain.DescriptorFor(kind).BinaryName
				if !status.Ready() {
					return fmt.Errorf("%s source selected but %s is not usable: %s", source, name, orDash(status.Message))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Using %s %s from %s copy at %s\n", name, status.Version, status.Source, status.Path)
				return nil
			})
		},
	}
}
