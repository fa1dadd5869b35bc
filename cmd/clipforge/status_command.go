package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/toolchain"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the managed tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withToolchain(func(env *toolEnv) error {
				statuses := env.manager.CheckAll(cmd.Context())

				if jsonOutput {
					return writeJSON(cmd, statuses)
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				rows := make([][]string, 0, len(statuses))
				for _, status := range statuses {
					state := phaseLabel(status, colorize)
					if status.Message != "" {
						state += " (" + status.Message + ")"
					}
					rows = append(rows, []string{
						toolchain.DescriptorFor(status.Kind).BinaryName,
						state,
						orDash(status.Version),
						orDash(string(status.Source)),
						orDash(status.Path),
					})
				}
				fmt.Fprintln(stdout, renderTable([]string{"Tool", "State", "Version", "Source", "Path"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit status as JSON")
	return cmd
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
