package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/23skdu/longbow-bench/internal/model"
)

func newArchitecturesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "architectures",
		Short: "List the model architectures that can be benchmarked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range model.Architectures() {
				a, _ := model.Lookup(name)
				if len(a.Aliases) > 0 {
					fmt.Fprintf(out, "%s (%v)\n", name, a.Aliases)
					continue
				}
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}
