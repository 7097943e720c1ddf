package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/23skdu/longbow-bench/internal/gguf"
	"github.com/23skdu/longbow-bench/internal/logger"
	"github.com/23skdu/longbow-bench/internal/model"
	"github.com/23skdu/longbow-bench/internal/ollama"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <model-path>",
		Short: "Print a GGUF model's metadata report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if ollama.IsReference(path) {
				p, err := ollama.ResolveModelPath(path)
				if err != nil {
					return err
				}
				path = p
			}
			f, err := gguf.LoadFile(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer func() {
				_ = f.Close()
			}()

			analyzer := gguf.NewMetadataAnalyzer(f)
			report, err := analyzer.Analyze()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, report)
			if summary, err := gguf.ParseSummary(path); err != nil {
				logger.Log.Warn("gguf-parser could not read model", "path", path, "error", err)
			} else {
				fmt.Fprint(out, summary)
				for _, m := range summary.Mismatches(report) {
					logger.Log.Warn("Metadata readers disagree", "path", path, "field", m)
				}
			}
			if _, ok := model.Lookup(report.Architecture); !ok {
				fmt.Fprintf(out, "Loader:           none (known: %v)\n", model.Architectures())
			}
			return nil
		},
	}
}
