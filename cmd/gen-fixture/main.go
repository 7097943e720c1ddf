package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/23skdu/longbow-bench/internal/logger"
	"github.com/23skdu/longbow-bench/internal/model/reference"
)

func main() {
	opts := reference.DefaultFixture()
	var words string

	cmd := &cobra.Command{
		Use:   "gen-fixture <output.gguf>",
		Short: "Write a tiny runnable GGUF model with random weights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if words != "" {
				opts.Words = strings.Fields(words)
			}
			if err := reference.WriteFixture(args[0], opts); err != nil {
				return err
			}
			logger.Log.Info("Wrote fixture", "path", args[0], "architecture", opts.Architecture,
				"dim", opts.Dim, "blocks", opts.Blocks, "vocab", len(reference.FixtureVocab(opts)))
			fmt.Fprintln(cmd.OutOrStdout(), args[0])
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Architecture, "arch", opts.Architecture, "general.architecture value")
	f.StringVar(&words, "words", "", "space separated vocabulary words (default: built-in list)")
	f.IntVar(&opts.Dim, "dim", opts.Dim, "embedding length")
	f.IntVar(&opts.Heads, "heads", opts.Heads, "attention heads")
	f.IntVar(&opts.Blocks, "blocks", opts.Blocks, "transformer blocks")
	f.IntVar(&opts.FeedForward, "ff", opts.FeedForward, "feed-forward length")
	f.IntVar(&opts.ContextLength, "context", opts.ContextLength, "context length")
	f.Int64Var(&opts.Seed, "seed", opts.Seed, "weight seed")
	f.BoolVar(&opts.F16, "f16", opts.F16, "store weights as F16")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
