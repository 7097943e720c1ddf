package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/23skdu/longbow-bench/internal/config"
	"github.com/23skdu/longbow-bench/internal/logger"

	// Registers the CPU architectures.
	_ "github.com/23skdu/longbow-bench/internal/model/reference"
)

// EnvPrefix prefixes environment overrides, e.g. QUARREL_RUNS=5.
const EnvPrefix = "QUARREL"

// NewRootCommand builds the quarrel-bench command tree with its own viper
// instance.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *viper.Viper) {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "quarrel-bench <architecture|auto> <model-path>",
		Short: "Measure embedding extraction throughput of a GGUF model",
		Long: `quarrel-bench loads a model, tokenizes a fixed query, evaluates it once in a
fresh session and reports tokens per millisecond.

The model path may be a GGUF file or an ollama://name[:tag] reference. Every
flag can also be set in the config file or as a QUARREL_* environment variable
(QUARREL_MAX_QUERY_BYTES, QUARREL_USE_GPU, ...).`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(v.GetString("env_file")); err != nil {
				return err
			}
			if err := loadConfig(v); err != nil {
				return err
			}
			logger.Setup(v.GetString("log_level"), v.GetString("log_format"))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settingsFrom(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd.OutOrStdout(), s, args[0], args[1])
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "config file (yaml, toml or json)")
	pf.String("env-file", ".env", "dotenv file with QUARREL_* or HF_TOKEN settings, skipped if missing")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "console", "log format (console or json)")

	defModel := config.DefaultModelParameters()
	defBench := config.DefaultBench()

	f := cmd.Flags()
	f.StringP("tokenizer-path", "v", "", "local HuggingFace tokenizer.json (conflicts with --tokenizer-repository)")
	f.StringP("tokenizer-repository", "r", "", "HuggingFace repository to fetch tokenizer.json from")
	f.Bool("use-gpu", false, "request GPU acceleration (runs on the CPU backend)")
	f.Int("gpu-layers", 0, "layers to offload when --use-gpu is set")
	f.Bool("no-mmap", false, "read the model into memory instead of mapping it")
	f.Int("context-size", defModel.ContextSize, "maximum context size in tokens")
	f.Int("threads", 0, "evaluation threads (0 uses every CPU)")
	f.String("query-file", "", "read the query from this file instead of the built-in text")
	f.Int("max-query-bytes", defBench.MaxQueryBytes, "truncate the query to this many bytes (0 disables)")
	f.Bool("no-bos", false, "do not prepend the beginning-of-sequence token")
	f.Int("runs", defBench.Runs, "number of benchmark runs, one session each")
	f.Int("concurrency", defBench.Concurrency, "runs evaluated at the same time")
	f.String("metrics-file", "", "write prometheus metrics to this file")
	f.String("arrow-out", "", "write embeddings to this Arrow IPC file")
	f.String("flight-addr", "", "send embeddings to this Arrow Flight server (host:port)")

	bind := func(fl *pflag.Flag) {
		_ = v.BindPFlag(strings.ReplaceAll(fl.Name, "-", "_"), fl)
	}
	pf.VisitAll(bind)
	f.VisitAll(bind)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	cmd.AddCommand(newArchitecturesCommand(), newInspectCommand())
	return cmd, v
}

// loadEnvFile exports the variables in path without overriding ones that
// are already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func loadConfig(v *viper.Viper) error {
	path := v.GetString("config")
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
