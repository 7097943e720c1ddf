package commands

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/23skdu/longbow-bench/internal/config"
)

// Settings is the merged view of flags, environment and config file.
type Settings struct {
	TokenizerPath       string
	TokenizerRepository string
	QueryFile           string

	Model   config.ModelParameters
	Session config.SessionConfig
	Bench   config.Bench

	MetricsFile string
	ArrowOut    string
	FlightAddr  string
}

func settingsFrom(v *viper.Viper) (Settings, error) {
	s := Settings{
		TokenizerPath:       v.GetString("tokenizer_path"),
		TokenizerRepository: v.GetString("tokenizer_repository"),
		QueryFile:           v.GetString("query_file"),
		Model: config.ModelParameters{
			PreferMmap:  !v.GetBool("no_mmap"),
			ContextSize: v.GetInt("context_size"),
			UseGPU:      v.GetBool("use_gpu"),
			GPULayers:   v.GetInt("gpu_layers"),
		},
		Bench: config.Bench{
			MaxQueryBytes: v.GetInt("max_query_bytes"),
			PrependBOS:    config.DefaultBench().PrependBOS,
			Runs:          v.GetInt("runs"),
			Concurrency:   v.GetInt("concurrency"),
		},
		MetricsFile: v.GetString("metrics_file"),
		ArrowOut:    v.GetString("arrow_out"),
		FlightAddr:  v.GetString("flight_addr"),
	}

	// prepend_bos comes from the config file or environment; --no-bos wins.
	if v.IsSet("prepend_bos") {
		s.Bench.PrependBOS = v.GetBool("prepend_bos")
	}
	if v.GetBool("no_bos") {
		s.Bench.PrependBOS = false
	}

	// The config file may carry a full session block; flags win over it.
	s.Session = config.DefaultSession()
	if v.IsSet("session") {
		if err := v.UnmarshalKey("session", &s.Session); err != nil {
			return Settings{}, fmt.Errorf("invalid session config: %w", err)
		}
	}
	if v.IsSet("context_size") || !v.IsSet("session.context_size") {
		s.Session.ContextSize = s.Model.ContextSize
	}
	if t := v.GetInt("threads"); t > 0 {
		s.Session.Threads = t
	}
	s.Session = s.Session.WithDefaults()

	if err := s.Model.Validate(); err != nil {
		return Settings{}, err
	}
	if err := s.Session.Validate(); err != nil {
		return Settings{}, err
	}
	if err := s.Bench.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
