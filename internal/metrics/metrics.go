package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InferenceTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quarrel_bench_tokens_total",
		Help: "The total number of tokens evaluated",
	}, []string{"architecture"})

	EvaluateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quarrel_bench_evaluate_duration_seconds",
		Help:    "Duration of a single Evaluate call",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
	}, []string{"architecture"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quarrel_bench_run_duration_seconds",
		Help:    "Duration of a benchmark run from tokenization through evaluation",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
	}, []string{"architecture"})

	TokensPerMillisecond = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quarrel_bench_tokens_per_millisecond",
		Help: "Throughput of the most recent run",
	}, []string{"architecture"})

	ModelLoadDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quarrel_bench_model_load_seconds",
		Help: "Time spent loading the model",
	}, []string{"architecture"})

	ModelTensorsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quarrel_bench_model_tensors",
		Help: "Number of tensors in the loaded model",
	})

	ModelBytesLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quarrel_bench_model_bytes",
		Help: "Bytes of tensor data in the loaded model",
	})

	RunFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quarrel_bench_run_failures_total",
		Help: "Benchmark runs that failed, by stage",
	}, []string{"stage"})

	NumericalInstability = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quarrel_bench_numerical_instability_total",
		Help: "Total number of NaN/Inf values detected",
	}, []string{"tensor", "type"})

	ContextLengthHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quarrel_bench_context_length_tokens",
		Help:    "Distribution of session positions after evaluation",
		Buckets: []float64{8, 32, 128, 512, 1024, 2048, 4096, 8192},
	})

	KVCacheCapacityBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quarrel_bench_kv_cache_capacity_bytes",
		Help: "Total capacity of the most recently allocated KV cache in bytes",
	})

	KVCacheUsedBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quarrel_bench_kv_cache_used_bytes",
		Help: "Bytes used in the most recently updated KV cache",
	})

	TokenizerEncodeLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quarrel_bench_tokenizer_encode_length",
		Help:    "Length of encoded token sequences",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500},
	})

	TokenizerEncodeTime = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quarrel_bench_tokenizer_encode_time_seconds",
		Help:    "Time to encode text",
		Buckets: prometheus.DefBuckets,
	})
)

// RecordRun records one completed benchmark run. rate may be +Inf for a
// zero elapsed time and is then left out of the gauge.
func RecordRun(arch string, tokens int, run, eval time.Duration, rate float64) {
	InferenceTokensTotal.WithLabelValues(arch).Add(float64(tokens))
	RunDuration.WithLabelValues(arch).Observe(run.Seconds())
	EvaluateDuration.WithLabelValues(arch).Observe(eval.Seconds())
	if !math.IsInf(rate, 0) && !math.IsNaN(rate) {
		TokensPerMillisecond.WithLabelValues(arch).Set(rate)
	}
}

func RecordModelLoad(arch string, d time.Duration, tensors int, bytes int64) {
	ModelLoadDuration.WithLabelValues(arch).Set(d.Seconds())
	ModelTensorsLoaded.Set(float64(tensors))
	ModelBytesLoaded.Set(float64(bytes))
}

func RecordFailure(stage string) {
	RunFailures.WithLabelValues(stage).Inc()
}

func RecordNumericalInstability(name string, nanCount, infCount int) {
	if nanCount > 0 {
		NumericalInstability.WithLabelValues(name, "nan").Add(float64(nanCount))
	}
	if infCount > 0 {
		NumericalInstability.WithLabelValues(name, "inf").Add(float64(infCount))
	}
}

func RecordContextLength(tokens int) {
	ContextLengthHistogram.Observe(float64(tokens))
}

// RecordKVCacheStats records KV cache capacity and usage
func RecordKVCacheStats(capacity, used int64) {
	KVCacheCapacityBytes.Set(float64(capacity))
	KVCacheUsedBytes.Set(float64(used))
}

func RecordTokenizerEncode(length int, d time.Duration) {
	TokenizerEncodeLength.Observe(float64(length))
	TokenizerEncodeTime.Observe(d.Seconds())
}

// WriteTextfile writes all registered metrics to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
