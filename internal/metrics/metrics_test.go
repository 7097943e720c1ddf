package metrics

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(InferenceTokensTotal.WithLabelValues("test-run"))

	RecordRun("test-run", 12, 4*time.Millisecond, 3*time.Millisecond, 3.0)
	RecordRun("test-run", 8, 2*time.Millisecond, time.Millisecond, 4.0)

	if got := testutil.ToFloat64(InferenceTokensTotal.WithLabelValues("test-run")) - before; got != 20 {
		t.Errorf("tokens delta = %v, want 20", got)
	}
	if got := testutil.ToFloat64(TokensPerMillisecond.WithLabelValues("test-run")); got != 4.0 {
		t.Errorf("rate gauge = %v, want 4", got)
	}
}

func TestRecordRunInfiniteRate(t *testing.T) {
	RecordRun("test-inf", 3, 0, 0, 1.5)
	RecordRun("test-inf", 3, 0, 0, math.Inf(1))

	if got := testutil.ToFloat64(TokensPerMillisecond.WithLabelValues("test-inf")); got != 1.5 {
		t.Errorf("rate gauge = %v, want previous finite value 1.5", got)
	}
}

func TestRecordFailure(t *testing.T) {
	before := testutil.ToFloat64(RunFailures.WithLabelValues("tokenize"))
	RecordFailure("tokenize")
	if got := testutil.ToFloat64(RunFailures.WithLabelValues("tokenize")) - before; got != 1 {
		t.Errorf("failures delta = %v, want 1", got)
	}
}

func TestRecordNumericalInstability(t *testing.T) {
	before := testutil.ToFloat64(NumericalInstability.WithLabelValues("test_tensor", "nan"))
	RecordNumericalInstability("test_tensor", 5, 0)
	RecordNumericalInstability("test_tensor", 0, 0)
	if got := testutil.ToFloat64(NumericalInstability.WithLabelValues("test_tensor", "nan")) - before; got != 5 {
		t.Errorf("nan delta = %v, want 5", got)
	}
}

func TestRecordGauges(t *testing.T) {
	RecordKVCacheStats(4096, 1024)
	if testutil.ToFloat64(KVCacheCapacityBytes) != 4096 || testutil.ToFloat64(KVCacheUsedBytes) != 1024 {
		t.Error("kv cache gauges not set")
	}

	RecordModelLoad("test-load", 1500*time.Millisecond, 7, 2048)
	if got := testutil.ToFloat64(ModelLoadDuration.WithLabelValues("test-load")); got != 1.5 {
		t.Errorf("load gauge = %v, want 1.5", got)
	}
	if testutil.ToFloat64(ModelTensorsLoaded) != 7 || testutil.ToFloat64(ModelBytesLoaded) != 2048 {
		t.Error("model gauges not set")
	}

	RecordContextLength(42)
	RecordTokenizerEncode(42, time.Millisecond)
}

func TestWriteTextfile(t *testing.T) {
	RecordRun("test-file", 1, time.Millisecond, time.Millisecond, 1)

	path := filepath.Join(t.TempDir(), "bench.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `quarrel_bench_tokens_total{architecture="test-file"} 1`) {
		t.Errorf("textfile missing token counter:\n%s", data)
	}

	if err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")); err == nil {
		t.Error("expected error for missing directory")
	}
}
