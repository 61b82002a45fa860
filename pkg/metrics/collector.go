// Copyright 2025 The llm-d Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// SamplesDrawn counts calibration windows produced.
	SamplesDrawn = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "calibration", Subsystem: "loader", Name: "samples_total",
		Help: "Total number of calibration windows produced",
	})
	// RecordsRejected counts records re-drawn because they were too short.
	RecordsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "calibration", Subsystem: "loader", Name: "records_rejected_total",
		Help: "Number of drawn records re-drawn for being shorter than the window",
	})
	// RecordsSkipped counts draws dropped because the record was too short.
	RecordsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "calibration", Subsystem: "loader", Name: "records_skipped_total",
		Help: "Number of draws dropped for records shorter than the window",
	})
	// EncodeLatency logs latency of single tokenizer calls.
	EncodeLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "calibration", Subsystem: "tokenization", Name: "encode_latency_seconds",
		Help:    "Latency of Encode calls in seconds",
		Buckets: prometheus.DefBuckets,
	})

	CacheAdmissions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "calibration", Subsystem: "tokencache", Name: "admissions_total",
		Help: "Total number of encodings admitted to the cache",
	})
	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "calibration", Subsystem: "tokencache", Name: "hits_total",
		Help: "Number of encodings served from the cache",
	})
	CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "calibration", Subsystem: "tokencache", Name: "misses_total",
		Help: "Number of cache lookups that found no encoding",
	})
	// CacheLookupLatency logs latency of cache lookups.
	CacheLookupLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "calibration", Subsystem: "tokencache", Name: "lookup_latency_seconds",
		Help:    "Latency of cache lookups in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

// Collectors returns a slice of all registered Prometheus collectors.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		SamplesDrawn, RecordsRejected, RecordsSkipped, EncodeLatency,
		CacheAdmissions, CacheHits, CacheMisses, CacheLookupLatency,
	}
}

var registerMetricsOnce = sync.Once{}

// Register registers all metrics with K8s registry.
func Register() {
	registerMetricsOnce.Do(func() {
		metrics.Registry.MustRegister(Collectors()...)
	})
}

// StartMetricsLogging spawns a goroutine that logs current metric values every
// interval until ctx is done.
func StartMetricsLogging(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logMetrics(ctx)
			}
		}
	}()
}

// Snapshot is a point-in-time copy of the loader metrics.
type Snapshot struct {
	Samples         float64
	Rejected        float64
	Skipped         float64
	CacheHits       float64
	CacheMisses     float64
	EncodeCount     uint64
	EncodeSeconds   float64
	CacheLookupsSum float64
}

// TakeSnapshot reads the current metric values.
func TakeSnapshot() (Snapshot, error) {
	var snap Snapshot

	counters := []struct {
		c   prometheus.Counter
		dst *float64
	}{
		{SamplesDrawn, &snap.Samples},
		{RecordsRejected, &snap.Rejected},
		{RecordsSkipped, &snap.Skipped},
		{CacheHits, &snap.CacheHits},
		{CacheMisses, &snap.CacheMisses},
	}
	for _, entry := range counters {
		var m dto.Metric
		if err := entry.c.Write(&m); err != nil {
			return Snapshot{}, err
		}
		*entry.dst = m.GetCounter().GetValue()
	}

	var encode dto.Metric
	if err := EncodeLatency.Write(&encode); err != nil {
		return Snapshot{}, err
	}
	snap.EncodeCount = encode.GetHistogram().GetSampleCount()
	snap.EncodeSeconds = encode.GetHistogram().GetSampleSum()

	var lookups dto.Metric
	if err := CacheLookupLatency.Write(&lookups); err != nil {
		return Snapshot{}, err
	}
	snap.CacheLookupsSum = lookups.GetHistogram().GetSampleSum()

	return snap, nil
}

func logMetrics(ctx context.Context) {
	snap, err := TakeSnapshot()
	if err != nil {
		return
	}

	encodeAvg := 0.0
	if snap.EncodeCount > 0 {
		encodeAvg = snap.EncodeSeconds / float64(snap.EncodeCount)
	}

	klog.FromContext(ctx).WithName("metrics").Info("metrics beat",
		"samples", snap.Samples,
		"rejected", snap.Rejected,
		"skipped", snap.Skipped,
		"cache_hits", snap.CacheHits,
		"cache_misses", snap.CacheMisses,
		"encode_count", snap.EncodeCount,
		"encode_avg", encodeAvg,
	)
}
