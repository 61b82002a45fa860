/*
Copyright 2025 The llm-d Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tokencache

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/llm-d/llm-d-calibration-data/pkg/metrics"
	"github.com/llm-d/llm-d-calibration-data/pkg/tokenization"
)

type instrumentedStore struct {
	next Store
}

// NewInstrumentedStore wraps a Store and emits metrics for Add and Get.
func NewInstrumentedStore(next Store) Store {
	return &instrumentedStore{next: next}
}

func (m *instrumentedStore) Add(ctx context.Context, key Key, tokens tokenization.TokenSequence) error {
	err := m.next.Add(ctx, key, tokens)
	if err == nil {
		metrics.CacheAdmissions.Inc()
	}
	return err
}

func (m *instrumentedStore) Get(ctx context.Context, key Key) (tokenization.TokenSequence, bool, error) {
	timer := prometheus.NewTimer(metrics.CacheLookupLatency)
	defer timer.ObserveDuration()

	tokens, found, err := m.next.Get(ctx, key)
	switch {
	case err != nil:
	case found:
		metrics.CacheHits.Inc()
	default:
		metrics.CacheMisses.Inc()
	}

	return tokens, found, err
}
