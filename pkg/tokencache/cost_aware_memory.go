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
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"

	"github.com/llm-d/llm-d-calibration-data/pkg/tokenization"
	"github.com/llm-d/llm-d-calibration-data/pkg/utils/logging"
)

const (
	defaultNumCounters = 1e5 // 10x the expected number of entries
	defaultBufferItems = 64  // default buffer size for ristretto

	bytesPerToken = 8
)

// CostAwareMemoryStoreConfig holds the configuration for the CostAwareMemoryStore.
type CostAwareMemoryStoreConfig struct {
	// Size is the maximum memory size that can be used by the store.
	// Supports human-readable formats like "2GiB", "500MiB", "1GB", etc.
	Size string `json:"size,omitempty"`
}

// DefaultCostAwareMemoryStoreConfig returns a default configuration for the
// CostAwareMemoryStore.
func DefaultCostAwareMemoryStoreConfig() *CostAwareMemoryStoreConfig {
	return &CostAwareMemoryStoreConfig{
		Size: "1GiB",
	}
}

// NewCostAwareMemoryStore creates a new CostAwareMemoryStore instance.
func NewCostAwareMemoryStore(cfg *CostAwareMemoryStoreConfig) (*CostAwareMemoryStore, error) {
	if cfg == nil {
		cfg = DefaultCostAwareMemoryStoreConfig()
	}

	sizeBytes, err := humanize.ParseBytes(cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cost aware store: %w", err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, tokenization.TokenSequence]{
		NumCounters: defaultNumCounters,
		MaxCost:     int64(sizeBytes), // #nosec G115 , maximum cost of cache
		BufferItems: defaultBufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cost aware store: %w", err)
	}

	return &CostAwareMemoryStore{data: cache}, nil
}

// CostAwareMemoryStore implements Store with a ristretto cache bounded by the
// approximate memory held by the cached encodings.
type CostAwareMemoryStore struct {
	data *ristretto.Cache[string, tokenization.TokenSequence]
}

var _ Store = &CostAwareMemoryStore{}

// MaxCost returns the configured memory bound in bytes.
func (m *CostAwareMemoryStore) MaxCost() int64 {
	return m.data.MaxCost()
}

// Get returns the cached encoding for key, if any.
func (m *CostAwareMemoryStore) Get(ctx context.Context, key Key) (tokenization.TokenSequence, bool, error) {
	tokens, found := m.data.Get(key.String())
	klog.FromContext(ctx).V(logging.TRACE).WithName("tokencache.CostAwareMemoryStore.Get").
		Info("lookup", "key", key.String(), "found", found)
	return tokens, found, nil
}

// Add stores the encoding for key. An encoding larger than the whole cache
// is dropped by ristretto's admission policy.
func (m *CostAwareMemoryStore) Add(ctx context.Context, key Key, tokens tokenization.TokenSequence) error {
	keyStr := key.String()
	cost := calculateByteSize(keyStr, tokens)

	admitted := m.data.Set(keyStr, tokens, cost)
	m.data.Wait()

	klog.FromContext(ctx).V(logging.TRACE).WithName("tokencache.CostAwareMemoryStore.Add").
		Info("added encoding", "key", keyStr, "cost-bytes", cost, "admitted", admitted)
	return nil
}

// calculateByteSize estimates memory usage for ristretto cost calculation.
func calculateByteSize(keyStr string, tokens tokenization.TokenSequence) int64 {
	return int64(len(keyStr)) + 24 + int64(len(tokens))*bytesPerToken // 24: slice header
}
