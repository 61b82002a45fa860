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

	lru "github.com/hashicorp/golang-lru/v2"
	"k8s.io/klog/v2"

	"github.com/llm-d/llm-d-calibration-data/pkg/tokenization"
	"github.com/llm-d/llm-d-calibration-data/pkg/utils/logging"
)

// a handful of splits per (model, corpus) pair
const defaultInMemoryStoreSize = 64

// InMemoryStoreConfig holds the configuration for the InMemoryStore.
type InMemoryStoreConfig struct {
	// Size is the maximum number of encodings that can be stored.
	Size int `json:"size"`
}

// DefaultInMemoryStoreConfig returns a default configuration for the InMemoryStore.
func DefaultInMemoryStoreConfig() *InMemoryStoreConfig {
	return &InMemoryStoreConfig{
		Size: defaultInMemoryStoreSize,
	}
}

// NewInMemoryStore creates a new InMemoryStore instance.
func NewInMemoryStore(cfg *InMemoryStoreConfig) (*InMemoryStore, error) {
	if cfg == nil {
		cfg = DefaultInMemoryStoreConfig()
	}

	cache, err := lru.New[Key, tokenization.TokenSequence](cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize in-memory store: %w", err)
	}

	return &InMemoryStore{data: cache}, nil
}

// InMemoryStore is an entry-count bounded LRU implementation of Store.
type InMemoryStore struct {
	data *lru.Cache[Key, tokenization.TokenSequence]
}

var _ Store = &InMemoryStore{}

// Get returns the cached encoding for key, if any.
func (m *InMemoryStore) Get(ctx context.Context, key Key) (tokenization.TokenSequence, bool, error) {
	tokens, found := m.data.Get(key)
	klog.FromContext(ctx).V(logging.TRACE).WithName("tokencache.InMemoryStore.Get").
		Info("lookup", "key", key.String(), "found", found)
	return tokens, found, nil
}

// Add stores the encoding for key.
func (m *InMemoryStore) Add(ctx context.Context, key Key, tokens tokenization.TokenSequence) error {
	evicted := m.data.Add(key, tokens)
	klog.FromContext(ctx).V(logging.TRACE).WithName("tokencache.InMemoryStore.Add").
		Info("added encoding", "key", key.String(), "tokens", len(tokens), "evicted", evicted)
	return nil
}
