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

package tokenization

import (
	"context"
	"errors"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"

	"github.com/llm-d/llm-d-calibration-data/pkg/hub"
	"github.com/llm-d/llm-d-calibration-data/pkg/utils/logging"
)

// tokenizersCacheSize is the size of the LRU cache for tokenizers.
// 1 tokenizer per base-model.
const tokenizersCacheSize = 20

const (
	tokenizerFile       = "tokenizer.json"
	tokenizerConfigFile = "tokenizer_config.json"
)

// llamaSpecialIDs are the BOS/EOS ids llama-family checkpoints expect.
var llamaSpecialIDs = SpecialIDs{BOS: 1, EOS: 2}

// Config holds the configuration for tokenizer resolution and the encoding
// pool.
type Config struct {
	// Revision of the model repositories to load tokenizers from.
	Revision string `json:"revision"`
	// WorkersCount is the number of goroutines used by Pool. Zero means one
	// worker per available CPU.
	WorkersCount int `json:"workersCount"`
}

// DefaultConfig returns a default configuration for tokenization.
func DefaultConfig() *Config {
	return &Config{
		Revision:     "main",
		WorkersCount: 0,
	}
}

// LoadFunc constructs a tokenizer of the given variant for a model.
type LoadFunc func(ctx context.Context, modelID string, variant Variant) (Tokenizer, error)

// Resolver selects, builds and caches tokenizers per model identifier.
// Loads of the same model are deduplicated.
type Resolver struct {
	load  LoadFunc
	cache *lru.Cache[string, Tokenizer]
	group singleflight.Group
}

// NewResolver creates a Resolver that loads tokenizer files through the hub
// client.
func NewResolver(config *Config, client *hub.Client) (*Resolver, error) {
	if config == nil {
		config = DefaultConfig()
	}
	return NewResolverWithLoader(HubLoader(client, config.Revision))
}

// NewResolverWithLoader creates a Resolver backed by a custom LoadFunc.
func NewResolverWithLoader(load LoadFunc) (*Resolver, error) {
	return newResolver(load, tokenizersCacheSize)
}

func newResolver(load LoadFunc, size int) (*Resolver, error) {
	cache, err := lru.NewWithEvict(size, closeEvicted)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tokenizer cache: %w", err)
	}

	return &Resolver{
		load:  load,
		cache: cache,
	}, nil
}

// closeEvicted releases the native resources of a tokenizer dropped from the
// cache.
func closeEvicted(modelID string, tokenizer Tokenizer) {
	closer, ok := tokenizer.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		klog.Background().Error(err, "failed to close evicted tokenizer", "model", modelID)
	}
}

// Resolve returns the tokenizer for modelID, building it on first use.
func (r *Resolver) Resolve(ctx context.Context, modelID string) (Tokenizer, error) {
	if tokenizer, ok := r.cache.Get(modelID); ok {
		return tokenizer, nil
	}

	result, err, shared := r.group.Do(modelID, func() (any, error) {
		return r.build(ctx, modelID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer for model %q: %w", modelID, err)
	}

	tokenizer, ok := result.(Tokenizer)
	if !ok {
		return nil, fmt.Errorf("unexpected tokenizer type from singleflight result")
	}

	if shared {
		klog.FromContext(ctx).V(logging.DEBUG).Info("tokenizer load shared", "model", modelID)
	}
	return tokenizer, nil
}

func (r *Resolver) build(ctx context.Context, modelID string) (Tokenizer, error) {
	logger := klog.FromContext(ctx).WithName("tokenization.Resolver")

	variant := ResolveVariant(modelID)
	logger.Info("loading tokenizer", "model", modelID, "variant", variant.String())

	tokenizer, err := r.load(ctx, modelID, variant)
	if err != nil {
		return nil, err
	}

	if variant.patchesSpecialIDs() {
		PatchSpecialIDs(ctx, tokenizer, llamaSpecialIDs)
	}

	// published only once patched
	r.cache.Add(modelID, tokenizer)
	return tokenizer, nil
}

// PatchSpecialIDs forces BOS/EOS to want when they differ. The override is
// best-effort: a tokenizer that refuses it is used unpatched.
func PatchSpecialIDs(ctx context.Context, tokenizer Tokenizer, want SpecialIDs) bool {
	current := tokenizer.SpecialIDs()
	if current == want {
		return true
	}

	debugLogger := klog.FromContext(ctx).V(logging.DEBUG).WithName("tokenization.PatchSpecialIDs")
	if !tokenizer.TrySetSpecialIDs(want) {
		debugLogger.Info("tokenizer rejected special id override", "current", current, "want", want)
		return false
	}

	debugLogger.Info("patched special ids", "from", current, "to", want)
	return true
}

// HubLoader returns a LoadFunc that downloads tokenizer.json and
// tokenizer_config.json from the hub and builds an HFTokenizer.
func HubLoader(client *hub.Client, revision string) LoadFunc {
	return func(ctx context.Context, modelID string, variant Variant) (Tokenizer, error) {
		ref := hub.FileRef{Repo: modelID, Type: hub.RepoTypeModel, Revision: revision}

		ref.Path = tokenizerFile
		tokenizerData, err := client.ReadFile(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", tokenizerFile, err)
		}

		ref.Path = tokenizerConfigFile
		configData, err := client.ReadFile(ctx, ref)
		if err != nil && !errors.Is(err, hub.ErrNotFound) {
			return nil, fmt.Errorf("failed to fetch %s: %w", tokenizerConfigFile, err)
		}

		return NewHFTokenizer(variant, tokenizerData, configData)
	}
}
