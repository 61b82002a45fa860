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

package calibration

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"k8s.io/klog/v2"

	"github.com/llm-d/llm-d-calibration-data/pkg/corpus"
	"github.com/llm-d/llm-d-calibration-data/pkg/hub"
	"github.com/llm-d/llm-d-calibration-data/pkg/tokencache"
	"github.com/llm-d/llm-d-calibration-data/pkg/tokenization"
	"github.com/llm-d/llm-d-calibration-data/pkg/utils/logging"
)

// TokenizerResolver returns the tokenizer to use for a model id.
type TokenizerResolver interface {
	Resolve(ctx context.Context, modelID string) (tokenization.Tokenizer, error)
}

var _ TokenizerResolver = &tokenization.Resolver{}

// Loader builds calibration sets. A Loader holds no per-call state and may
// serve concurrent GetLoaders calls.
type Loader struct {
	config *Config

	resolver TokenizerResolver // picks and patches tokenizers
	fetcher  corpus.Fetcher    // retrieves dataset records
	cache    tokencache.Store  // optional, caches joined-corpus encodings
}

// New creates a Loader from its collaborators. cache may be nil.
func New(config *Config, resolver TokenizerResolver, fetcher corpus.Fetcher, cache tokencache.Store) *Loader {
	if config == nil {
		config = NewDefaultConfig()
	}

	return &Loader{
		config:   config,
		resolver: resolver,
		fetcher:  fetcher,
		cache:    cache,
	}
}

// NewLoader creates a Loader that downloads tokenizers and datasets from
// the hub described by config.
func NewLoader(ctx context.Context, config *Config) (*Loader, error) {
	if config == nil {
		config = NewDefaultConfig()
	}

	client := hub.NewClient(config.HubConfig)

	resolver, err := tokenization.NewResolver(config.TokenizationConfig, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer resolver: %w", err)
	}

	var cache tokencache.Store
	if config.CacheConfig != nil {
		cache, err = tokencache.NewStore(ctx, config.CacheConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create encoding cache: %w", err)
		}
	}

	return New(config, resolver, corpus.NewHubFetcher(client), cache), nil
}

// request is the state of one GetLoaders call.
type request struct {
	opts      Options
	tokenizer tokenization.Tokenizer
	rng       *rand.Rand
}

// fetchColumn fetches src and returns one of its columns.
func (l *Loader) fetchColumn(ctx context.Context, src corpus.Source, column string) ([]string, error) {
	table, err := l.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", src.Name, err)
	}

	values := table.Column(column)
	if values == nil && table.Len() > 0 {
		return nil, fmt.Errorf("%s has no column %q", src.Name, column)
	}
	return values, nil
}

// encodeJoined fetches src, joins a column with sep and encodes the result
// as one sequence.
func (l *Loader) encodeJoined(ctx context.Context, req *request, src corpus.Source, column, sep string,
) (tokenization.TokenSequence, error) {
	texts, err := l.fetchColumn(ctx, src, column)
	if err != nil {
		return nil, err
	}
	return l.encodeText(ctx, req, src.Name, strings.Join(texts, sep))
}

// encodeText encodes text, going through the encoding cache when one is
// configured. Cache failures fall back to encoding.
func (l *Loader) encodeText(ctx context.Context, req *request, source, text string,
) (tokenization.TokenSequence, error) {
	if l.cache == nil {
		return encode(req.tokenizer, text)
	}

	debugLogger := klog.FromContext(ctx).V(logging.DEBUG).WithName("calibration.Loader.encodeText")

	corpusName, split, _ := strings.Cut(source, "/")
	key, err := tokencache.NewKey(req.opts.Model, corpusName, split, text)
	if err != nil {
		return nil, fmt.Errorf("failed to build cache key: %w", err)
	}

	cached, ok, err := l.cache.Get(ctx, key)
	switch {
	case err != nil:
		debugLogger.Info("encoding cache lookup failed", "key", key.String(), "err", err)
	case ok:
		debugLogger.Info("encoding cache hit", "key", key.String(), "tokens", len(cached))
		return slices.Clone(cached), nil
	}

	tokens, err := encode(req.tokenizer, text)
	if err != nil {
		return nil, err
	}

	if err := l.cache.Add(ctx, key, slices.Clone(tokens)); err != nil {
		debugLogger.Info("failed to cache encoding", "key", key.String(), "err", err)
	}
	return tokens, nil
}

func encode(tokenizer tokenization.Tokenizer, text string) (tokenization.TokenSequence, error) {
	tokens, err := tokenizer.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("failed to encode: %w", err)
	}
	return tokens, nil
}
