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
	"errors"
	"fmt"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"

	"github.com/llm-d/llm-d-calibration-data/pkg/utils"
)

// ErrUnknownCorpus is returned when a name matches no known corpus.
var ErrUnknownCorpus = errors.New("unknown corpus")

// CorpusKind is a corpus family served by GetLoaders.
type CorpusKind string

const (
	KindWikiText2 CorpusKind = "wikitext2"
	KindPTB       CorpusKind = "ptb"
	KindC4        CorpusKind = "c4"
	KindCode      CorpusKind = "code"
)

// matchOrder is the priority in which names are matched.
var matchOrder = []CorpusKind{KindWikiText2, KindPTB, KindC4, KindCode}

// Match returns the first corpus kind, in priority order wikitext2, ptb, c4,
// code, whose name is a substring of name.
func Match(name string) (CorpusKind, bool) {
	for _, kind := range matchOrder {
		if strings.Contains(name, string(kind)) {
			return kind, true
		}
	}
	return "", false
}

// KnownCorpora returns the names Match recognizes.
func KnownCorpora() sets.Set[string] {
	return sets.New(utils.SliceMap(matchOrder, func(kind CorpusKind) string {
		return string(kind)
	})...)
}

// GetLoaders resolves the tokenizer of opts.Model, selects the corpus from
// opts.Name and returns the calibration windows and the eval stream.
// All draws come from one generator seeded with opts.Seed, so equal options
// give equal results.
func (l *Loader) GetLoaders(ctx context.Context, opts Options) (TrainSet, EvalStream, error) {
	logger := klog.FromContext(ctx).WithName("calibration.GetLoaders")

	if err := opts.Validate(); err != nil {
		return nil, EvalStream{}, err
	}
	kind, ok := Match(opts.Name)
	if !ok {
		return nil, EvalStream{}, fmt.Errorf("%w: %q matches none of %v",
			ErrUnknownCorpus, opts.Name, sets.List(KnownCorpora()))
	}

	tokenizer, err := l.resolver.Resolve(ctx, opts.Model)
	if err != nil {
		return nil, EvalStream{}, fmt.Errorf("failed to resolve tokenizer: %w", err)
	}

	logger.Info("loading calibration data", "name", opts.Name, "corpus", kind, "nsamples", opts.NSamples,
		"seed", opts.Seed, "seqlen", opts.SeqLen, "model", opts.Model)
	start := time.Now()

	req := &request{
		opts:      opts,
		tokenizer: tokenizer,
		rng:       NewRand(opts.Seed),
	}
	samples, eval, err := l.load(ctx, kind, req)
	if err != nil {
		return nil, EvalStream{}, fmt.Errorf("failed to load %s: %w", kind, err)
	}

	logger.Info("loaded calibration data", "corpus", kind, "samples", len(samples),
		"evalTokens", eval.Len(), "took", time.Since(start))
	return samples, eval, nil
}

func (l *Loader) load(ctx context.Context, kind CorpusKind, req *request) (TrainSet, EvalStream, error) {
	switch kind {
	case KindWikiText2:
		return l.loadWikiText2(ctx, req)
	case KindPTB:
		return l.loadPTB(ctx, req)
	case KindC4:
		return l.loadC4(ctx, req)
	case KindCode:
		return l.loadCode(ctx, req)
	default:
		return nil, EvalStream{}, fmt.Errorf("%w: %s", ErrUnknownCorpus, kind)
	}
}
