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
	"strings"

	"github.com/llm-d/llm-d-calibration-data/pkg/corpus"
	"github.com/llm-d/llm-d-calibration-data/pkg/metrics"
	"github.com/llm-d/llm-d-calibration-data/pkg/tokenization"
	"github.com/llm-d/llm-d-calibration-data/pkg/utils"
)

// loadCode serves the "code" key from the corpus selected by
// Options.CodeCorpus. The two corpora are never mixed.
func (l *Loader) loadCode(ctx context.Context, req *request) (TrainSet, EvalStream, error) {
	if req.opts.CodeCorpus == CodeCorpusCodeParrot {
		return l.loadCodeParrot(ctx, req)
	}
	return l.loadHumanEval(ctx, req)
}

// loadHumanEval windows the joined problem prompts. The joined canonical
// solutions are the eval stream. Both encodings keep their first
// codeMaxTokens tokens.
func (l *Loader) loadHumanEval(ctx context.Context, req *request) (TrainSet, EvalStream, error) {
	src := corpus.HumanEvalSource()
	table, err := l.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, EvalStream{}, fmt.Errorf("failed to fetch %s: %w", src.Name, err)
	}

	prompts, err := l.encodeText(ctx, req, src.Name, strings.Join(table.Column(corpus.ColumnPrompt), " "))
	if err != nil {
		return nil, EvalStream{}, err
	}
	solutions, err := l.encodeText(ctx, req, src.Name, strings.Join(table.Column(corpus.ColumnCanonicalSolution), " "))
	if err != nil {
		return nil, EvalStream{}, err
	}
	prompts = utils.Truncate(prompts, codeMaxTokens)
	solutions = utils.Truncate(solutions, codeMaxTokens)

	samples, err := MakeWindows(prompts, req.opts.NSamples, req.rng, req.opts.SeqLen)
	if err != nil {
		return nil, EvalStream{}, err
	}

	return samples, EvalStream{InputIDs: solutions}, nil
}

// loadCodeParrot encodes every record of a CodeParrot slice in parallel and draws
// each window from one uniformly drawn record. A drawn record that is not
// longer than the window is skipped, so fewer than NSamples windows may be
// returned. The eval stream holds the per-record validation encodings.
func (l *Loader) loadCodeParrot(ctx context.Context, req *request) (TrainSet, EvalStream, error) {
	pool := tokenization.NewTokenizationPool(l.config.TokenizationConfig, req.tokenizer)

	train, err := l.encodeRecords(ctx, pool, corpus.CodeParrotSource(corpus.SplitTrain))
	if err != nil {
		return nil, EvalStream{}, err
	}
	if len(train) == 0 {
		return nil, EvalStream{}, fmt.Errorf("failed to draw code record: %w", ErrEmptyCorpus)
	}

	samples := make(TrainSet, 0, req.opts.NSamples)
	for range req.opts.NSamples {
		record := train[req.rng.IntN(len(train))]
		if len(record) <= req.opts.SeqLen {
			metrics.RecordsSkipped.Inc()
			continue
		}

		sample, err := DrawWindow(record, req.rng, req.opts.SeqLen)
		if err != nil {
			return nil, EvalStream{}, err
		}
		samples = append(samples, sample)
	}

	validation, err := l.encodeRecords(ctx, pool, corpus.CodeParrotSource(corpus.SplitValidation))
	if err != nil {
		return nil, EvalStream{}, err
	}

	return samples, EvalStream{Records: validation}, nil
}

// encodeRecords encodes each record of src independently, in record order.
func (l *Loader) encodeRecords(ctx context.Context, pool *tokenization.Pool, src corpus.Source,
) ([]tokenization.TokenSequence, error) {
	texts, err := l.fetchColumn(ctx, src, corpus.ColumnContent)
	if err != nil {
		return nil, err
	}

	encodings, err := pool.EncodeAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", src.Name, err)
	}
	return encodings, nil
}
