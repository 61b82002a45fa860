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

package calibration_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-d/llm-d-calibration-data/pkg/calibration"
	"github.com/llm-d/llm-d-calibration-data/pkg/corpus"
	"github.com/llm-d/llm-d-calibration-data/pkg/metrics"
	"github.com/llm-d/llm-d-calibration-data/pkg/tokenization"
)

func TestGetLoaders_HumanEval(t *testing.T) {
	prompts := make([]string, 10)
	solutions := make([]string, 10)
	for i := range prompts {
		prompts[i] = numbers(i*500, (i+1)*500)
		solutions[i] = numbers(10000+i*1000, 10000+(i+1)*1000)
	}
	fetcher := newFakeFetcher().with(corpus.HumanEvalSource(), map[string][]string{
		corpus.ColumnPrompt:            prompts,
		corpus.ColumnCanonicalSolution: solutions,
	})
	loader, _, _ := newTestLoader(fetcher, nil)

	samples, eval, err := loader.GetLoaders(context.Background(), options("code", 20, 64))
	require.NoError(t, err)

	// windows come from the first 4096 prompt tokens
	want, err := calibration.MakeWindowsSeeded(seqRange(0, 4096), 20, 0, 64)
	require.NoError(t, err)
	assert.Equal(t, want, samples)

	assert.False(t, eval.IsPerRecord())
	assert.Equal(t, seqRange(10000, 10000+4096), eval.InputIDs)
	assert.Equal(t, []string{"humaneval/test"}, fetcher.fetched)
}

func TestGetLoaders_HumanEvalWindowTooLong(t *testing.T) {
	fetcher := newFakeFetcher().with(corpus.HumanEvalSource(), map[string][]string{
		corpus.ColumnPrompt:            {numbers(0, 5000)},
		corpus.ColumnCanonicalSolution: {numbers(0, 10)},
	})
	loader, _, _ := newTestLoader(fetcher, nil)

	_, _, err := loader.GetLoaders(context.Background(), options("code", 1, 4096))
	assert.ErrorIs(t, err, calibration.ErrSequenceTooShort)
}

func codeParrotFetcher() *fakeFetcher {
	train := make([]string, 40)
	for i := range train {
		if i%2 == 0 {
			train[i] = numbers(i*100, i*100+3)
		} else {
			train[i] = numbers(i*100, i*100+50)
		}
	}

	return newFakeFetcher().
		with(corpus.CodeParrotSource(corpus.SplitTrain), map[string][]string{corpus.ColumnContent: train}).
		with(corpus.CodeParrotSource(corpus.SplitValidation), map[string][]string{
			corpus.ColumnContent: {numbers(0, 5), "", numbers(7, 9)},
		})
}

func TestGetLoaders_CodeParrot(t *testing.T) {
	loader, _, _ := newTestLoader(codeParrotFetcher(), &calibration.Config{
		TokenizationConfig: &tokenization.Config{WorkersCount: 4},
	})

	opts := options("code", 40, 8)
	opts.CodeCorpus = calibration.CodeCorpusCodeParrot

	before, err := metrics.TakeSnapshot()
	require.NoError(t, err)

	samples, eval, err := loader.GetLoaders(context.Background(), opts)
	require.NoError(t, err)

	after, err := metrics.TakeSnapshot()
	require.NoError(t, err)

	// half the records are short: drawing one drops the window instead of redrawing
	assert.Less(t, len(samples), 40)
	assert.NotEmpty(t, samples)
	assert.InDelta(t, float64(40-len(samples)), after.Skipped-before.Skipped, 0)
	for _, sample := range samples {
		assertWindow(t, sample, 8)
		record := sample.Input[0] / 100
		assert.Equal(t, int64(1), record%2, "window %v must come from a long record", sample.Input)
		assert.True(t, isRunOf(sample.Input, seqRange(int(record)*100, int(record)*100+50)))
	}

	require.True(t, eval.IsPerRecord())
	assert.Equal(t, []tokenization.TokenSequence{seqRange(0, 5), {}, seqRange(7, 9)}, eval.Records)

	again, _, err := loader.GetLoaders(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, samples, again, "record order must not depend on worker scheduling")
}
