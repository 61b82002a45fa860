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

	"github.com/llm-d/llm-d-calibration-data/pkg/corpus"
)

// loadWikiText2 windows the space-joined train split. The test split,
// joined by blank lines, is the eval stream.
func (l *Loader) loadWikiText2(ctx context.Context, req *request) (TrainSet, EvalStream, error) {
	return l.loadFlat(ctx, req, flatCorpus{
		train:    corpus.WikiText2Source(corpus.SplitTrain),
		test:     corpus.WikiText2Source(corpus.SplitTest),
		column:   corpus.ColumnText,
		trainSep: " ",
		testSep:  "\n\n",
	})
}

// loadPTB windows the space-joined train sentences. The test sentences,
// joined the same way, are the eval stream.
func (l *Loader) loadPTB(ctx context.Context, req *request) (TrainSet, EvalStream, error) {
	return l.loadFlat(ctx, req, flatCorpus{
		train:    corpus.PTBSource(corpus.SplitTrain),
		test:     corpus.PTBSource(corpus.SplitTest),
		column:   corpus.ColumnSentence,
		trainSep: " ",
		testSep:  " ",
	})
}

// flatCorpus is a corpus whose splits are each encoded as one sequence.
type flatCorpus struct {
	train, test       corpus.Source
	column            string
	trainSep, testSep string
}

func (l *Loader) loadFlat(ctx context.Context, req *request, c flatCorpus) (TrainSet, EvalStream, error) {
	trainenc, err := l.encodeJoined(ctx, req, c.train, c.column, c.trainSep)
	if err != nil {
		return nil, EvalStream{}, err
	}

	testenc, err := l.encodeJoined(ctx, req, c.test, c.column, c.testSep)
	if err != nil {
		return nil, EvalStream{}, err
	}

	samples, err := MakeWindows(trainenc, req.opts.NSamples, req.rng, req.opts.SeqLen)
	if err != nil {
		return nil, EvalStream{}, err
	}

	return samples, EvalStream{InputIDs: testenc}, nil
}
