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

	"k8s.io/klog/v2"

	"github.com/llm-d/llm-d-calibration-data/pkg/corpus"
	"github.com/llm-d/llm-d-calibration-data/pkg/metrics"
	"github.com/llm-d/llm-d-calibration-data/pkg/tokenization"
	"github.com/llm-d/llm-d-calibration-data/pkg/utils"
	"github.com/llm-d/llm-d-calibration-data/pkg/utils/logging"
)

var (
	// ErrEmptyCorpus is returned when a corpus that is sampled by record has
	// no records.
	ErrEmptyCorpus = errors.New("corpus has no records")
	// ErrNoLongRecord is returned when MaxRecordAttempts draws found no
	// record longer than the window.
	ErrNoLongRecord = errors.New("no record longer than the window")
)

// loadC4 draws every window from a single record: records are drawn
// uniformly and encoded one at a time until one is longer than the window.
// The eval stream is the head of the validation shard.
func (l *Loader) loadC4(ctx context.Context, req *request) (TrainSet, EvalStream, error) {
	train, err := l.fetchColumn(ctx, corpus.C4Source(corpus.SplitTrain), corpus.ColumnText)
	if err != nil {
		return nil, EvalStream{}, err
	}
	validation, err := l.fetchColumn(ctx, corpus.C4Source(corpus.SplitValidation), corpus.ColumnText)
	if err != nil {
		return nil, EvalStream{}, err
	}

	samples := make(TrainSet, 0, req.opts.NSamples)
	for range req.opts.NSamples {
		record, err := l.drawLongRecord(ctx, req, train)
		if err != nil {
			return nil, EvalStream{}, err
		}

		sample, err := DrawWindow(record, req.rng, req.opts.SeqLen)
		if err != nil {
			return nil, EvalStream{}, err
		}
		samples = append(samples, sample)
	}

	valText := strings.Join(utils.Truncate(validation, c4EvalRecords), " ")
	valenc, err := l.encodeText(ctx, req, corpus.C4Source(corpus.SplitValidation).Name, valText)
	if err != nil {
		return nil, EvalStream{}, err
	}

	return samples, EvalStream{InputIDs: utils.Truncate(valenc, c4EvalTokensPerSeqLen*req.opts.SeqLen)}, nil
}

// drawLongRecord returns the encoding of the first drawn record longer than
// the window. Every attempt draws from all of texts, so a record may be
// drawn again after being rejected.
func (l *Loader) drawLongRecord(ctx context.Context, req *request, texts []string,
) (tokenization.TokenSequence, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("failed to draw c4 record: %w", ErrEmptyCorpus)
	}

	traceLogger := klog.FromContext(ctx).V(logging.TRACE).WithName("calibration.drawLongRecord")

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if maxAttempts := l.config.MaxRecordAttempts; maxAttempts > 0 && attempt > maxAttempts {
			return nil, fmt.Errorf("%w: %d attempts, window of %d", ErrNoLongRecord, maxAttempts, req.opts.SeqLen)
		}

		index := req.rng.IntN(len(texts))
		tokens, err := encode(req.tokenizer, texts[index])
		if err != nil {
			return nil, fmt.Errorf("failed to encode record %d: %w", index, err)
		}
		if len(tokens) > req.opts.SeqLen {
			traceLogger.Info("accepted record", "index", index, "tokens", len(tokens), "attempt", attempt)
			return tokens, nil
		}

		metrics.RecordsRejected.Inc()
		traceLogger.Info("rejected short record", "index", index, "tokens", len(tokens))
	}
}
