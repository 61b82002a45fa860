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
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/client-go/util/workqueue"
	"k8s.io/klog/v2"

	"github.com/llm-d/llm-d-calibration-data/pkg/metrics"
	"github.com/llm-d/llm-d-calibration-data/pkg/utils/logging"
)

// Task represents a unit of work for tokenizing one record.
type Task struct {
	Index int
	Text  string
}

// Pool tokenizes independent records in parallel. Each call to EncodeAll
// owns its queue, so a Pool may be shared.
type Pool struct {
	workers   int
	tokenizer Tokenizer
}

// NewTokenizationPool initializes a Pool with the configured number of
// workers. A non-positive WorkersCount uses one worker per CPU.
func NewTokenizationPool(config *Config, tokenizer Tokenizer) *Pool {
	if config == nil {
		config = DefaultConfig()
	}

	workers := config.WorkersCount
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Pool{
		workers:   workers,
		tokenizer: tokenizer,
	}
}

// EncodeAll tokenizes every text and returns the encodings in input order.
// Results are gathered by record index, so the order does not depend on
// scheduling. It blocks until all records are encoded, a record fails, or
// ctx is cancelled.
func (pool *Pool) EncodeAll(ctx context.Context, texts []string) ([]TokenSequence, error) {
	logger := klog.FromContext(ctx).WithName("tokenization.Pool")
	start := time.Now()

	results := make([]TokenSequence, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	queue := workqueue.NewTyped[Task]()
	for i, text := range texts {
		queue.Add(Task{Index: i, Text: text})
	}
	// drained by the workers, then Get reports shutdown
	queue.ShutDown()

	workers := min(pool.workers, len(texts))
	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			return pool.workerLoop(groupCtx, queue, results)
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	logger.Info("encoded records", "records", len(texts), "workers", workers, "took", time.Since(start))
	return results, nil
}

// workerLoop is the main processing loop for each worker.
func (pool *Pool) workerLoop(ctx context.Context, queue workqueue.TypedInterface[Task],
	results []TokenSequence,
) error {
	for {
		task, shutdown := queue.Get()
		if shutdown {
			return nil
		}

		err := pool.processTask(ctx, task, results)
		queue.Done(task)
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// processTask tokenizes one record into its slot of results.
func (pool *Pool) processTask(ctx context.Context, task Task, results []TokenSequence) error {
	start := time.Now()
	tokens, err := pool.tokenizer.Encode(task.Text)
	if err != nil {
		return fmt.Errorf("failed to encode record %d: %w", task.Index, err)
	}
	metrics.EncodeLatency.Observe(time.Since(start).Seconds())

	klog.FromContext(ctx).V(logging.TRACE).Info("encoded record", "index", task.Index, "tokens", len(tokens))
	results[task.Index] = tokens
	return nil
}
