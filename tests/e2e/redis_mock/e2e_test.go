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

//nolint:testpackage // allow tests to run in the same package
package e2e

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/llm-d/llm-d-calibration-data/pkg/calibration"
	"github.com/llm-d/llm-d-calibration-data/pkg/export"
	"github.com/llm-d/llm-d-calibration-data/pkg/metrics"
)

const wikiTextPath = "/datasets/Salesforce/wikitext/resolve/main/wikitext-2-raw-v1/%s-00000-of-00001.parquet"

func (s *CalibrationSuite) serveWikiText() {
	train := make([]string, 20)
	for i := range train {
		train[i] = words(i*7, 30)
	}
	s.serveParquet(strings.Replace(wikiTextPath, "%s", "train", 1), train)
	s.serveParquet(strings.Replace(wikiTextPath, "%s", "test", 1), []string{words(0, 10), words(10, 10)})
}

func (s *CalibrationSuite) options(name string) calibration.Options {
	opts := calibration.DefaultOptions()
	opts.Name = name
	opts.NSamples = 8
	opts.SeqLen = 16
	opts.Model = defaultModelName
	return opts
}

// TestWikiText2E2E verifies that windows are drawn from the encoded train
// split and that a repeated call is served from the Redis cache.
func (s *CalibrationSuite) TestWikiText2E2E() {
	s.serveWikiText()
	opts := s.options("wikitext2")

	samples, eval, err := s.loader.GetLoaders(s.ctx, opts)
	s.Require().NoError(err)
	s.Len(samples, opts.NSamples)
	for _, sample := range samples {
		s.Len(sample.Input, opts.SeqLen)
		s.Equal(sample.Input[opts.SeqLen-1], sample.Target[opts.SeqLen-1])
		s.Equal(calibration.Mask, sample.Target[0])
		for _, id := range sample.Input {
			s.GreaterOrEqual(id, int64(1))
			s.LessOrEqual(id, int64(vocabWords+2))
		}
	}

	// llama tokenizers lead with BOS; the blank-line separator adds no tokens
	s.False(eval.IsPerRecord())
	s.Len(eval.InputIDs, 21)
	s.Equal(int64(1), eval.InputIDs[0])
	s.Equal(int64(3), eval.InputIDs[1])

	keys := s.server.Keys()
	s.Len(keys, 2, "train and test encodings are cached")
	for _, key := range keys {
		s.True(strings.HasPrefix(key, "calibration:encoding:"+defaultModelName), key)
	}

	before, err := metrics.TakeSnapshot()
	s.Require().NoError(err)

	again, _, err := s.loader.GetLoaders(s.ctx, opts)
	s.Require().NoError(err)
	s.Equal(samples, again)

	after, err := metrics.TakeSnapshot()
	s.Require().NoError(err)
	s.Equal(before.CacheHits+2, after.CacheHits)
}

// TestC4E2E verifies record-level sampling over a gzip-compressed shard.
func (s *CalibrationSuite) TestC4E2E() {
	train := []string{words(0, 3), words(5, 40), words(9, 2), words(20, 25)}
	s.serveJSONLinesGzip("/datasets/allenai/c4/resolve/main/en/c4-train.00000-of-01024.json.gz", train)
	validation := make([]string, 1200)
	for i := range validation {
		validation[i] = words(i, 1)
	}
	s.serveJSONLinesGzip("/datasets/allenai/c4/resolve/main/en/c4-validation.00000-of-00008.json.gz", validation)

	opts := s.options("c4")
	opts.SeqLen = 4
	samples, eval, err := s.loader.GetLoaders(s.ctx, opts)
	s.Require().NoError(err)
	s.Len(samples, opts.NSamples)

	// BOS plus the first 1100 records, cut at 256 windows
	s.Len(eval.InputIDs, 256*opts.SeqLen)
	s.Equal(int64(1), eval.InputIDs[0])
}

// TestExportE2E verifies that a loader result survives an export round trip.
func (s *CalibrationSuite) TestExportE2E() {
	s.serveWikiText()
	opts := s.options("wikitext2-custom")

	samples, eval, err := s.loader.GetLoaders(s.ctx, opts)
	s.Require().NoError(err)

	path := filepath.Join(s.T().TempDir(), "calibration.json")
	set := export.NewSet(opts, samples, eval)
	s.Require().NoError(export.WriteFile(path, set, export.FormatFromPath(path)))

	f, err := os.Open(path)
	s.Require().NoError(err)
	defer f.Close()

	got, err := export.Read(f, export.FormatJSON)
	s.Require().NoError(err)
	s.Equal(set.RunID, got.RunID)
	s.Equal(samples, got.Samples)
	s.Equal(eval.InputIDs, got.Eval.InputIDs)
}

// TestUnknownModel verifies that a missing tokenizer surfaces as an error.
func (s *CalibrationSuite) TestUnknownModel() {
	s.serveWikiText()
	opts := s.options("wikitext2")
	opts.Model = "acme/missing"

	_, _, err := s.loader.GetLoaders(s.ctx, opts)
	s.Error(err)
}
