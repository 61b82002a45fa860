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

package main

import (
	"github.com/urfave/cli/v3"

	"github.com/llm-d/llm-d-calibration-data/pkg/calibration"
)

const envHFToken = "HF_TOKEN"

const (
	cacheBackendMemory    = "memory"
	cacheBackendCostAware = "cost-aware"
	cacheBackendRedis     = "redis"
	cacheBackendNone      = "none"
)

// settings collects the flag values of one run.
type settings struct {
	configPath string

	name       string
	nsamples   int64
	seed       int64
	seqlen     int64
	model      string
	codeCorpus string

	output string
	format string

	hfToken     string
	hubEndpoint string
	hubCacheDir string

	cacheBackend string
	cacheSize    string
	redisAddress string

	workers           int64
	maxRecordAttempts int64
	verbosity         int64
}

func (s *settings) flags() []cli.Flag {
	defaults := calibration.DefaultOptions()

	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "YAML file with default values; flags take precedence",
			Destination: &s.configPath,
		},
		&cli.StringFlag{
			Name:        "name",
			Aliases:     []string{"n"},
			Usage:       "corpus name, matched by substring: wikitext2, ptb, c4 or code",
			Destination: &s.name,
		},
		&cli.Int64Flag{
			Name:        "nsamples",
			Usage:       "number of calibration windows",
			Value:       int64(defaults.NSamples),
			Destination: &s.nsamples,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "random seed",
			Value:       defaults.Seed,
			Destination: &s.seed,
		},
		&cli.Int64Flag{
			Name:        "seqlen",
			Usage:       "window length in tokens",
			Value:       int64(defaults.SeqLen),
			Destination: &s.seqlen,
		},
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "hub model id whose tokenizer is used",
			Destination: &s.model,
		},
		&cli.StringFlag{
			Name:        "code-corpus",
			Usage:       "corpus behind the code key (humaneval, codeparrot)",
			Value:       defaults.CodeCorpus,
			Destination: &s.codeCorpus,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "path of the exported calibration set",
			Value:       "calibration.json",
			Destination: &s.output,
		},
		&cli.StringFlag{
			Name:        "format",
			Usage:       "export format (json, msgpack); inferred from --output when empty",
			Destination: &s.format,
		},
		&cli.StringFlag{
			Name:        "hf-token",
			Usage:       "hub access token",
			Sources:     cli.EnvVars(envHFToken),
			Destination: &s.hfToken,
		},
		&cli.StringFlag{
			Name:        "hub-endpoint",
			Usage:       "base URL of the hub",
			Destination: &s.hubEndpoint,
		},
		&cli.StringFlag{
			Name:        "hub-cache-dir",
			Usage:       "directory for downloaded tokenizer and dataset files",
			Destination: &s.hubCacheDir,
		},
		&cli.StringFlag{
			Name:        "cache",
			Usage:       "encoding cache backend (memory, cost-aware, redis, none)",
			Value:       cacheBackendMemory,
			Destination: &s.cacheBackend,
		},
		&cli.StringFlag{
			Name:        "cache-size",
			Usage:       "memory bound of the cost-aware cache, e.g. 2GiB",
			Value:       "1GiB",
			Destination: &s.cacheSize,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "address of the redis encoding cache",
			Value:       "redis://127.0.0.1:6379",
			Destination: &s.redisAddress,
		},
		&cli.Int64Flag{
			Name:        "workers",
			Usage:       "encode workers for per-record corpora; 0 uses one per CPU",
			Destination: &s.workers,
		},
		&cli.Int64Flag{
			Name:        "max-record-attempts",
			Usage:       "bound on c4 record draws per window; 0 is unbounded",
			Destination: &s.maxRecordAttempts,
		},
		&cli.Int64Flag{
			Name:        "v",
			Usage:       "log verbosity",
			Destination: &s.verbosity,
		},
	}
}

func (s *settings) options() calibration.Options {
	return calibration.Options{
		Name:       s.name,
		NSamples:   int(s.nsamples),
		Seed:       s.seed,
		SeqLen:     int(s.seqlen),
		Model:      s.model,
		CodeCorpus: s.codeCorpus,
	}
}
