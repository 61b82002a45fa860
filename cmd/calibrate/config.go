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
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/llm-d/llm-d-calibration-data/pkg/calibration"
	"github.com/llm-d/llm-d-calibration-data/pkg/tokencache"
)

// fileConfig is the YAML file read with --config.
// Pointer fields distinguish "not set" from zero values.
type fileConfig struct {
	Name       *string `yaml:"name"`
	NSamples   *int64  `yaml:"nsamples"`
	Seed       *int64  `yaml:"seed"`
	SeqLen     *int64  `yaml:"seqlen"`
	Model      *string `yaml:"model"`
	CodeCorpus *string `yaml:"code_corpus"`

	Output *string `yaml:"output"`
	Format *string `yaml:"format"`

	Hub struct {
		Endpoint string        `yaml:"endpoint"`
		Token    string        `yaml:"token"`
		CacheDir string        `yaml:"cache_dir"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"hub"`

	Cache struct {
		Backend                string        `yaml:"backend"`
		Size                   string        `yaml:"size"`
		RedisAddress           string        `yaml:"redis_address"`
		TTL                    time.Duration `yaml:"ttl"`
		EnableMetrics          bool          `yaml:"enable_metrics"`
		MetricsLoggingInterval time.Duration `yaml:"metrics_logging_interval"`
	} `yaml:"cache"`

	Workers           *int64 `yaml:"workers"`
	MaxRecordAttempts *int64 `yaml:"max_record_attempts"`
}

// loadConfig reads the YAML file at path. An empty path yields a zero config.
func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyFile copies file values into s for every flag that was not set
// explicitly.
func (s *settings) applyFile(cfg fileConfig, isSet func(name string) bool) {
	setString := func(flag string, dst *string, value *string) {
		if value != nil && !isSet(flag) {
			*dst = *value
		}
	}
	setInt := func(flag string, dst *int64, value *int64) {
		if value != nil && !isSet(flag) {
			*dst = *value
		}
	}

	setString("name", &s.name, cfg.Name)
	setInt("nsamples", &s.nsamples, cfg.NSamples)
	setInt("seed", &s.seed, cfg.Seed)
	setInt("seqlen", &s.seqlen, cfg.SeqLen)
	setString("model", &s.model, cfg.Model)
	setString("code-corpus", &s.codeCorpus, cfg.CodeCorpus)
	setString("output", &s.output, cfg.Output)
	setString("format", &s.format, cfg.Format)
	setInt("workers", &s.workers, cfg.Workers)
	setInt("max-record-attempts", &s.maxRecordAttempts, cfg.MaxRecordAttempts)

	if cfg.Hub.Endpoint != "" && !isSet("hub-endpoint") {
		s.hubEndpoint = cfg.Hub.Endpoint
	}
	if cfg.Hub.Token != "" && !isSet("hf-token") {
		s.hfToken = cfg.Hub.Token
	}
	if cfg.Hub.CacheDir != "" && !isSet("hub-cache-dir") {
		s.hubCacheDir = cfg.Hub.CacheDir
	}
	if cfg.Cache.Backend != "" && !isSet("cache") {
		s.cacheBackend = cfg.Cache.Backend
	}
	if cfg.Cache.Size != "" && !isSet("cache-size") {
		s.cacheSize = cfg.Cache.Size
	}
	if cfg.Cache.RedisAddress != "" && !isSet("redis-addr") {
		s.redisAddress = cfg.Cache.RedisAddress
	}
}

// loaderConfig builds the Loader configuration from the merged settings.
func (s *settings) loaderConfig(cfg fileConfig) (*calibration.Config, error) {
	config := calibration.NewDefaultConfig()

	if s.hubEndpoint != "" {
		config.HubConfig.Endpoint = s.hubEndpoint
	}
	if s.hubCacheDir != "" {
		config.HubConfig.CacheDir = s.hubCacheDir
	}
	if cfg.Hub.Timeout > 0 {
		config.HubConfig.Timeout = cfg.Hub.Timeout
	}
	config.HubConfig.Token = s.hfToken

	config.TokenizationConfig.WorkersCount = int(s.workers)
	config.MaxRecordAttempts = int(s.maxRecordAttempts)

	cache := &tokencache.Config{
		EnableMetrics:          cfg.Cache.EnableMetrics,
		MetricsLoggingInterval: cfg.Cache.MetricsLoggingInterval,
	}
	switch s.cacheBackend {
	case cacheBackendMemory, "":
		cache.InMemoryConfig = tokencache.DefaultInMemoryStoreConfig()
	case cacheBackendCostAware:
		cache.CostAwareMemoryConfig = &tokencache.CostAwareMemoryStoreConfig{Size: s.cacheSize}
	case cacheBackendRedis:
		cache.RedisConfig = &tokencache.RedisStoreConfig{Address: s.redisAddress, TTL: cfg.Cache.TTL}
	case cacheBackendNone:
		cache = nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", s.cacheBackend)
	}
	config.CacheConfig = cache

	return config, nil
}
