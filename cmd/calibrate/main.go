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

// Command calibrate draws a calibration set from a named corpus and writes
// it to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"
	"k8s.io/klog/v2"

	"github.com/llm-d/llm-d-calibration-data/pkg/calibration"
	"github.com/llm-d/llm-d-calibration-data/pkg/export"
)

func main() {
	s := &settings{}
	app := &cli.Command{
		Name:  "calibrate",
		Usage: "Draw calibration windows for post-training quantization",
		Flags: s.flags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd, s)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command, s *settings) error {
	if err := initLogging(s.verbosity); err != nil {
		return err
	}
	defer klog.Flush()
	logger := klog.FromContext(ctx)

	cfg, err := loadConfig(s.configPath)
	if err != nil {
		return err
	}
	s.applyFile(cfg, cmd.IsSet)

	opts := s.options()
	if opts.Name == "" {
		return fmt.Errorf("--name is required (one of %v)", calibration.KnownCorpora().UnsortedList())
	}

	format := export.FormatFromPath(s.output)
	if s.format != "" {
		if format, err = export.ParseFormat(s.format); err != nil {
			return err
		}
	}

	loaderConfig, err := s.loaderConfig(cfg)
	if err != nil {
		return err
	}

	loader, err := calibration.NewLoader(ctx, loaderConfig)
	if err != nil {
		return fmt.Errorf("failed to create loader: %w", err)
	}

	samples, eval, err := loader.GetLoaders(ctx, opts)
	if err != nil {
		return err
	}

	set := export.NewSet(opts, samples, eval)
	if err := export.WriteFile(s.output, set, format); err != nil {
		return fmt.Errorf("failed to export calibration set: %w", err)
	}

	logger.Info("wrote calibration set", "path", s.output, "format", format, "runId", set.RunID,
		"samples", len(samples), "evalTokens", eval.Len())
	return nil
}

// initLogging applies the verbosity flag to klog.
func initLogging(verbosity int64) error {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	if err := fs.Set("v", strconv.FormatInt(verbosity, 10)); err != nil {
		return fmt.Errorf("failed to set log verbosity: %w", err)
	}
	return nil
}
