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

package corpus

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/llm-d/llm-d-calibration-data/pkg/hub"
	"github.com/llm-d/llm-d-calibration-data/pkg/utils"
	"github.com/llm-d/llm-d-calibration-data/pkg/utils/logging"
)

// Fetcher retrieves the records of a dataset split.
type Fetcher interface {
	// Fetch returns the records of src, in file order.
	Fetch(ctx context.Context, src Source) (*Table, error)
}

// maxParallelDownloads bounds concurrent file downloads per Fetch call.
const maxParallelDownloads = 4

// HubFetcher implements Fetcher by downloading dataset files from the hub.
type HubFetcher struct {
	client *hub.Client
}

var _ Fetcher = &HubFetcher{}

// NewHubFetcher creates a HubFetcher using client for downloads.
func NewHubFetcher(client *hub.Client) *HubFetcher {
	return &HubFetcher{client: client}
}

// Fetch downloads the files of src, reads the requested columns and applies
// the record fraction. For parquet sources the fraction is taken over the
// row count of the whole split, read from the shard footers, and only the
// leading shards that hold the kept records are downloaded.
func (f *HubFetcher) Fetch(ctx context.Context, src Source) (*Table, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	logger := klog.FromContext(ctx).WithName("corpus.HubFetcher")
	start := time.Now()

	files, err := f.splitFiles(ctx, src)
	if err != nil {
		return nil, err
	}

	keep := -1
	if src.Fraction > 0 && src.Fraction < 1 && src.isParquet(files) {
		if files, keep, err = f.leadingShards(ctx, src, files); err != nil {
			return nil, err
		}
	}

	table, err := f.readFiles(ctx, src, files)
	if err != nil {
		return nil, err
	}

	if keep >= 0 {
		table = table.Head(keep)
	} else {
		table = ApplyFraction(table, src.Fraction)
	}

	logger.Info("fetched corpus", "source", src.Name, "files", len(files), "records", table.Len(),
		"took", time.Since(start))
	return table, nil
}

func (f *HubFetcher) ref(src Source, file string) hub.FileRef {
	return hub.FileRef{
		Repo:     src.Repo,
		Type:     hub.RepoTypeDataset,
		Revision: src.Revision,
		Path:     file,
	}
}

// splitFiles returns src.Files, or the parquet shards of the first split
// directory that has any.
func (f *HubFetcher) splitFiles(ctx context.Context, src Source) ([]string, error) {
	if len(src.Files) > 0 {
		return src.Files, nil
	}

	for _, dir := range src.SplitDirs {
		files, err := f.client.ListFiles(ctx, f.ref(src, dir))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", src.Name, err)
		}
		files = slices.DeleteFunc(files, func(file string) bool {
			return !strings.HasSuffix(file, ".parquet")
		})
		if len(files) > 0 {
			return files, nil
		}
	}

	return nil, fmt.Errorf("no parquet shards for %s under %v: %w", src.Name, src.SplitDirs, hub.ErrNotFound)
}

// leadingShards counts the rows of every shard and returns the shards that
// hold the leading ceil(total*fraction) records, and that record count.
func (f *HubFetcher) leadingShards(ctx context.Context, src Source, files []string) ([]string, int, error) {
	debugLogger := klog.FromContext(ctx).V(logging.DEBUG).WithName("corpus.HubFetcher")

	counts := make([]int64, len(files))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelDownloads)
	for i, file := range files {
		group.Go(func() error {
			rows, err := CountRemoteParquetRows(groupCtx, f.client, f.ref(src, file))
			if err != nil {
				return fmt.Errorf("failed to count records of %s: %w", src.Name, err)
			}
			counts[i] = rows
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, 0, err
	}

	var total int64
	for _, rows := range counts {
		total += rows
	}
	keep := int(math.Ceil(float64(total) * src.Fraction))

	var covered int64
	shards := 0
	for shards < len(files) && covered < int64(keep) {
		covered += counts[shards]
		shards++
	}

	debugLogger.Info("selected leading shards", "source", src.Name, "shards", shards,
		"totalShards", len(files), "splitRecords", total, "keep", keep)
	return files[:shards], keep, nil
}

// readFiles downloads files in parallel and concatenates them in order.
func (f *HubFetcher) readFiles(ctx context.Context, src Source, files []string) (*Table, error) {
	if len(files) == 0 {
		return emptyTable(src.Columns), nil
	}

	paths := make([]string, len(files))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelDownloads)
	for i, file := range files {
		group.Go(func() error {
			path, err := f.client.Download(groupCtx, f.ref(src, file))
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", src.Name, err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	parts, err := utils.SliceMapE(paths, func(path string) (*Table, error) {
		return readFile(path, src.formatOf(path), src.Columns)
	})
	if err != nil {
		return nil, err
	}

	var table *Table
	for i, part := range parts {
		if table, err = table.Append(part); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", files[i], err)
		}
	}
	return table, nil
}

func emptyTable(columns []string) *Table {
	values := make(map[string][]string, len(columns))
	for _, name := range columns {
		values[name] = []string{}
	}
	return &Table{columns: values}
}

func readFile(path string, format Format, columns []string) (*Table, error) {
	switch format {
	case FormatParquet:
		return ReadParquetFile(path, columns...)
	case FormatJSONLines:
		return ReadJSONLinesFile(path, columns...)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// ApplyFraction keeps the leading ceil(n*fraction) records of table.
// A fraction of 0 or 1 keeps the whole table.
func ApplyFraction(table *Table, fraction float64) *Table {
	if fraction <= 0 || fraction >= 1 {
		return table
	}
	keep := int(math.Ceil(float64(table.Len()) * fraction))
	return table.Head(keep)
}
