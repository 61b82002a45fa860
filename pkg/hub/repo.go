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

package hub

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	hfhub "github.com/gomlx/go-huggingface/hub"
	"k8s.io/klog/v2"

	"github.com/llm-d/llm-d-calibration-data/pkg/utils/logging"
)

// repoCacheDir is the subdirectory of the cache used by go-huggingface's
// snapshot layout.
const repoCacheDir = "repos"

// usesRepoLibrary reports whether ref is served by a go-huggingface repository.
// Mirror endpoints and revisions naming a git ref path, such as
// refs/convert/parquet, go through resolve URLs.
func (c *Client) usesRepoLibrary(ref FileRef) bool {
	return c.endpoint == defaultEndpoint && !strings.Contains(ref.revision(), "/")
}

func (c *Client) repo(ref FileRef) *hfhub.Repo {
	repoType := hfhub.RepoTypeModel
	if ref.Type == RepoTypeDataset {
		repoType = hfhub.RepoTypeDataset
	}

	repo := hfhub.New(ref.Repo).
		WithType(repoType).
		WithRevision(ref.revision()).
		WithCacheDir(filepath.Join(c.cacheDir, repoCacheDir))
	if c.token != "" {
		repo = repo.WithAuth(c.token)
	}
	return repo
}

type repoDownload struct {
	path string
	err  error
}

// downloadRepoFile fetches ref into go-huggingface's cache. The library call
// is not cancellable, so a cancelled ctx returns early and leaves the
// download to finish in the background.
func (c *Client) downloadRepoFile(ctx context.Context, ref FileRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("failed to download %s: %w", ref.String(), err)
	}

	repo := c.repo(ref)
	done := make(chan repoDownload, 1)
	go func() {
		path, err := repo.DownloadFile(ref.Path)
		done <- repoDownload{path: path, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("failed to download %s: %w", ref.String(), ctx.Err())
	case res := <-done:
		if res.err == nil {
			klog.FromContext(ctx).V(logging.DEBUG).Info("downloaded through hub repository",
				"file", ref.String(), "path", res.path)
			return res.path, nil
		}
		// the library does not type its errors; a file missing from the
		// listing is reported as ErrNotFound
		if files, err := c.listRepoFiles(ref); err == nil && !slices.Contains(files, ref.Path) {
			return "", fmt.Errorf("failed to download %s: %w", ref.String(), ErrNotFound)
		}
		return "", fmt.Errorf("failed to download %s: %w", ref.String(), res.err)
	}
}

func (c *Client) listRepoFiles(ref FileRef) ([]string, error) {
	var files []string
	for name, err := range c.repo(ref).IterFileNames() {
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", ref.String(), err)
		}
		files = append(files, name)
	}
	return files, nil
}

// ListFiles returns the sorted paths of the repository files under the
// directory ref.Path. An empty Path lists the whole repository.
func (c *Client) ListFiles(ctx context.Context, ref FileRef) ([]string, error) {
	var (
		files []string
		err   error
	)
	if c.usesRepoLibrary(ref) {
		files, err = c.listRepoFiles(ref)
	} else {
		files, err = c.listResolved(ctx, ref)
	}
	if err != nil {
		return nil, err
	}

	if dir := strings.Trim(ref.Path, "/"); dir != "" {
		files = slices.DeleteFunc(files, func(file string) bool {
			return !strings.HasPrefix(file, dir+"/")
		})
	}
	slices.Sort(files)
	return files, nil
}
