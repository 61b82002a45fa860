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
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"k8s.io/klog/v2"

	"github.com/llm-d/llm-d-calibration-data/pkg/utils/logging"
)

// URL returns the resolve URL of a file.
func (c *Client) URL(ref FileRef) string {
	return fmt.Sprintf("%s/%s%s/resolve/%s/%s",
		c.endpoint, repoPrefix(ref.Type), ref.Repo, url.PathEscape(ref.revision()), ref.Path)
}

func repoPrefix(repoType RepoType) string {
	if repoType == RepoTypeDataset {
		return "datasets/"
	}
	return ""
}

// LocalPath returns where a file fetched through its resolve URL is stored.
func (c *Client) LocalPath(ref FileRef) string {
	typeDir := string(ref.Type) + "s"
	if ref.Type == "" {
		typeDir = string(RepoTypeModel) + "s"
	}
	revision := strings.ReplaceAll(ref.revision(), "/", "--")
	return filepath.Join(c.cacheDir, typeDir, filepath.FromSlash(ref.Repo), revision,
		filepath.FromSlash(ref.Path))
}

// downloadResolved fetches a file through its resolve URL unless it is
// already in the local cache.
func (c *Client) downloadResolved(ctx context.Context, ref FileRef) (string, error) {
	dst := c.LocalPath(ref)
	if _, err := os.Stat(dst); err == nil {
		klog.FromContext(ctx).V(logging.DEBUG).Info("using cached file", "file", ref.String(), "path", dst)
		return dst, nil
	}

	if err := c.fetch(ctx, ref, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func (c *Client) newRequest(ctx context.Context, method, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", target, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// checkStatus maps a hub response status to an error.
func checkStatus(resp *http.Response, ref FileRef, ok ...int) error {
	switch {
	case slices.Contains(ok, resp.StatusCode):
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("failed to fetch %s: %w", ref.String(), ErrNotFound)
	default:
		return fmt.Errorf("failed to fetch %s: status code %d", ref.String(), resp.StatusCode)
	}
}

func (c *Client) fetch(ctx context.Context, ref FileRef, dst string) error {
	logger := klog.FromContext(ctx).WithName("hub.Client")
	start := time.Now()

	req, err := c.newRequest(ctx, http.MethodGet, c.URL(ref))
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", ref.String(), err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, ref, http.StatusOK); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.partial")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op once renamed

	written, err := io.Copy(tmp, resp.Body)
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("failed to move download into cache: %w", err)
	}

	//nolint:gosec // written is never negative
	logger.Info("download complete", "file", ref.String(),
		"size", humanize.Bytes(uint64(written)), "took", time.Since(start))

	return nil
}

// Stat returns the size in bytes of a file without downloading it.
func (c *Client) Stat(ctx context.Context, ref FileRef) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodHead, c.URL(ref))
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", ref.String(), err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, ref, http.StatusOK); err != nil {
		return 0, err
	}
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("hub did not report the size of %s", ref.String())
	}
	return resp.ContentLength, nil
}

// ReadRange returns n bytes of a file starting at offset, without downloading
// the rest of it.
func (c *Client) ReadRange(ctx context.Context, ref FileRef, offset int64, n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}

	req, err := c.newRequest(ctx, http.MethodGet, c.URL(ref))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+int64(n)-1))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to read range of %s: %w", ref.String(), err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, ref, http.StatusPartialContent, http.StatusOK); err != nil {
		return nil, err
	}

	// a server that ignores Range sends the whole file
	if resp.StatusCode == http.StatusOK {
		if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
			return nil, fmt.Errorf("failed to skip to offset %d of %s: %w", offset, ref.String(), err)
		}
	}

	buf := make([]byte, n)
	read, err := io.ReadFull(resp.Body, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read range of %s: %w", ref.String(), err)
	}
	return buf[:read], nil
}

type revisionInfo struct {
	Siblings []struct {
		RFilename string `json:"rfilename"`
	} `json:"siblings"`
}

// listResolved lists a repository through the hub's revision API.
func (c *Client) listResolved(ctx context.Context, ref FileRef) ([]string, error) {
	target := fmt.Sprintf("%s/api/%s%s/revision/%s",
		c.endpoint, apiPrefix(ref.Type), ref.Repo, url.PathEscape(ref.revision()))

	req, err := c.newRequest(ctx, http.MethodGet, target)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", ref.String(), err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, ref, http.StatusOK); err != nil {
		return nil, err
	}

	var info revisionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode file list of %s: %w", ref.String(), err)
	}

	files := make([]string, 0, len(info.Siblings))
	for _, sibling := range info.Siblings {
		files = append(files, sibling.RFilename)
	}
	return files, nil
}

func apiPrefix(repoType RepoType) string {
	if repoType == RepoTypeDataset {
		return "datasets/"
	}
	return "models/"
}
