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

// Package hub downloads files from a HuggingFace-compatible hub and keeps them
// in a local cache directory.
package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"

	"github.com/llm-d/llm-d-calibration-data/pkg/utils/logging"
)

const (
	defaultEndpoint = "https://huggingface.co"
	defaultRevision = "main"
	defaultTimeout  = 30 * time.Minute
)

// ErrNotFound is returned when the hub responds with 404 for a file.
var ErrNotFound = errors.New("file not found on hub")

// RepoType distinguishes model repositories from dataset repositories.
type RepoType string

const (
	RepoTypeModel   RepoType = "model"
	RepoTypeDataset RepoType = "dataset"
)

// Config holds the configuration for the hub client.
type Config struct {
	// Endpoint is the base URL of the hub.
	Endpoint string `json:"endpoint"`
	// Token is sent as a bearer token when set.
	Token string `json:"token"`
	// CacheDir is where downloaded files are stored.
	CacheDir string `json:"cacheDir"`
	// Timeout bounds a single file download.
	Timeout time.Duration `json:"timeout"`
}

// DefaultConfig returns a default configuration for the hub client.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: defaultEndpoint,
		CacheDir: defaultCacheDir(),
		Timeout:  defaultTimeout,
	}
}

// FileRef identifies a single file inside a hub repository.
type FileRef struct {
	Repo     string
	Type     RepoType
	Revision string // defaults to "main"
	Path     string
}

func (f FileRef) revision() string {
	if f.Revision == "" {
		return defaultRevision
	}
	return f.Revision
}

// String returns a string representation of the FileRef.
func (f FileRef) String() string {
	return fmt.Sprintf("%s:%s@%s/%s", f.Type, f.Repo, f.revision(), f.Path)
}

// Client downloads repository files and caches them on local disk.
// Concurrent downloads of the same file are collapsed into one request.
type Client struct {
	endpoint   string
	token      string
	cacheDir   string
	httpClient *http.Client
	group      singleflight.Group
}

// NewClient creates a new Client with the provided configuration.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	endpoint := strings.TrimSuffix(config.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	cacheDir := config.CacheDir
	if cacheDir == "" {
		cacheDir = defaultCacheDir()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		endpoint:   endpoint,
		token:      config.Token,
		cacheDir:   cacheDir,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Download makes sure the referenced file exists in the local cache and
// returns its path. Files of the public hub are fetched through
// go-huggingface repositories; mirrors and ref revisions use resolve URLs.
func (c *Client) Download(ctx context.Context, ref FileRef) (string, error) {
	debugLogger := klog.FromContext(ctx).V(logging.DEBUG).WithName("hub.Client.Download")

	result, err, shared := c.group.Do(ref.String(), func() (any, error) {
		if c.usesRepoLibrary(ref) {
			return c.downloadRepoFile(ctx, ref)
		}
		return c.downloadResolved(ctx, ref)
	})
	if err != nil {
		return "", err
	}
	if shared {
		debugLogger.Info("download shared with a concurrent caller", "file", ref.String())
	}

	path, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("unexpected download result type for %s", ref.String())
	}
	return path, nil
}

// ReadFile downloads the referenced file if needed and returns its content.
func (c *Client) ReadFile(ctx context.Context, ref FileRef) ([]byte, error) {
	path, err := c.Download(ctx, ref)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached file %s: %w", path, err)
	}
	return data, nil
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "llm-d-calibration", "hub")
	}
	return filepath.Join(os.TempDir(), "llm-d-calibration", "hub")
}
