// Copyright 2026 The Modcache Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storeremote implements modstore.BlobStore over HTTP, with a
// pooled transport, offline short-circuiting, and an optional
// read-only mode.
//
// Grounded on the teacher's HTTP client session pooling
// (private/pkg/httpauth and the registry client dialers that acquire a
// *http.Client per call and release it back to a pool rather than
// building a fresh client per request).
package storeremote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/buildcache/modcache/internal/modcacheerr"
	"github.com/buildcache/modcache/internal/modpath"
	"go.uber.org/zap"
)

// Config controls remote store behavior.
type Config struct {
	BaseURL string
	// Offline short-circuits every Get/GetToFile to ok=false and every
	// Put/PutFile to a logged no-op, without making network calls.
	Offline bool
	// SaveToRemote gates whether Put/PutFile actually upload; when
	// false the remote store is read-only regardless of Offline.
	SaveToRemote   bool
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	// MaxPooledClients bounds the number of pooled *http.Client values
	// kept warm; 0 means unbounded growth, drained on Close.
	MaxPooledClients int
}

// Store is a remote, HTTP-transported BlobStore. It never deletes and
// is never used as a Locker: at-most-one-writer guarantees only apply
// within the local store (spec §4.5/§9).
type Store struct {
	logger *zap.Logger
	cfg    Config
	base   *url.URL

	mu       sync.Mutex
	pool     []*http.Client
	acquired int
}

// New returns a Store against cfg.BaseURL.
func New(logger *zap.Logger, cfg Config) (*Store, error) {
	if cfg.Offline {
		return &Store{logger: logger, cfg: cfg}, nil
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, modcacheerr.NewConfigurationError(fmt.Sprintf("invalid remote cache URL %q: %v", cfg.BaseURL, err))
	}
	return &Store{logger: logger, cfg: cfg, base: base}, nil
}

// acquire pops a pooled client or builds a new one.
func (s *Store) acquire() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquired++
	if n := len(s.pool); n > 0 {
		client := s.pool[n-1]
		s.pool = s.pool[:n-1]
		return client
	}
	dialer := &net.Dialer{Timeout: s.cfg.ConnectTimeout}
	return &http.Client{
		Timeout: s.cfg.RequestTimeout,
		Transport: &http.Transport{
			DialContext: dialer.DialContext,
		},
	}
}

// release returns a client to the pool, subject to MaxPooledClients.
func (s *Store) release(client *http.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquired--
	if s.cfg.MaxPooledClients > 0 && len(s.pool) >= s.cfg.MaxPooledClients {
		return
	}
	s.pool = append(s.pool, client)
}

// Close drains the pool. In-flight acquisitions are left to finish and
// are simply not returned to a pool anymore.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool = nil
}

func (s *Store) url(path string) string {
	return s.base.ResolveReference(&url.URL{Path: "/" + modpath.Unnormalize(path)}).String()
}

// Get implements modstore.BlobStore.
func (s *Store) Get(ctx context.Context, path string) ([]byte, bool, error) {
	if s.cfg.Offline {
		return nil, false, nil
	}
	client := s.acquire()
	defer s.release(client)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url(path), nil)
	if err != nil {
		return nil, false, modcacheerr.NewStoreIoError("get", path, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, false, modcacheerr.NewStoreIoError("get", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, false, modcacheerr.NewStoreIoError("get", path, fmt.Errorf("remote cache returned status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, modcacheerr.NewStoreIoError("get", path, err)
	}
	return data, true, nil
}

// GetToFile implements modstore.BlobStore.
func (s *Store) GetToFile(ctx context.Context, path, localFilePath string) (bool, error) {
	data, ok, err := s.Get(ctx, path)
	if err != nil || !ok {
		return ok, err
	}
	if err := os.WriteFile(localFilePath, data, 0o644); err != nil {
		return false, modcacheerr.NewStoreIoError("get", path, err)
	}
	return true, nil
}

// Put implements modstore.BlobStore. When SaveToRemote is false or the
// store is Offline, Put logs and returns nil without contacting the
// server: uploads to the remote cache are opportunistic, never
// required for a build to succeed.
func (s *Store) Put(ctx context.Context, path string, data []byte) error {
	if s.cfg.Offline || !s.cfg.SaveToRemote {
		s.logger.Debug("skipping remote cache upload", zap.String("path", path), zap.Bool("offline", s.cfg.Offline), zap.Bool("saveToRemote", s.cfg.SaveToRemote))
		return nil
	}
	client := s.acquire()
	defer s.release(client)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.url(path), bytes.NewReader(data))
	if err != nil {
		return modcacheerr.NewStoreIoError("put", path, err)
	}
	req.ContentLength = int64(len(data))
	resp, err := client.Do(req)
	if err != nil {
		return modcacheerr.NewStoreIoError("put", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return modcacheerr.NewStoreIoError("put", path, fmt.Errorf("remote cache returned status %d", resp.StatusCode))
	}
	return nil
}

// PutFile implements modstore.BlobStore.
func (s *Store) PutFile(ctx context.Context, path, localFilePath string) error {
	if s.cfg.Offline || !s.cfg.SaveToRemote {
		s.logger.Debug("skipping remote cache upload", zap.String("path", path))
		return nil
	}
	data, err := os.ReadFile(localFilePath)
	if err != nil {
		return modcacheerr.NewStoreIoError("put", path, err)
	}
	return s.Put(ctx, path, data)
}
