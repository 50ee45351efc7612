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

// Package storelocal implements modstore.BlobStore rooted under a
// configured local directory, with LRU eviction over
// maxLocalBuildsCached record directories.
//
// Writes are never observed partially: every write goes to a temp file
// in the same directory and is renamed into place only on success, so a
// cancelled or crashed write leaves no visible trace.
package storelocal

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/buildcache/modcache/internal/modcacheerr"
	"github.com/buildcache/modcache/internal/modpath"
	"github.com/gofrs/flock"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Store is a local-filesystem BlobStore.
type Store struct {
	logger     *zap.Logger
	rootDir    string
	maxRecords int // maxLocalBuildsCached; 0 means unbounded
	evictions  atomic.Int64

	// evictMu guards the eviction pass: it runs with exclusive access
	// over the local cache root so a concurrent save is never evicted
	// out from under the build that just wrote it.
	evictMu sync.Mutex
	// protected lists record directories (relative to rootDir, one path
	// segment deep into v<ver>/group/artifact) that must survive
	// eviction because they are referenced by the build in progress.
	protected   map[string]struct{}
	protectedMu sync.Mutex
}

// New returns a Store rooted at rootDir, creating it if necessary.
// maxRecords bounds the number of distinct fingerprint directories kept
// under rootDir; 0 means unbounded.
func New(logger *zap.Logger, rootDir string, maxRecords int) (*Store, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, modcacheerr.NewStoreIoError("mkdir", rootDir, err)
	}
	return &Store{
		logger:     logger,
		rootDir:    rootDir,
		maxRecords: maxRecords,
		protected:  make(map[string]struct{}),
	}, nil
}

func (s *Store) abs(path string) string {
	return filepath.Join(s.rootDir, modpath.Unnormalize(path))
}

// Protect marks a fingerprint directory as referenced by the build in
// progress, so LRU eviction never deletes it mid-build.
func (s *Store) Protect(recordDir string) {
	s.protectedMu.Lock()
	defer s.protectedMu.Unlock()
	s.protected[modpath.Normalize(recordDir)] = struct{}{}
}

// Unprotect releases a prior Protect call.
func (s *Store) Unprotect(recordDir string) {
	s.protectedMu.Lock()
	defer s.protectedMu.Unlock()
	delete(s.protected, modpath.Normalize(recordDir))
}

// Get implements modstore.BlobStore.
func (s *Store) Get(ctx context.Context, path string) ([]byte, bool, error) {
	data, ok, err := s.readCompressed(s.abs(path))
	if err != nil {
		return nil, false, modcacheerr.NewStoreIoError("get", path, err)
	}
	return data, ok, nil
}

// GetToFile implements modstore.BlobStore.
func (s *Store) GetToFile(ctx context.Context, path, localFilePath string) (bool, error) {
	data, ok, err := s.Get(ctx, path)
	if err != nil || !ok {
		return ok, err
	}
	if err := os.MkdirAll(filepath.Dir(localFilePath), 0o755); err != nil {
		return false, modcacheerr.NewStoreIoError("get", path, err)
	}
	if err := writeFileAtomic(localFilePath, data); err != nil {
		return false, modcacheerr.NewStoreIoError("get", path, err)
	}
	return true, nil
}

// Put implements modstore.BlobStore. Artifact bytes (anything not named
// build.xml, cache-report.xml or .lock) are gzip-compressed on disk;
// those three are kept uncompressed, build.xml since it is small and must
// remain trivially diffable/greppable on disk, matching how the teacher
// keeps its own manifest/build-record documents human-readable.
func (s *Store) Put(ctx context.Context, path string, data []byte) error {
	absPath := s.abs(path)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return modcacheerr.NewStoreIoError("put", path, err)
	}
	var payload []byte
	if shouldCompress(path) {
		compressed, err := gzipBytes(data)
		if err != nil {
			return modcacheerr.NewStoreIoError("put", path, err)
		}
		payload = compressed
	} else {
		payload = data
	}
	if err := writeFileAtomic(compressedPath(absPath, path), payload); err != nil {
		return modcacheerr.NewStoreIoError("put", path, err)
	}
	s.maybeEvict()
	return nil
}

// PutFile implements modstore.BlobStore.
func (s *Store) PutFile(ctx context.Context, path, localFilePath string) error {
	data, err := os.ReadFile(localFilePath)
	if err != nil {
		return modcacheerr.NewStoreIoError("put", path, err)
	}
	return s.Put(ctx, path, data)
}

// Delete implements modstore.Deleter.
func (s *Store) Delete(ctx context.Context, path string) error {
	absPath := s.abs(path)
	err := os.RemoveAll(absPath)
	if err != nil && !os.IsNotExist(err) {
		return modcacheerr.NewStoreIoError("delete", path, err)
	}
	gz := absPath + ".gz"
	if err := os.RemoveAll(gz); err != nil && !os.IsNotExist(err) {
		return modcacheerr.NewStoreIoError("delete", path, err)
	}
	return nil
}

// TryCreateExclusive implements modstore.Locker using an atomic
// create-if-absent (O_EXCL) primitive.
func (s *Store) TryCreateExclusive(ctx context.Context, path string) (bool, error) {
	absPath := s.abs(path)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return false, modcacheerr.NewStoreIoError("lock", path, err)
	}
	file, err := os.OpenFile(absPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, modcacheerr.NewStoreIoError("lock", path, err)
	}
	defer file.Close()
	return true, nil
}

// FileLock returns a gofrs/flock lock object for the given path,
// intended for RestoreDecider/CacheRepository to guard longer
// critical sections than a single TryCreateExclusive call (e.g. the
// full save-then-unlock sequence).
func (s *Store) FileLock(path string) *flock.Flock {
	return flock.New(s.abs(path) + ".flock")
}

func shouldCompress(path string) bool {
	return filepath.Base(path) != "build.xml" && filepath.Base(path) != "cache-report.xml" && filepath.Base(path) != ".lock"
}

func compressedPath(absPath, path string) string {
	if shouldCompress(path) {
		return absPath + ".gz"
	}
	return absPath
}

func (s *Store) readCompressed(absPath string) ([]byte, bool, error) {
	if data, err := os.ReadFile(absPath + ".gz"); err == nil {
		decompressed, err := gunzipBytes(data)
		if err != nil {
			return nil, false, err
		}
		return decompressed, true, nil
	} else if !os.IsNotExist(err) {
		return nil, false, err
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzipBytes(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func writeFileAtomic(targetPath string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(targetPath), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, targetPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// recordDir is one v<ver>/group/artifact/fingerprint directory under
// rootDir, used for LRU accounting.
type recordDir struct {
	relPath string
	modTime int64
}

// maybeEvict runs LRU eviction when the record count exceeds
// maxRecords. It holds evictMu for the duration so concurrent saves in
// the same process serialize around eviction, and never deletes a
// directory currently Protect()ed by the ongoing build.
func (s *Store) maybeEvict() {
	if s.maxRecords <= 0 {
		return
	}
	s.evictMu.Lock()
	defer s.evictMu.Unlock()

	dirs, err := s.listRecordDirs()
	if err != nil {
		s.logger.Warn("local store eviction scan failed", zap.Error(err))
		return
	}
	if len(dirs) <= s.maxRecords {
		return
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].modTime < dirs[j].modTime })

	s.protectedMu.Lock()
	protectedSnapshot := make(map[string]struct{}, len(s.protected))
	for k := range s.protected {
		protectedSnapshot[k] = struct{}{}
	}
	s.protectedMu.Unlock()

	toEvict := len(dirs) - s.maxRecords
	for _, dir := range dirs {
		if toEvict <= 0 {
			break
		}
		if _, protected := protectedSnapshot[dir.relPath]; protected {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.rootDir, modpath.Unnormalize(dir.relPath))); err != nil {
			s.logger.Warn("local store eviction failed", zap.String("path", dir.relPath), zap.Error(err))
			continue
		}
		s.evictions.Inc()
		toEvict--
	}
}

// listRecordDirs walks v<ver>/group/artifact/fingerprint and returns
// each fingerprint-level directory with the directory's own mtime.
func (s *Store) listRecordDirs() ([]recordDir, error) {
	var dirs []recordDir
	versionDirs, err := os.ReadDir(s.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, versionDir := range versionDirs {
		if !versionDir.IsDir() {
			continue
		}
		groupDirs, err := os.ReadDir(filepath.Join(s.rootDir, versionDir.Name()))
		if err != nil {
			continue
		}
		for _, groupDir := range groupDirs {
			if !groupDir.IsDir() {
				continue
			}
			artifactDirs, err := os.ReadDir(filepath.Join(s.rootDir, versionDir.Name(), groupDir.Name()))
			if err != nil {
				continue
			}
			for _, artifactDir := range artifactDirs {
				if !artifactDir.IsDir() {
					continue
				}
				fingerprintDirs, err := os.ReadDir(filepath.Join(s.rootDir, versionDir.Name(), groupDir.Name(), artifactDir.Name()))
				if err != nil {
					continue
				}
				for _, fpDir := range fingerprintDirs {
					if !fpDir.IsDir() {
						continue
					}
					relPath := modpath.Join(versionDir.Name(), groupDir.Name(), artifactDir.Name(), fpDir.Name())
					info, err := os.Stat(filepath.Join(s.rootDir, modpath.Unnormalize(relPath)))
					if err != nil {
						continue
					}
					dirs = append(dirs, recordDir{relPath: relPath, modTime: info.ModTime().UnixNano()})
				}
			}
		}
	}
	return dirs, nil
}

// EvictionCount returns the number of record directories evicted so far
// by this Store instance, for tests and diagnostics.
func (s *Store) EvictionCount() int64 {
	return s.evictions.Load()
}

// RootDir returns the store's root directory, for callers that need to
// compute an absolute path (e.g. a direct os.File target for
// CacheRepository.restoreArtifact).
func (s *Store) RootDir() string {
	return s.rootDir
}
