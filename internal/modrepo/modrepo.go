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

// Package modrepo implements CacheRepository: the module that pairs a
// local BlobStore with an optional remote BlobStore to find, restore,
// and save builds, plus the per-build FingerprintIndex.
//
// Grounded on the teacher's module cache client
// (private/bufpkg/bufmodulecache and the layered "check local, fall
// back to remote, populate local on remote hit" pattern used there),
// adapted from a content-addressed module cache to a build-artifact
// cache keyed by (group, artifact, fingerprint).
package modrepo

import (
	"context"
	"fmt"
	"io"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/buildcache/modcache/internal/modcacheerr"
	"github.com/buildcache/modcache/internal/modhash"
	"github.com/buildcache/modcache/internal/modrecord"
	"github.com/buildcache/modcache/internal/modstore"
	"github.com/buildcache/modcache/internal/modstore/storelocal"
	"go.uber.org/zap"
)

// hashFileHex computes a file's content digest the same way the
// scanner does, for verifying a restored artifact against its recorded
// digest.
func hashFileHex(algorithm modhash.Algorithm, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher, err := modhash.NewHasher(algorithm)
	if err != nil {
		return "", err
	}
	buf := make([]byte, 64*1024)
	for {
		n, readErr := file.Read(buf)
		if n > 0 {
			hasher.Update(buf[:n])
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return "", readErr
		}
	}
	return hasher.Finish().Hex(), nil
}

// Config controls repository behavior.
type Config struct {
	CacheImplementationVersion string
	// ReadCacheSize bounds an in-process LRU of recently resolved build
	// records, keyed by store path; 0 disables the read cache.
	ReadCacheSize int
}

// Repository is CacheRepository: it resolves build records and
// artifacts against a local store, optionally falling back to a remote
// store, and saves new builds back to local (and, when enabled,
// remote).
type Repository struct {
	logger *zap.Logger
	cfg    Config
	local  *storelocal.Store
	remote modstore.BlobStore // nil when no remote is configured

	readCache *lru.Cache[string, *modrecord.BuildRecord]
}

// New returns a Repository. remote may be nil.
func New(logger *zap.Logger, cfg Config, local *storelocal.Store, remote modstore.BlobStore) (*Repository, error) {
	r := &Repository{logger: logger, cfg: cfg, local: local, remote: remote}
	if cfg.ReadCacheSize > 0 {
		cache, err := lru.New[string, *modrecord.BuildRecord](cfg.ReadCacheSize)
		if err != nil {
			return nil, modcacheerr.NewConfigurationError(fmt.Sprintf("invalid read cache size: %v", err))
		}
		r.readCache = cache
	}
	return r, nil
}

// FindBuild resolves a module's build record by (group, artifact,
// fingerprint): local first, then remote. A remote hit is copied into
// the local store with its atomic write (no lock is taken) so later
// lookups in the same build, and future builds, hit locally.
func (r *Repository) FindBuild(ctx context.Context, moduleID modrecord.ModuleID, fingerprint modhash.Fingerprint) (*modrecord.BuildRecord, modrecord.Source, bool, error) {
	recordPath := modstore.Path(r.cfg.CacheImplementationVersion, moduleID.Group, moduleID.Artifact, fingerprint.Hex(), modstore.WellKnownFilename)

	if r.readCache != nil {
		if cached, ok := r.readCache.Get(recordPath); ok {
			return cached, modrecord.SourceLocal, true, nil
		}
	}

	data, ok, err := r.local.Get(ctx, recordPath)
	if err != nil {
		r.logger.Warn("local cache read failed, treating as miss", zap.String("path", recordPath), zap.Error(err))
	} else if ok {
		record, err := modrecord.UnmarshalBuildRecord(data)
		if err != nil {
			return nil, "", false, modcacheerr.NewInputIoError(recordPath, err)
		}
		r.cacheRead(recordPath, record)
		return record, modrecord.SourceLocal, true, nil
	}

	if r.remote == nil {
		return nil, "", false, nil
	}
	data, ok, err = r.remote.Get(ctx, recordPath)
	if err != nil {
		r.logger.Warn("remote cache read failed, treating as miss", zap.String("path", recordPath), zap.Error(err))
		return nil, "", false, nil
	}
	if !ok {
		return nil, "", false, nil
	}
	record, err := modrecord.UnmarshalBuildRecord(data)
	if err != nil {
		return nil, "", false, modcacheerr.NewInputIoError(recordPath, err)
	}

	if putErr := r.local.Put(ctx, recordPath, data); putErr != nil {
		r.logger.Warn("failed to populate local cache from remote hit", zap.String("path", recordPath), zap.Error(putErr))
	}
	r.cacheRead(recordPath, record)
	return record, modrecord.SourceRemote, true, nil
}

func (r *Repository) cacheRead(path string, record *modrecord.BuildRecord) {
	if r.readCache != nil {
		r.readCache.Add(path, record)
	}
}

// RestoreArtifact restores one recorded artifact to destFilePath,
// verifying its content digest against the record. A mismatch returns
// a *modcacheerr.IntegrityError and restores nothing.
func (r *Repository) RestoreArtifact(ctx context.Context, moduleID modrecord.ModuleID, fingerprint modhash.Fingerprint, artifact modrecord.ArtifactEntry, destFilePath string) error {
	artifactPath := modstore.Path(r.cfg.CacheImplementationVersion, moduleID.Group, moduleID.Artifact, fingerprint.Hex(), artifact.Filename)

	ok, err := r.local.GetToFile(ctx, artifactPath, destFilePath)
	if err != nil {
		return err
	}
	if !ok && r.remote != nil {
		ok, err = r.remote.GetToFile(ctx, artifactPath, destFilePath)
		if err != nil {
			return err
		}
	}
	if !ok {
		return modcacheerr.NewStoreIoError("restore", artifactPath, fmt.Errorf("artifact not found in any configured store"))
	}

	actualDigest, err := hashFileHex(fingerprint.Algorithm(), destFilePath)
	if err != nil {
		return modcacheerr.NewInputIoError(destFilePath, err)
	}
	if actualDigest != artifact.ContentDigest {
		_ = os.Remove(destFilePath)
		return modcacheerr.NewIntegrityError(artifactPath, artifact.ContentDigest, actualDigest)
	}
	return nil
}

// SaveBuild writes a new build's artifacts, then its record, acquiring
// the record directory's at-most-one-writer lock first. If the lock is
// already held (another writer raced us to the same fingerprint), SAVE
// is skipped without error: the existing record is already correct for
// this fingerprint, since fingerprints are content-addressed.
func (r *Repository) SaveBuild(ctx context.Context, record *modrecord.BuildRecord, artifactFiles map[string]string) (saved bool, err error) {
	lockPath := modstore.LockPath(r.cfg.CacheImplementationVersion, record.ModuleID.Group, record.ModuleID.Artifact, record.Fingerprint)
	created, err := r.local.TryCreateExclusive(ctx, lockPath)
	if err != nil {
		return false, err
	}
	if !created {
		r.logger.Debug("save skipped, record already claimed by another writer", zap.String("module", record.ModuleID.String()))
		return false, nil
	}

	for _, artifact := range record.Artifacts {
		localPath, ok := artifactFiles[artifact.Filename]
		if !ok {
			return false, modcacheerr.NewConfigurationError(fmt.Sprintf("no local file provided for artifact %q", artifact.Filename))
		}
		artifactPath := modstore.Path(r.cfg.CacheImplementationVersion, record.ModuleID.Group, record.ModuleID.Artifact, record.Fingerprint, artifact.Filename)
		if err := r.local.PutFile(ctx, artifactPath, localPath); err != nil {
			return false, err
		}
		if r.remote != nil {
			if err := r.remote.PutFile(ctx, artifactPath, localPath); err != nil {
				r.logger.Warn("remote artifact upload failed, continuing with local save", zap.String("path", artifactPath), zap.Error(err))
			}
		}
	}

	recordData, err := modrecord.MarshalBuildRecord(record)
	if err != nil {
		return false, modcacheerr.NewConfigurationError(fmt.Sprintf("marshal build record: %v", err))
	}
	recordPath := modstore.Path(r.cfg.CacheImplementationVersion, record.ModuleID.Group, record.ModuleID.Artifact, record.Fingerprint, modstore.WellKnownFilename)
	if err := r.local.Put(ctx, recordPath, recordData); err != nil {
		return false, err
	}
	if r.remote != nil {
		if err := r.remote.Put(ctx, recordPath, recordData); err != nil {
			r.logger.Warn("remote build record upload failed, continuing with local save", zap.String("path", recordPath), zap.Error(err))
		}
	}
	r.cacheRead(recordPath, record)
	return true, nil
}

// SaveReport writes a project-wide index document under a build-scoped
// path. The report is best-effort against the remote store but always
// persisted locally.
func (r *Repository) SaveReport(ctx context.Context, index *modrecord.ProjectIndex) error {
	data, err := modrecord.MarshalProjectIndex(index)
	if err != nil {
		return modcacheerr.NewConfigurationError(fmt.Sprintf("marshal project index: %v", err))
	}
	path := fmt.Sprintf("v%s/reports/%s/cache-report.xml", r.cfg.CacheImplementationVersion, index.BuildID)
	if err := r.local.Put(ctx, path, data); err != nil {
		return err
	}
	if r.remote != nil {
		if err := r.remote.Put(ctx, path, data); err != nil {
			r.logger.Warn("remote report upload failed", zap.String("path", path), zap.Error(err))
		}
	}
	return nil
}

// SaveDiff persists one module's reconciliation diff.xml under a
// build-scoped path, mirroring SaveReport's path convention. Best-effort
// against the remote store but always persisted locally.
func (r *Repository) SaveDiff(ctx context.Context, buildID string, moduleID modrecord.ModuleID, data []byte) error {
	path := fmt.Sprintf("v%s/reports/%s/%s/%s/diff.xml", r.cfg.CacheImplementationVersion, buildID, moduleID.Group, moduleID.Artifact)
	if err := r.local.Put(ctx, path, data); err != nil {
		return err
	}
	if r.remote != nil {
		if err := r.remote.Put(ctx, path, data); err != nil {
			r.logger.Warn("remote diff upload failed", zap.String("path", path), zap.Error(err))
		}
	}
	return nil
}

// DeleteLocalRecord removes a module's local record and lock, used
// after an IntegrityError to purge a corrupted cache entry so the next
// build doesn't keep retrying the same broken content.
func (r *Repository) DeleteLocalRecord(ctx context.Context, moduleID modrecord.ModuleID, fingerprint modhash.Fingerprint) error {
	recordPath := modstore.Path(r.cfg.CacheImplementationVersion, moduleID.Group, moduleID.Artifact, fingerprint.Hex(), modstore.WellKnownFilename)
	if err := r.local.Delete(ctx, recordPath); err != nil {
		return err
	}
	lockPath := modstore.LockPath(r.cfg.CacheImplementationVersion, moduleID.Group, moduleID.Artifact, fingerprint.Hex())
	return r.local.Delete(ctx, lockPath)
}
