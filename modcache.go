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

// Package modcache is the build-artifact cache engine: fingerprinting
// module inputs, finding and restoring cached build records, deciding
// per-step execution, reconciling against a baseline, and reporting the
// outcome of a top-level build.
//
// The engine has no CLI of its own (see cmd/modcachectl for a
// demonstration driver); it is invoked by a build driver through
// Initialize, Engine.BeginModule, ModuleHandle.AroundStep,
// ModuleHandle.OnModuleComplete, and Engine.OnBuildComplete.
package modcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/buildcache/modcache/internal/modcacheconfig"
	"github.com/buildcache/modcache/internal/modcacheerr"
	"github.com/buildcache/modcache/internal/modfingerprint"
	"github.com/buildcache/modcache/internal/modrecord"
	"github.com/buildcache/modcache/internal/modrepo"
	"github.com/buildcache/modcache/internal/modreport"
	"github.com/buildcache/modcache/internal/modscan"
	"github.com/buildcache/modcache/internal/modstore"
	"github.com/buildcache/modcache/internal/modstore/storelocal"
	"github.com/buildcache/modcache/internal/modstore/storeremote"
	"go.uber.org/zap"
)

// CacheImplementationVersion is the on-disk layout version embedded in
// every store path and every BuildRecord, bumped whenever the record
// schema or path convention changes incompatibly.
const CacheImplementationVersion = "1"

// Status is the result of Initialize.
type Status int

const (
	// StatusInitialized means the engine is ready to use.
	StatusInitialized Status = iota
	// StatusDisabled means caching is disabled for this build;
	// Initialize returns no Engine, so there are no engine calls to make.
	StatusDisabled
)

func (s Status) String() string {
	if s == StatusDisabled {
		return "DISABLED"
	}
	return "INITIALIZED"
}

// Session is the build driver's handle into initialize(session).
type Session struct {
	// MultiModuleRoot is the reactor root; configuration is read from
	// <MultiModuleRoot>/.mvn/maven-cache-config.xml unless overridden
	// by remote.cache.configPath.
	MultiModuleRoot string
	Properties      modcacheconfig.Properties
	Logger          *zap.Logger
}

// Engine is the cache engine for one top-level build.
type Engine struct {
	logger *zap.Logger
	config *modcacheconfig.ConfigModel
	repo   *modrepo.Repository
	local  *storelocal.Store
	remote modstore.BlobStore

	fingerprinter *modfingerprint.Fingerprinter
	scanner       *modscan.Scanner
	fpIndex       *modrepo.FingerprintIndex
	reporter      *modreport.Reporter

	baseline *modrecord.ProjectIndex

	outputExcludeOnce     sync.Once
	outputExcludeCompiled []*regexp.Regexp
}

// Initialize implements initialize(session) from spec.md §6: it reads
// configuration, applies recognized properties, and wires the local
// (and optional remote) stores. If caching ends up disabled, it
// returns (nil, StatusDisabled, nil): callers must check the status,
// not just the error.
func Initialize(session Session) (*Engine, Status, error) {
	logger := session.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	configPath := session.Properties.ConfigPath()
	if configPath == "" {
		configPath = filepath.Join(session.MultiModuleRoot, ".mvn", "maven-cache-config.xml")
	}
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, StatusDisabled, modcacheerr.NewConfigurationError(fmt.Sprintf("reading %s: %v", configPath, err))
	}
	config, err := modcacheconfig.Parse(data)
	if err != nil {
		return nil, StatusDisabled, err
	}
	modcacheconfig.ApplyProperties(config, session.Properties)

	if !config.Enabled {
		logger.Info("build cache disabled", zap.String("reason", "remote.cache.enabled=false"))
		return nil, StatusDisabled, nil
	}

	localDir := config.Configuration.Local.Location
	if localDir == "" {
		localDir = filepath.Join(session.MultiModuleRoot, ".mvn", "build-cache")
	}
	local, err := storelocal.New(logger, localDir, config.Configuration.Local.MaxLocalBuildsCached)
	if err != nil {
		return nil, StatusDisabled, err
	}

	var remote modstore.BlobStore
	if config.Configuration.Remote.Enabled && config.Configuration.Remote.Location != "" {
		remoteStore, err := storeremote.New(logger, storeremote.Config{
			BaseURL:          config.Configuration.Remote.Location,
			SaveToRemote:     config.Configuration.Remote.SaveEnabled,
			ConnectTimeout:   time.Duration(config.Configuration.Remote.ConnectTimeoutMillis) * time.Millisecond,
			RequestTimeout:   time.Duration(config.Configuration.Remote.RequestTimeoutMillis) * time.Millisecond,
			MaxPooledClients: 0,
		})
		if err != nil {
			return nil, StatusDisabled, err
		}
		remote = remoteStore
	}

	repo, err := modrepo.New(logger, modrepo.Config{
		CacheImplementationVersion: CacheImplementationVersion,
		ReadCacheSize:              256,
	}, local, remote)
	if err != nil {
		return nil, StatusDisabled, err
	}

	engine := &Engine{
		logger:        logger,
		config:        config,
		repo:          repo,
		local:         local,
		remote:        remote,
		fingerprinter: modfingerprint.New(config.Configuration.HashAlgorithm),
		scanner:       modscan.New(logger, config.Configuration.HashAlgorithm),
		fpIndex:       modrepo.NewFingerprintIndex(),
		reporter:      modreport.New(repo),
	}

	if config.Configuration.BaselineURL != "" {
		baseline, err := loadBaseline(engine, config.Configuration.BaselineURL)
		if err != nil {
			logger.Warn("failed to load reconciliation baseline, proceeding without one", zap.Error(err))
		} else {
			engine.baseline = baseline
		}
	}

	return engine, StatusInitialized, nil
}

// Config returns the engine's resolved configuration, for callers (and
// tests) that need to inspect it.
func (e *Engine) Config() *modcacheconfig.ConfigModel {
	return e.config
}

// FingerprintIndex returns the per-build fingerprint publish/await map,
// which the build driver's upstream-wait logic consults directly (spec
// §5: "the driver must wait on the upstream publication before
// releasing the downstream worker").
func (e *Engine) FingerprintIndex() *modrepo.FingerprintIndex {
	return e.fpIndex
}

// Repository exposes the underlying CacheRepository for advanced
// callers.
func (e *Engine) Repository() *modrepo.Repository {
	return e.repo
}

// Reporter exposes the per-build Reporter so the driver can print a
// cache-report summary after OnBuildComplete.
func (e *Engine) Reporter() *modreport.Reporter {
	return e.reporter
}

// baselineFingerprintFor looks up a module's fingerprint in the
// reconciliation baseline ProjectIndex, if one was loaded.
func (e *Engine) baselineFingerprintFor(moduleID modrecord.ModuleID) (string, bool) {
	if e.baseline == nil {
		return "", false
	}
	for _, entry := range e.baseline.Projects {
		if entry.ModuleID.Equal(moduleID) {
			return entry.Fingerprint, true
		}
	}
	return "", false
}

// loadBaseline fetches the reconciliation baseline ProjectIndex named
// by baselineURL: an http(s) URL is fetched through the remote store
// when one is configured, anything else is treated as a path within
// the local store.
func loadBaseline(e *Engine, baselineURL string) (*modrecord.ProjectIndex, error) {
	ctx := context.Background()
	var data []byte
	var ok bool
	var err error
	if e.remote != nil && (strings.HasPrefix(baselineURL, "http://") || strings.HasPrefix(baselineURL, "https://")) {
		data, ok, err = e.remote.Get(ctx, baselineURL)
	} else {
		data, ok, err = e.local.Get(ctx, baselineURL)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("baseline project index not found at %q", baselineURL)
	}
	return modrecord.UnmarshalProjectIndex(data)
}
