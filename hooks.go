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

package modcache

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/buildcache/modcache/internal/modcacheconfig"
	"github.com/buildcache/modcache/internal/modcacheerr"
	"github.com/buildcache/modcache/internal/modexec"
	"github.com/buildcache/modcache/internal/modfingerprint"
	"github.com/buildcache/modcache/internal/modhash"
	"github.com/buildcache/modcache/internal/modreconcile"
	"github.com/buildcache/modcache/internal/modrecord"
	"github.com/buildcache/modcache/internal/modreport"
	"github.com/buildcache/modcache/internal/modrestore"
	"go.uber.org/zap"
)

// ModuleInput is everything BeginModule needs to scan, fingerprint, and
// look up one module's build.
type ModuleInput struct {
	ModuleID   modrecord.ModuleID
	ModuleRoot string
	// EffectiveDescriptorXML is the module's effective descriptor
	// before canonicalization.
	EffectiveDescriptorXML []byte
	ExcludeProperties      []string
	PluginConfigurations   []modfingerprint.PluginConfiguration
	Upstreams              []modfingerprint.Upstream
}

// ModuleHandle tracks one module's state across a build: scanning,
// fingerprinting, lookup, step decisions, and completion.
type ModuleHandle struct {
	engine      *Engine
	moduleID    modrecord.ModuleID
	fingerprint modhash.Fingerprint
	scanResult  []modrecord.InputFileRecord
	upstreams   []modfingerprint.Upstream
	controller  *modexec.Controller

	steps         []modrecord.StepExecutionRecord
	artifacts     []modrecord.ArtifactEntry
	artifactFiles map[string]string

	// lazyRestorers holds one Restorer per artifact when
	// Configuration.LazyRestore is set, populated by RestoreArtifacts and
	// drained through Restore.
	lazyRestorers map[string]modexec.Restorer
}

// BeginModule runs the scan, fingerprint, publish, find, and
// RestoreDecider sequence for one module, per spec.md §5's ordering
// guarantee ("InputScanner runs before ProjectFingerprinter;
// ProjectFingerprinter runs before any CacheRepository.find").
func (e *Engine) BeginModule(ctx context.Context, input ModuleInput) (*ModuleHandle, error) {
	pluginConfig, _ := e.config.PluginConfigFor(input.ModuleID.Group, input.ModuleID.Artifact)

	var dirScans []modcacheconfig.PluginInputConfig
	if pluginConfig.Plugin != (modcacheconfig.PluginCoordinates{}) {
		dirScans = append(dirScans, pluginConfig)
	}

	scanResult, err := e.scanner.Scan(ctx, input.ModuleRoot, e.config.Global, dirScans, e.config.Output.ExcludePatterns)
	if err != nil {
		e.logger.Warn("input scan failed, module forced to MISS", zap.String("module", input.ModuleID.String()), zap.Error(err))
		handle := e.newHandle(input.ModuleID, modhash.Fingerprint{}, nil, input.Upstreams)
		handle.controller.BeginLookup(nil, false)
		return handle, nil
	}

	excludeProps := input.ExcludeProperties
	canonicalDescriptor, err := modfingerprint.CanonicalizeDescriptor(input.EffectiveDescriptorXML, excludeProps)
	if err != nil {
		return nil, modcacheerr.NewConfigurationError(fmt.Sprintf("canonicalizing descriptor for %s: %v", input.ModuleID.String(), err))
	}

	fp, err := e.fingerprinter.Compute(modfingerprint.Input{
		CacheImplementationVersion:       CacheImplementationVersion,
		ModuleID:                         input.ModuleID,
		CanonicalizedEffectiveDescriptor: canonicalDescriptor,
		PluginConfigurations:             input.PluginConfigurations,
		ScannedFiles:                     scanResult,
		Upstreams:                        input.Upstreams,
	})
	if err != nil {
		return nil, err
	}
	e.fpIndex.Publish(input.ModuleID, fp)

	handle := e.newHandle(input.ModuleID, fp, scanResult, input.Upstreams)

	record, source, found, err := e.repo.FindBuild(ctx, input.ModuleID, fp)
	if err != nil {
		return nil, err
	}
	if !found {
		handle.controller.BeginLookup(nil, false)
		return handle, nil
	}

	decision := modrestore.Decide(record, string(e.config.Configuration.HashAlgorithm), CacheImplementationVersion, e.config)
	if !decision.Accepted {
		e.logger.Info("cached build record rejected", zap.String("module", input.ModuleID.String()), zap.String("reason", decision.Reason))
		handle.controller.BeginLookup(nil, false)
		return handle, nil
	}

	e.logger.Debug("cache hit", zap.String("module", input.ModuleID.String()), zap.String("source", string(source)))
	handle.controller.BeginLookup(record, true)
	return handle, nil
}

func (e *Engine) newHandle(moduleID modrecord.ModuleID, fp modhash.Fingerprint, scanResult []modrecord.InputFileRecord, upstreams []modfingerprint.Upstream) *ModuleHandle {
	return &ModuleHandle{
		engine:        e,
		moduleID:      moduleID,
		fingerprint:   fp,
		scanResult:    scanResult,
		upstreams:     upstreams,
		controller:    modexec.New(e.logger, e.config, e.repo),
		artifactFiles: make(map[string]string),
	}
}

// RestoreArtifacts restores a cache-hit module's artifacts to the
// given destination paths, keyed by artifact filename. When
// Configuration.LazyRestore is set, nothing is copied here: each
// artifact is instead restored on its first Restore call.
func (h *ModuleHandle) RestoreArtifacts(ctx context.Context, destPaths map[string]string) error {
	if h.engine.config.Configuration.LazyRestore {
		restorers, err := h.controller.LazyRestoreArtifacts(ctx, h.moduleID, destPaths)
		if err != nil {
			return err
		}
		h.lazyRestorers = restorers
		return nil
	}
	return h.controller.RestoreArtifacts(ctx, h.moduleID, destPaths, 4)
}

// Restore performs one artifact's deferred restore when
// Configuration.LazyRestore is set, per spec.md §6's "HIT artifacts are
// not restored until the build driver's first read of a given output
// path". It is a no-op returning nil for a filename outside the set
// RestoreArtifacts was called with (including every call in eager mode,
// where RestoreArtifacts already copied everything).
func (h *ModuleHandle) Restore(filename string) error {
	restorer, ok := h.lazyRestorers[filename]
	if !ok {
		return nil
	}
	return restorer()
}

// State returns the module's current execution state.
func (h *ModuleHandle) State() modexec.State {
	return h.controller.State()
}

// StepOutcome is returned by AroundStep, naming how the step was
// handled.
type StepOutcome struct {
	Decision modexec.StepDecision
	// RestoredProperties carries the step's recorded properties when
	// Decision is DecisionCacheHit, for reconciliation bookkeeping.
	RestoredProperties modrecord.PropertyMap
}

// AroundStep implements the ExecutionController hook from spec.md
// §4.8. continuation is invoked only when the step must execute; its
// return value (the step's observed properties, for reconciliation) is
// recorded into the module's new BuildRecord.
func (h *ModuleHandle) AroundStep(step modexec.Step, continuation func() (modrecord.PropertyMap, error)) (StepOutcome, error) {
	decision := h.controller.Decide(step)
	switch decision {
	case modexec.DecisionCacheHit:
		outcome := StepOutcome{Decision: decision}
		if record := h.controller.CurrentRecord(); record != nil {
			if stepRecord, ok := record.StepByCoordinates(step.PluginID, step.ExecutionID, step.Goal); ok {
				outcome.RestoredProperties = stepRecord.ObservedProperties
			}
		}
		return outcome, nil
	case modexec.DecisionSkippedIgnoreMissing:
		return StepOutcome{Decision: decision}, nil
	default:
		properties, err := continuation()
		if err != nil {
			return StepOutcome{Decision: decision}, err
		}
		h.steps = append(h.steps, modrecord.StepExecutionRecord{
			PluginID:           step.PluginID,
			ExecutionID:        step.ExecutionID,
			Goal:               step.Goal,
			TrackedProperties:  properties,
			ObservedProperties: properties,
		})
		return StepOutcome{Decision: decision, RestoredProperties: properties}, nil
	}
}

// AddArtifact registers one artifact this module's MISS path produced,
// to be written by OnModuleComplete's save. An artifact whose filename
// matches output.exclude.patterns (spec.md §4.2: "artifacts whose path
// matches are never persisted to the record") is silently dropped.
func (h *ModuleHandle) AddArtifact(entry modrecord.ArtifactEntry, localFilePath string) {
	if h.engine.excludesOutput(entry.Filename) {
		return
	}
	h.artifacts = append(h.artifacts, entry)
	h.artifactFiles[entry.Filename] = localFilePath
}

// excludesOutput reports whether relPath matches one of
// Output.ExcludePatterns, compiling and caching the regexps on first
// use.
func (e *Engine) excludesOutput(relPath string) bool {
	for _, re := range e.outputExcludeRegexps() {
		if re.MatchString(relPath) {
			return true
		}
	}
	return false
}

func (e *Engine) outputExcludeRegexps() []*regexp.Regexp {
	e.outputExcludeOnce.Do(func() {
		e.outputExcludeCompiled = make([]*regexp.Regexp, 0, len(e.config.Output.ExcludePatterns))
		for _, pattern := range e.config.Output.ExcludePatterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				e.logger.Warn("invalid output.exclude pattern, ignoring", zap.String("pattern", pattern), zap.Error(err))
				continue
			}
			e.outputExcludeCompiled = append(e.outputExcludeCompiled, re)
		}
	})
	return e.outputExcludeCompiled
}

// OnModuleComplete implements onModuleComplete(moduleOutcome) from
// spec.md §6: on a MISS it saves the new BuildRecord; on any outcome it
// runs reconciliation when a baseline fingerprint is configured, and
// records the outcome with the Reporter.
func (h *ModuleHandle) OnModuleComplete(ctx context.Context) (modreport.Outcome, error) {
	e := h.engine
	hit := h.controller.State() == modexec.StateHit || h.controller.State() == modexec.StateDone

	var finalRecord *modrecord.BuildRecord
	if hit {
		finalRecord = h.controller.CurrentRecord()
	} else {
		finalRecord = h.buildRecord()
		saved, err := e.repo.SaveBuild(ctx, finalRecord, h.artifactFiles)
		if err != nil {
			return modreport.Outcome{}, err
		}
		h.controller.CompleteMiss(saved)
	}

	if err := h.reconcile(ctx, finalRecord); err != nil {
		return modreport.Outcome{}, err
	}

	outcome := modreport.Outcome{
		ModuleID:    h.moduleID,
		Fingerprint: h.fingerprint.Hex(),
		Hit:         hit,
	}
	e.reporter.Record(outcome)
	return outcome, nil
}

func (h *ModuleHandle) buildRecord() *modrecord.BuildRecord {
	upstreamFPs := make([]modrecord.UpstreamFingerprint, 0, len(h.upstreams))
	for _, u := range h.upstreams {
		upstreamFPs = append(upstreamFPs, modrecord.UpstreamFingerprint{ModuleID: u.ModuleID, Fingerprint: u.Fingerprint.Hex()})
	}
	return &modrecord.BuildRecord{
		SchemaVersion:              "1",
		ModuleID:                   h.moduleID,
		Fingerprint:                h.fingerprint.Hex(),
		HashAlgorithm:              string(h.engine.config.Configuration.HashAlgorithm),
		CacheImplementationVersion: CacheImplementationVersion,
		TimestampISO8601:           time.Now().UTC().Format(time.RFC3339),
		SourceTag:                  modrecord.SourceLocal,
		Steps:                      h.steps,
		Artifacts:                  h.artifacts,
		UpstreamFingerprints:       upstreamFPs,
	}
}

func (h *ModuleHandle) reconcile(ctx context.Context, current *modrecord.BuildRecord) error {
	e := h.engine
	baselineFP, ok := e.baselineFingerprintFor(h.moduleID)
	if !ok {
		return nil
	}
	fp, err := modhash.FingerprintFromHex(e.config.Configuration.HashAlgorithm, baselineFP)
	if err != nil {
		return nil
	}
	baselineRecord, _, found, err := e.repo.FindBuild(ctx, h.moduleID, fp)
	if err != nil || !found {
		return nil
	}

	diff, reconcileErr := modreconcile.Reconcile(e.config, baselineRecord, current, e.config.Configuration.FailFast)
	for _, entry := range diff.Entries {
		fields := []zap.Field{
			zap.String("module", h.moduleID.String()),
			zap.String("property", entry.Property),
			zap.String("baseline", entry.Baseline),
			zap.String("current", entry.Current),
		}
		switch entry.Severity {
		case modreconcile.SeverityWarn:
			e.logger.Warn("reconciliation diff", fields...)
		case modreconcile.SeverityInfo:
			e.logger.Info("reconciliation diff", fields...)
		}
	}
	if len(diff.Entries) > 0 {
		if data, marshalErr := modreconcile.MarshalDiff(diff); marshalErr != nil {
			e.logger.Warn("failed to marshal reconciliation diff", zap.String("module", h.moduleID.String()), zap.Error(marshalErr))
		} else if saveErr := e.repo.SaveDiff(ctx, e.reporter.BuildID(), h.moduleID, data); saveErr != nil {
			e.logger.Warn("failed to persist reconciliation diff", zap.String("module", h.moduleID.String()), zap.Error(saveErr))
		}
	}
	return reconcileErr
}

// OnBuildComplete implements onBuildComplete(buildId) from spec.md §6:
// it writes the aggregated ProjectIndex.
func (e *Engine) OnBuildComplete(ctx context.Context) (modreport.Summary, error) {
	if err := e.reporter.Save(ctx); err != nil {
		return modreport.Summary{}, err
	}
	return e.reporter.Summary(), nil
}
