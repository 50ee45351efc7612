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

// Package modexec implements the ExecutionController: the per-step
// aroundStep hook and the per-module state machine driving a module
// from UNDECIDED to DONE.
//
// Bounded fan-out within a step's artifact restores is grounded on the
// teacher's thread.Parallelize helper: a semaphore-bounded errgroup
// rather than an unbounded goroutine-per-artifact spawn.
package modexec

import (
	"context"
	"sync"

	"github.com/buildcache/modcache/internal/modcacheconfig"
	"github.com/buildcache/modcache/internal/modcacheerr"
	"github.com/buildcache/modcache/internal/modhash"
	"github.com/buildcache/modcache/internal/modrecord"
	"github.com/buildcache/modcache/internal/modrepo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// State is a module's position in the execution state machine.
type State int

const (
	StateUndecided State = iota
	StateScanned
	StateLookedUp
	StateHit
	StateMiss
	StateExecuted
	StateSaved
	StateSaveSkipped
	StateDone
)

func (s State) String() string {
	switch s {
	case StateUndecided:
		return "UNDECIDED"
	case StateScanned:
		return "SCANNED"
	case StateLookedUp:
		return "LOOKED_UP"
	case StateHit:
		return "HIT"
	case StateMiss:
		return "MISS"
	case StateExecuted:
		return "EXECUTED"
	case StateSaved:
		return "SAVED"
	case StateSaveSkipped:
		return "SAVE_SKIPPED"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// StepDecision is the ExecutionController's verdict for one step,
// returned by Decide.
type StepDecision int

const (
	// DecisionExecute means the step must run.
	DecisionExecute StepDecision = iota
	// DecisionCacheHit means the step is skipped and its recorded
	// outputs restored.
	DecisionCacheHit
	// DecisionSkippedIgnoreMissing means the step is treated as a
	// success without execution or restore.
	DecisionSkippedIgnoreMissing
)

// Step identifies one build step for matching against execution
// control rules.
type Step struct {
	PluginID    modrecord.PluginID
	ExecutionID string
	Goal        string
}

// Controller drives one module through the state machine and makes
// per-step decisions. It is not safe for concurrent use by more than
// one goroutine driving the same module's steps, matching spec.md §5's
// "single-threaded cooperative within a module's step sequence".
type Controller struct {
	logger *zap.Logger
	config *modcacheconfig.ConfigModel
	repo   *modrepo.Repository

	state  atomic.Int32
	record *modrecord.BuildRecord // present once LOOKED_UP finds a HIT

	hits   atomic.Int64
	misses atomic.Int64
}

// New returns a Controller for one module's build.
func New(logger *zap.Logger, config *modcacheconfig.ConfigModel, repo *modrepo.Repository) *Controller {
	c := &Controller{logger: logger, config: config, repo: repo}
	c.state.Store(int32(StateUndecided))
	return c
}

// State returns the module's current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// CurrentRecord returns the BuildRecord a HIT module was matched
// against, or nil for a MISS module or before lookup.
func (c *Controller) CurrentRecord() *modrecord.BuildRecord {
	return c.record
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

// BeginLookup transitions SCANNED → LOOKED_UP and records the outcome:
// a record being usable transitions to HIT, otherwise MISS.
func (c *Controller) BeginLookup(record *modrecord.BuildRecord, accepted bool) {
	c.setState(StateScanned)
	c.setState(StateLookedUp)
	if record != nil && accepted {
		c.record = record
		c.setState(StateHit)
		c.hits.Inc()
		return
	}
	c.setState(StateMiss)
	c.misses.Inc()
}

// Decide implements spec.md §4.8's four-branch step decision.
func (c *Controller) Decide(step Step) StepDecision {
	if c.config.MatchesRunAlways(step.PluginID.Group, step.PluginID.Artifact, step.ExecutionID, step.Goal) {
		return DecisionExecute
	}
	if c.State() == StateHit {
		if _, ok := c.record.StepByCoordinates(step.PluginID, step.ExecutionID, step.Goal); ok {
			return DecisionCacheHit
		}
	}
	if c.config.MatchesIgnoreMissing(step.PluginID.Group, step.PluginID.Artifact, step.ExecutionID, step.Goal) {
		if c.State() != StateHit {
			return DecisionSkippedIgnoreMissing
		}
		if _, ok := c.record.StepByCoordinates(step.PluginID, step.ExecutionID, step.Goal); !ok {
			return DecisionSkippedIgnoreMissing
		}
	}
	return DecisionExecute
}

// RestoreArtifacts restores every artifact for a cache-hit module,
// bounded to concurrency goroutines at once. A restore failure for any
// artifact downgrades the module to MISS per spec.md §4.8 ("a restore
// failure in HIT path downgrades the module to MISS"), except an
// IntegrityError, which aborts the build and deletes the local record.
func (c *Controller) RestoreArtifacts(ctx context.Context, moduleID modrecord.ModuleID, destPaths map[string]string, concurrency int) error {
	if c.State() != StateHit {
		return nil
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	fp, err := fingerprintFromRecord(c.record)
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, artifact := range c.record.Artifacts {
		artifact := artifact
		dest, ok := destPaths[artifact.Filename]
		if !ok {
			continue
		}
		if c.skipGeneratedSource(artifact) {
			continue
		}
		group.Go(func() error {
			return c.repo.RestoreArtifact(ctx, moduleID, fp, artifact, dest)
		})
	}

	if err := group.Wait(); err != nil {
		var integrityErr *modcacheerr.IntegrityError
		if isIntegrityError(err, &integrityErr) {
			if delErr := c.repo.DeleteLocalRecord(ctx, moduleID, fp); delErr != nil {
				c.logger.Warn("failed to delete corrupted local record", zap.Error(delErr))
			}
			return err
		}
		c.logger.Warn("artifact restore failed, downgrading module to MISS", zap.String("module", moduleID.String()), zap.Error(err))
		c.record = nil
		c.setState(StateMiss)
		c.misses.Inc()
		c.hits.Dec()
		return nil
	}
	c.setState(StateDone)
	return nil
}

// skipGeneratedSource reports whether artifact should be left out of a
// restore because remote.cache.restoreGeneratedSources (spec.md §6) is
// disabled.
func (c *Controller) skipGeneratedSource(artifact modrecord.ArtifactEntry) bool {
	return !c.config.Configuration.RestoreGeneratedSources && artifact.IsGeneratedSource()
}

// Restorer performs one artifact's deferred restore, per lazyRestore:
// "HIT artifacts are not restored until the build driver's first read
// of a given output path." Calling a Restorer more than once is safe;
// only the first call performs I/O, and every call observes that first
// call's result.
type Restorer func() error

// LazyRestoreArtifacts returns one Restorer per requested artifact
// instead of eagerly copying every artifact to disk, for use when
// Configuration.LazyRestore is set. The caller is responsible for
// invoking each Restorer before its destination path is first read.
func (c *Controller) LazyRestoreArtifacts(ctx context.Context, moduleID modrecord.ModuleID, destPaths map[string]string) (map[string]Restorer, error) {
	if c.State() != StateHit {
		return nil, nil
	}
	fp, err := fingerprintFromRecord(c.record)
	if err != nil {
		return nil, err
	}

	restorers := make(map[string]Restorer, len(destPaths))
	for _, artifact := range c.record.Artifacts {
		artifact := artifact
		dest, ok := destPaths[artifact.Filename]
		if !ok || c.skipGeneratedSource(artifact) {
			continue
		}
		var once sync.Once
		var result error
		restorers[artifact.Filename] = func() error {
			once.Do(func() {
				result = c.restoreOne(ctx, moduleID, fp, artifact, dest)
			})
			return result
		}
	}
	return restorers, nil
}

// restoreOne restores a single artifact, applying the same
// integrity-error local-record purge as the eager RestoreArtifacts
// path.
func (c *Controller) restoreOne(ctx context.Context, moduleID modrecord.ModuleID, fp modhash.Fingerprint, artifact modrecord.ArtifactEntry, dest string) error {
	err := c.repo.RestoreArtifact(ctx, moduleID, fp, artifact, dest)
	if err == nil {
		return nil
	}
	var integrityErr *modcacheerr.IntegrityError
	if isIntegrityError(err, &integrityErr) {
		if delErr := c.repo.DeleteLocalRecord(ctx, moduleID, fp); delErr != nil {
			c.logger.Warn("failed to delete corrupted local record", zap.Error(delErr))
		}
	}
	return err
}

// CompleteMiss transitions EXECUTED → {SAVED, SAVE_SKIPPED} → DONE
// after every step has executed and saveBuild has been attempted.
func (c *Controller) CompleteMiss(saved bool) {
	c.setState(StateExecuted)
	if saved {
		c.setState(StateSaved)
	} else {
		c.setState(StateSaveSkipped)
	}
	c.setState(StateDone)
}

// Counters returns the running hit/miss tally for this controller's
// module. The Reporter keeps its own tally from module outcomes and
// does not read these.
func (c *Controller) Counters() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
