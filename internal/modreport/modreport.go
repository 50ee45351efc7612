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

// Package modreport implements the Reporter: aggregating per-module
// outcomes into a ProjectIndex and persisting it through
// CacheRepository, plus the cache-report diagnostics counters
// surfaced to the demo CLI.
//
// BuildId generation is grounded on the teacher's use of
// github.com/google/uuid for opaque, collision-free identifiers.
package modreport

import (
	"context"
	"sort"
	"sync"

	"github.com/buildcache/modcache/internal/modrecord"
	"github.com/buildcache/modcache/internal/modrepo"
	"github.com/google/uuid"
)

// Outcome is one module's final state, contributed by the
// ExecutionController via onModuleComplete.
type Outcome struct {
	ModuleID    modrecord.ModuleID
	Fingerprint string // hex
	StoreURL    string
	Hit         bool
}

// Reporter accumulates module outcomes for one top-level build and
// writes the aggregated ProjectIndex and diagnostics summary.
type Reporter struct {
	repo    *modrepo.Repository
	buildID string

	mu       sync.Mutex
	outcomes []Outcome
	hits     int
	misses   int
}

// New returns a Reporter for a new build, generating a fresh buildId.
func New(repo *modrepo.Repository) *Reporter {
	return &Reporter{repo: repo, buildID: uuid.NewString()}
}

// BuildID returns this build's generated identifier.
func (r *Reporter) BuildID() string {
	return r.buildID
}

// Record adds one module's outcome to the build's aggregate.
func (r *Reporter) Record(outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	if outcome.Hit {
		r.hits++
	} else {
		r.misses++
	}
}

// Summary is the cache-report diagnostics counters for one build,
// surfaced from onBuildComplete for the demo CLI's one-line summary.
type Summary struct {
	BuildID string
	Hits    int
	Misses  int
	Total   int
}

// Summary returns the running hit/miss tally.
func (r *Reporter) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Summary{BuildID: r.buildID, Hits: r.hits, Misses: r.misses, Total: len(r.outcomes)}
}

// Save persists the aggregated ProjectIndex via the repository, under
// this build's buildId-scoped path. It is one-shot per top-level
// build: calling it twice overwrites the same path harmlessly, but
// callers are expected to call it exactly once.
func (r *Reporter) Save(ctx context.Context) error {
	r.mu.Lock()
	entries := make([]modrecord.ProjectIndexEntry, 0, len(r.outcomes))
	for _, outcome := range r.outcomes {
		entries = append(entries, modrecord.ProjectIndexEntry{
			ModuleID:    outcome.ModuleID,
			Fingerprint: outcome.Fingerprint,
			StoreURL:    outcome.StoreURL,
		})
	}
	buildID := r.buildID
	r.mu.Unlock()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModuleID.String() < entries[j].ModuleID.String()
	})

	index := &modrecord.ProjectIndex{BuildID: buildID, Projects: entries}
	return r.repo.SaveReport(ctx, index)
}
