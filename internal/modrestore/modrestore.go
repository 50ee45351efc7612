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

// Package modrestore implements the RestoreDecider: a pure,
// no-I/O decision over a candidate BuildRecord and the current
// configuration.
package modrestore

import (
	"fmt"

	"github.com/buildcache/modcache/internal/modcacheconfig"
	"github.com/buildcache/modcache/internal/modrecord"
)

// Decision is the final, non-retractable verdict for a candidate
// record.
type Decision struct {
	Accepted bool
	// Reason explains a rejection; empty when Accepted.
	Reason string
}

// Decide evaluates record against algorithm/version and the
// configuration's reconcile rules. The decision is final for the
// module: spec.md §4.7 "the decision is final for the module".
func Decide(record *modrecord.BuildRecord, currentAlgorithm, currentCacheImplementationVersion string, config *modcacheconfig.ConfigModel) Decision {
	if record.HashAlgorithm != currentAlgorithm {
		return Decision{Reason: fmt.Sprintf("record hash algorithm %q does not match current %q", record.HashAlgorithm, currentAlgorithm)}
	}
	if record.CacheImplementationVersion != currentCacheImplementationVersion {
		return Decision{Reason: fmt.Sprintf("record cache implementation version %q does not match current %q", record.CacheImplementationVersion, currentCacheImplementationVersion)}
	}

	for _, step := range record.Steps {
		rule, ok := config.ReconcileRuleFor(step.PluginID.Group, step.PluginID.Artifact, step.ExecutionID, step.Goal)
		if !ok {
			continue
		}
		if !satisfiable(step, rule) {
			return Decision{Reason: fmt.Sprintf(
				"step %s/%s/%s cannot satisfy reconcile rule: missing tracked properties",
				step.PluginID.String(), step.ExecutionID, step.Goal,
			)}
		}
	}

	return Decision{Accepted: true}
}

// satisfiable reports whether record's step carries every property the
// reconcile rule requires to be tracked.
func satisfiable(step modrecord.StepExecutionRecord, rule modcacheconfig.ReconcilePluginRule) bool {
	for _, tracked := range rule.Reconciles {
		if _, ok := step.TrackedProperties[string(tracked)]; !ok {
			return false
		}
	}
	return true
}
