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

// Package modreconcile implements the Reconciler: pairing a module's
// current build against a baseline BuildRecord, classifying tracked
// property differences, and producing a Diff document.
//
// Multiple independent property mismatches are collected with
// go.uber.org/multierr before failFast is applied, matching the
// teacher's own use of multierr for collecting parallel failures
// rather than returning only the first.
package modreconcile

import (
	"sort"

	"github.com/buildcache/modcache/internal/modcacheconfig"
	"github.com/buildcache/modcache/internal/modcacheerr"
	"github.com/buildcache/modcache/internal/modrecord"
	"go.uber.org/multierr"
)

// Severity classifies one Diff entry.
type Severity string

const (
	SeverityError Severity = "ERROR"
	SeverityWarn  Severity = "WARN"
	SeverityInfo  Severity = "INFO"
)

// DiffEntry is one property difference between the baseline and
// current step.
type DiffEntry struct {
	PluginID    modrecord.PluginID
	ExecutionID string
	Goal        string
	Property    string
	Baseline    string
	Current     string
	Severity    Severity
}

// Diff is the reconciliation report for one module's build.
type Diff struct {
	Entries []DiffEntry
}

// Reconcile pairs current's steps against baseline by (pluginId,
// executionId, goal) and classifies tracked property differences per
// each step's reconcile rule. When failFast is set, any ERROR-severity
// entry is also returned as a *modcacheerr.ReconciliationError; several
// of them are joined with multierr.Append, so every ERROR is reported,
// not just the first.
func Reconcile(config *modcacheconfig.ConfigModel, baseline, current *modrecord.BuildRecord, failFast bool) (*Diff, error) {
	diff := &Diff{}
	var errs error

	for _, step := range current.Steps {
		rule, ok := config.ReconcileRuleFor(step.PluginID.Group, step.PluginID.Artifact, step.ExecutionID, step.Goal)
		if !ok {
			continue
		}
		baselineStep, ok := baseline.StepByCoordinates(step.PluginID, step.ExecutionID, step.Goal)
		if !ok {
			continue
		}

		for _, name := range unionPropertyNames(step, baselineStep) {
			currentVal := step.TrackedProperties[name]
			baselineVal := baselineStep.TrackedProperties[name]
			if currentVal == baselineVal {
				continue
			}

			severity, logged := classify(rule, name)
			if !logged {
				continue
			}
			diff.Entries = append(diff.Entries, DiffEntry{
				PluginID:    step.PluginID,
				ExecutionID: step.ExecutionID,
				Goal:        step.Goal,
				Property:    name,
				Baseline:    baselineVal,
				Current:     currentVal,
				Severity:    severity,
			})
			if severity == SeverityError && failFast {
				errs = multierr.Append(errs, modcacheerr.NewReconciliationError(
					step.PluginID.String(), step.ExecutionID, name, baselineVal, currentVal,
				))
			}
		}
	}

	sort.Slice(diff.Entries, func(i, j int) bool {
		if diff.Entries[i].PluginID.String() != diff.Entries[j].PluginID.String() {
			return diff.Entries[i].PluginID.String() < diff.Entries[j].PluginID.String()
		}
		return diff.Entries[i].Property < diff.Entries[j].Property
	})

	return diff, errs
}

func unionPropertyNames(a, b modrecord.StepExecutionRecord) []string {
	seen := make(map[string]struct{})
	for name := range a.TrackedProperties {
		seen[name] = struct{}{}
	}
	for name := range b.TrackedProperties {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// classify applies spec.md §4.9's classification: a tracked property
// differing is an ERROR, a logged property is a WARN, a nologs
// property is silently ignored, and when logAllProperties is set every
// other differing property is logged at INFO.
func classify(rule modcacheconfig.ReconcilePluginRule, property string) (Severity, bool) {
	if containsTracked(rule.Reconciles, property) {
		return SeverityError, true
	}
	if containsString(rule.NoLogs, property) {
		return "", false
	}
	if containsString(rule.Logs, property) {
		return SeverityWarn, true
	}
	if rule.LogAll {
		return SeverityInfo, true
	}
	return "", false
}

func containsTracked(tracked []modcacheconfig.TrackedProperty, property string) bool {
	for _, t := range tracked {
		if string(t) == property {
			return true
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
