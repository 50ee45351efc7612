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

// Package modcacheconfig holds the typed view of maven-cache-config.xml
// and the matching rules used by ExecutionController and Reconciler.
//
// A ConfigModel is immutable once constructed. An absent document never
// errors and yields Default(): the cache is enabled with empty rules,
// and the default glob selects all regular files under the module root
// excluding build output directories. A partial document never errors
// either; every list it omits stays empty, so Default()'s build-output
// excludes are not applied to it.
package modcacheconfig

import (
	"github.com/buildcache/modcache/internal/modhash"
)

// GlobalInputConfig is input.global from the configuration document.
type GlobalInputConfig struct {
	Glob     string
	Includes []string
	Excludes []string
}

// DirScanConfig is a plugin's own include/exclude path additions to the
// scan.
type DirScanConfig struct {
	Includes []string
	Excludes []string
}

// PerExecutionDirScanConfig scopes a DirScanConfig to one execution id.
type PerExecutionDirScanConfig struct {
	ExecutionID string
	DirScanConfig
}

// PluginCoordinates identifies a plugin rule's target. GroupID is
// optional: when empty, the rule matches artifacts across groups.
type PluginCoordinates struct {
	GroupID    string
	ArtifactID string
}

// Matches reports whether a step's plugin coordinates satisfy this rule,
// per the matching rules in spec §4.2: artifactId must be equal, and
// groupId must either be absent on the rule or equal.
func (p PluginCoordinates) Matches(groupID, artifactID string) bool {
	if p.ArtifactID != artifactID {
		return false
	}
	return p.GroupID == "" || p.GroupID == groupID
}

// PluginInputConfig is one entry of input.plugins.
type PluginInputConfig struct {
	Plugin               PluginCoordinates
	DirScan              *DirScanConfig
	PerExecutionDirScans []PerExecutionDirScanConfig
	ExcludeProperties    []string // effectivePom.excludeProperties
}

// TrackedProperty names a property a reconcile rule tracks.
type TrackedProperty string

// ReconcilePluginRule is one executionControl.reconcile.plugins entry.
type ReconcilePluginRule struct {
	Plugin       PluginCoordinates
	Goals        []string
	ExecutionIDs []string
	Reconciles   []TrackedProperty
	Logs         []string
	NoLogs       []string
	LogAll       bool
}

// MatchesStep applies the three-level matching rule from spec §4.2: a
// step matches iff its plugin matches, and (when the rule names
// executions) its execution id is in that set, and (when the rule names
// goals) its goal is in that list.
func (r ReconcilePluginRule) MatchesStep(groupID, artifactID, executionID, goal string) bool {
	if !r.Plugin.Matches(groupID, artifactID) {
		return false
	}
	if len(r.ExecutionIDs) > 0 && !containsString(r.ExecutionIDs, executionID) {
		return false
	}
	if len(r.Goals) > 0 && !containsString(r.Goals, goal) {
		return false
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// ExecutionControlRule is a plain plugin+execution+goal matcher, used by
// ignoreMissing and runAlways (which carry no reconcile-specific
// fields).
type ExecutionControlRule struct {
	Plugin       PluginCoordinates
	Goals        []string
	ExecutionIDs []string
}

// MatchesStep applies the same three-level matching rule as
// ReconcilePluginRule.MatchesStep.
func (r ExecutionControlRule) MatchesStep(groupID, artifactID, executionID, goal string) bool {
	if !r.Plugin.Matches(groupID, artifactID) {
		return false
	}
	if len(r.ExecutionIDs) > 0 && !containsString(r.ExecutionIDs, executionID) {
		return false
	}
	if len(r.Goals) > 0 && !containsString(r.Goals, goal) {
		return false
	}
	return true
}

// ExecutionControl holds the ignoreMissing, runAlways, and reconcile
// rule sets.
type ExecutionControl struct {
	IgnoreMissing []ExecutionControlRule
	RunAlways     []ExecutionControlRule
	Reconcile     ReconcileConfig
}

// ReconcileConfig holds executionControl.reconcile.
type ReconcileConfig struct {
	Plugins []ReconcilePluginRule
}

// OutputConfig is output.exclude.patterns: artifacts whose path matches
// one of these regexes are never persisted to the record.
type OutputConfig struct {
	ExcludePatterns []string
}

// StoreConfig configures one BlobStore endpoint.
type StoreConfig struct {
	Enabled bool
	// For a local store, Location is a filesystem directory. For a
	// remote store, Location is a base URL.
	Location string
	// SaveEnabled gates whether saves are attempted against this store
	// (configuration.remote.saveToRemote etc.)
	SaveEnabled bool
	// MaxLocalBuildsCached bounds the local store's LRU eviction; zero
	// means unbounded. Meaningless for a remote store.
	MaxLocalBuildsCached int
	ConnectTimeoutMillis int
	RequestTimeoutMillis int
}

// GlobalConfig is the configuration.* block.
type GlobalConfig struct {
	Local                   StoreConfig
	Remote                  StoreConfig
	ProjectVersioning       bool
	AttachedOutputs         bool
	HashAlgorithm           modhash.Algorithm
	MultiModule             bool
	BaselineURL             string
	FailFast                bool
	SaveFinal               bool
	LazyRestore             bool
	RestoreGeneratedSources bool
}

// ConfigModel is the typed, immutable view of maven-cache-config.xml.
type ConfigModel struct {
	Enabled          bool
	Global           GlobalInputConfig
	Plugins          []PluginInputConfig
	ExecutionControl ExecutionControl
	Output           OutputConfig
	Configuration    GlobalConfig
}

// isProcessPlugins is always true in this implementation. The source
// this cache's behavior is modeled on treats it as an always-true,
// non-configurable constant whose original intent is unclear; spec §9
// leaves it undocumented-but-fixed rather than inferring a toggle.
const isProcessPlugins = true

// IsProcessPlugins reports the fixed isProcessPlugins constant.
func IsProcessPlugins() bool {
	return isProcessPlugins
}

// Default returns the configuration used when no maven-cache-config.xml
// is present: caching enabled, every rule list empty, the default glob
// selecting all regular files under the module root excluding build
// output directories.
func Default() *ConfigModel {
	return &ConfigModel{
		Enabled: true,
		Global: GlobalInputConfig{
			Glob: "**/*",
			Excludes: []string{
				"target/**",
				"build/**",
				".git/**",
				"**/*.class",
			},
		},
		Configuration: GlobalConfig{
			Local: StoreConfig{
				Enabled:     true,
				SaveEnabled: true,
			},
			HashAlgorithm:           modhash.AlgorithmSHA256,
			RestoreGeneratedSources: true,
		},
	}
}

// PluginConfigFor returns the PluginInputConfig for the given
// coordinates, or false if the module does not configure that plugin's
// input scan.
func (c *ConfigModel) PluginConfigFor(groupID, artifactID string) (PluginInputConfig, bool) {
	for _, p := range c.Plugins {
		if p.Plugin.Matches(groupID, artifactID) {
			return p, true
		}
	}
	return PluginInputConfig{}, false
}

// MatchesRunAlways reports whether a step is configured to always
// execute.
func (c *ConfigModel) MatchesRunAlways(groupID, artifactID, executionID, goal string) bool {
	for _, rule := range c.ExecutionControl.RunAlways {
		if rule.MatchesStep(groupID, artifactID, executionID, goal) {
			return true
		}
	}
	return false
}

// MatchesIgnoreMissing reports whether a step absent from a BuildRecord
// is tolerated rather than forcing a cache miss.
func (c *ConfigModel) MatchesIgnoreMissing(groupID, artifactID, executionID, goal string) bool {
	for _, rule := range c.ExecutionControl.IgnoreMissing {
		if rule.MatchesStep(groupID, artifactID, executionID, goal) {
			return true
		}
	}
	return false
}

// ReconcileRuleFor returns the reconcile rule matching a step, if any.
func (c *ConfigModel) ReconcileRuleFor(groupID, artifactID, executionID, goal string) (ReconcilePluginRule, bool) {
	for _, rule := range c.ExecutionControl.Reconcile.Plugins {
		if rule.MatchesStep(groupID, artifactID, executionID, goal) {
			return rule, true
		}
	}
	return ReconcilePluginRule{}, false
}
