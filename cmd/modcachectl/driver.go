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

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/buildcache/modcache"
	"github.com/buildcache/modcache/internal/modcacheconfig"
	"github.com/buildcache/modcache/internal/modexec"
	"github.com/buildcache/modcache/internal/modfingerprint"
	"github.com/buildcache/modcache/internal/modhash"
	"github.com/buildcache/modcache/internal/modrecord"
	"github.com/buildcache/modcache/internal/modreport"
)

// moduleResult is one module's outcome, gathered for the final report.
type moduleResult struct {
	moduleID modrecord.ModuleID
	state    modexec.State
	hit      bool
}

// runReactor drives every module in reactor, in the order given, through
// the modcache engine. Modules are expected to already be listed in
// dependency order, matching how a real reactor build plan is computed
// before any module starts.
func runReactor(ctx context.Context, logger *zap.Logger, reactor *reactorDescriptor, props modcacheconfig.Properties) (modreport.Summary, []moduleResult, error) {
	engine, status, err := modcache.Initialize(modcache.Session{
		MultiModuleRoot: reactor.MultiModuleRoot,
		Properties:      props,
		Logger:          logger,
	})
	if err != nil {
		return modreport.Summary{}, nil, fmt.Errorf("initializing cache engine: %w", err)
	}
	if status == modcache.StatusDisabled {
		return modreport.Summary{}, nil, nil
	}

	byKey := make(map[string]moduleDescriptor, len(reactor.Modules))
	for _, module := range reactor.Modules {
		byKey[moduleKey(module.Group, module.Artifact)] = module
	}

	var results []moduleResult
	for _, module := range reactor.Modules {
		result, err := runModule(ctx, engine, reactor, byKey, module)
		if err != nil {
			return modreport.Summary{}, nil, fmt.Errorf("module %s:%s: %w", module.Group, module.Artifact, err)
		}
		results = append(results, result)
	}

	summary, err := engine.OnBuildComplete(ctx)
	if err != nil {
		return modreport.Summary{}, nil, fmt.Errorf("completing build: %w", err)
	}
	return summary, results, nil
}

func runModule(ctx context.Context, engine *modcache.Engine, reactor *reactorDescriptor, byKey map[string]moduleDescriptor, module moduleDescriptor) (moduleResult, error) {
	moduleID := modrecord.ModuleID{Group: module.Group, Artifact: module.Artifact, Version: module.Version}

	var upstreams []modfingerprint.Upstream
	for _, upstreamKey := range module.Upstreams {
		upstreamModule, ok := byKey[upstreamKey]
		if !ok {
			return moduleResult{}, fmt.Errorf("unknown upstream %q", upstreamKey)
		}
		upstreamID := modrecord.ModuleID{Group: upstreamModule.Group, Artifact: upstreamModule.Artifact, Version: upstreamModule.Version}
		fp, ok := engine.FingerprintIndex().Await(ctx.Done(), upstreamID)
		if !ok {
			return moduleResult{}, fmt.Errorf("upstream %q fingerprint never published", upstreamKey)
		}
		upstreams = append(upstreams, modfingerprint.Upstream{ModuleID: upstreamID, Fingerprint: fp})
	}

	input := modcache.ModuleInput{
		ModuleID:               moduleID,
		ModuleRoot:             filepath.Join(reactor.MultiModuleRoot, module.Dir),
		EffectiveDescriptorXML: effectiveDescriptorXML(module),
		PluginConfigurations:   pluginConfigurations(module),
		Upstreams:              upstreams,
	}

	handle, err := engine.BeginModule(ctx, input)
	if err != nil {
		return moduleResult{}, fmt.Errorf("beginning module: %w", err)
	}

	for _, step := range module.Steps {
		step := step
		execStep := modexec.Step{
			PluginID:    modrecord.PluginID{Group: step.Plugin.Group, Artifact: step.Plugin.Artifact, Version: step.Plugin.Version},
			ExecutionID: step.ExecutionID,
			Goal:        step.Goal,
		}
		if _, err := handle.AroundStep(execStep, func() (modrecord.PropertyMap, error) {
			return modrecord.PropertyMap(step.Properties), nil
		}); err != nil {
			return moduleResult{}, fmt.Errorf("step %s/%s: %w", step.ExecutionID, step.Goal, err)
		}
	}

	outputDir := filepath.Join(input.ModuleRoot, "target")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return moduleResult{}, fmt.Errorf("creating output directory: %w", err)
	}

	if handle.State() == modexec.StateHit {
		destPaths := make(map[string]string, len(module.Artifacts))
		for _, artifact := range module.Artifacts {
			destPaths[artifact.Filename] = filepath.Join(outputDir, artifact.Filename)
		}
		if err := handle.RestoreArtifacts(ctx, destPaths); err != nil {
			return moduleResult{}, fmt.Errorf("restoring artifacts: %w", err)
		}
	}

	if handle.State() != modexec.StateHit && handle.State() != modexec.StateDone {
		algorithm := engine.Config().Configuration.HashAlgorithm
		for _, artifact := range module.Artifacts {
			localPath := filepath.Join(outputDir, artifact.Filename)
			content := []byte(artifact.Content)
			if err := os.WriteFile(localPath, content, 0o644); err != nil {
				return moduleResult{}, fmt.Errorf("writing artifact %q: %w", artifact.Filename, err)
			}
			digest, err := modhash.Hash(algorithm, content)
			if err != nil {
				return moduleResult{}, err
			}
			handle.AddArtifact(modrecord.ArtifactEntry{
				Filename:      artifact.Filename,
				Classifier:    artifact.Classifier,
				Extension:     artifact.Extension,
				ContentDigest: digest.Hex(),
				SizeBytes:     int64(len(content)),
			}, localPath)
		}
	}

	outcome, err := handle.OnModuleComplete(ctx)
	if err != nil {
		return moduleResult{}, fmt.Errorf("completing module: %w", err)
	}

	return moduleResult{moduleID: moduleID, state: handle.State(), hit: outcome.Hit}, nil
}

// effectiveDescriptorXML renders a module's coordinates and step
// configuration into a deterministic byte slice standing in for a
// project's effective descriptor: two runs over an unchanged
// moduleDescriptor always produce identical bytes.
func effectiveDescriptorXML(module moduleDescriptor) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "<module><group>%s</group><artifact>%s</artifact><version>%s</version>", module.Group, module.Artifact, module.Version)
	for _, step := range module.Steps {
		fmt.Fprintf(&b, "<step plugin=\"%s:%s:%s\" executionId=\"%s\" goal=\"%s\">", step.Plugin.Group, step.Plugin.Artifact, step.Plugin.Version, step.ExecutionID, step.Goal)
		for _, key := range sortedKeys(step.Properties) {
			fmt.Fprintf(&b, "<property name=\"%s\">%s</property>", key, step.Properties[key])
		}
		b.WriteString("</step>")
	}
	b.WriteString("</module>")
	return []byte(b.String())
}

func pluginConfigurations(module moduleDescriptor) []modfingerprint.PluginConfiguration {
	configs := make([]modfingerprint.PluginConfiguration, 0, len(module.Steps))
	for _, step := range module.Steps {
		var b strings.Builder
		for _, key := range sortedKeys(step.Properties) {
			fmt.Fprintf(&b, "%s=%s;", key, step.Properties[key])
		}
		configs = append(configs, modfingerprint.PluginConfiguration{
			Coordinates:     modrecord.PluginID{Group: step.Plugin.Group, Artifact: step.Plugin.Artifact, Version: step.Plugin.Version},
			NormalizedBytes: []byte(b.String()),
		})
	}
	return configs
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
