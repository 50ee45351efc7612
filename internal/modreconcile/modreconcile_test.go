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

package modreconcile_test

import (
	"testing"

	"github.com/buildcache/modcache/internal/modcacheconfig"
	"github.com/buildcache/modcache/internal/modreconcile"
	"github.com/buildcache/modcache/internal/modrecord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pluginStep(props modrecord.PropertyMap) modrecord.StepExecutionRecord {
	return modrecord.StepExecutionRecord{
		PluginID:          modrecord.PluginID{Group: "org.example", Artifact: "some-plugin"},
		ExecutionID:       "default",
		Goal:              "generate",
		TrackedProperties: props,
	}
}

func configWithRule(reconciles, logs, nologs []string, logAll bool) *modcacheconfig.ConfigModel {
	config := modcacheconfig.Default()
	tracked := make([]modcacheconfig.TrackedProperty, len(reconciles))
	for i, r := range reconciles {
		tracked[i] = modcacheconfig.TrackedProperty(r)
	}
	config.ExecutionControl.Reconcile.Plugins = []modcacheconfig.ReconcilePluginRule{
		{
			Plugin:     modcacheconfig.PluginCoordinates{ArtifactID: "some-plugin"},
			Reconciles: tracked,
			Logs:       logs,
			NoLogs:     nologs,
			LogAll:     logAll,
		},
	}
	return config
}

func TestReconcileTrackedPropertyDifferenceIsError(t *testing.T) {
	t.Parallel()
	config := configWithRule([]string{"javac.source"}, nil, nil, false)
	baseline := &modrecord.BuildRecord{Steps: []modrecord.StepExecutionRecord{pluginStep(modrecord.PropertyMap{"javac.source": "1.8"})}}
	current := &modrecord.BuildRecord{Steps: []modrecord.StepExecutionRecord{pluginStep(modrecord.PropertyMap{"javac.source": "11"})}}

	diff, err := modreconcile.Reconcile(config, baseline, current, false)
	require.NoError(t, err)
	require.Len(t, diff.Entries, 1)
	assert.Equal(t, modreconcile.SeverityError, diff.Entries[0].Severity)
}

func TestReconcileFailFastReturnsError(t *testing.T) {
	t.Parallel()
	config := configWithRule([]string{"javac.source"}, nil, nil, false)
	baseline := &modrecord.BuildRecord{Steps: []modrecord.StepExecutionRecord{pluginStep(modrecord.PropertyMap{"javac.source": "1.8"})}}
	current := &modrecord.BuildRecord{Steps: []modrecord.StepExecutionRecord{pluginStep(modrecord.PropertyMap{"javac.source": "11"})}}

	_, err := modreconcile.Reconcile(config, baseline, current, true)
	require.Error(t, err)
}

func TestReconcileLoggedPropertyIsWarnNotFailed(t *testing.T) {
	t.Parallel()
	config := configWithRule(nil, []string{"build.timestamp"}, nil, false)
	baseline := &modrecord.BuildRecord{Steps: []modrecord.StepExecutionRecord{pluginStep(modrecord.PropertyMap{"build.timestamp": "t1"})}}
	current := &modrecord.BuildRecord{Steps: []modrecord.StepExecutionRecord{pluginStep(modrecord.PropertyMap{"build.timestamp": "t2"})}}

	diff, err := modreconcile.Reconcile(config, baseline, current, true)
	require.NoError(t, err)
	require.Len(t, diff.Entries, 1)
	assert.Equal(t, modreconcile.SeverityWarn, diff.Entries[0].Severity)
}

func TestReconcileNoLogsPropertyIsIgnored(t *testing.T) {
	t.Parallel()
	config := configWithRule(nil, nil, []string{"ignored.prop"}, true)
	baseline := &modrecord.BuildRecord{Steps: []modrecord.StepExecutionRecord{pluginStep(modrecord.PropertyMap{"ignored.prop": "a"})}}
	current := &modrecord.BuildRecord{Steps: []modrecord.StepExecutionRecord{pluginStep(modrecord.PropertyMap{"ignored.prop": "b"})}}

	diff, err := modreconcile.Reconcile(config, baseline, current, true)
	require.NoError(t, err)
	assert.Empty(t, diff.Entries)
}

func TestReconcileLogAllCatchesUnclassifiedDifferenceAsInfo(t *testing.T) {
	t.Parallel()
	config := configWithRule(nil, nil, nil, true)
	baseline := &modrecord.BuildRecord{Steps: []modrecord.StepExecutionRecord{pluginStep(modrecord.PropertyMap{"other.prop": "a"})}}
	current := &modrecord.BuildRecord{Steps: []modrecord.StepExecutionRecord{pluginStep(modrecord.PropertyMap{"other.prop": "b"})}}

	diff, err := modreconcile.Reconcile(config, baseline, current, true)
	require.NoError(t, err)
	require.Len(t, diff.Entries, 1)
	assert.Equal(t, modreconcile.SeverityInfo, diff.Entries[0].Severity)
}

func TestMarshalDiffProducesXML(t *testing.T) {
	t.Parallel()
	diff := &modreconcile.Diff{Entries: []modreconcile.DiffEntry{
		{PluginID: modrecord.PluginID{Group: "org.example", Artifact: "plugin"}, Property: "p", Severity: modreconcile.SeverityWarn},
	}}
	data, err := modreconcile.MarshalDiff(diff)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<diff>")
}
