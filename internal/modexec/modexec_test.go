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

package modexec_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/buildcache/modcache/internal/modcacheconfig"
	"github.com/buildcache/modcache/internal/modexec"
	"github.com/buildcache/modcache/internal/modhash"
	"github.com/buildcache/modcache/internal/modrecord"
	"github.com/buildcache/modcache/internal/modrepo"
	"github.com/buildcache/modcache/internal/modstore/storelocal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDecideRunAlwaysOverridesCacheHit(t *testing.T) {
	t.Parallel()
	config := modcacheconfig.Default()
	config.ExecutionControl.RunAlways = []modcacheconfig.ExecutionControlRule{
		{Plugin: modcacheconfig.PluginCoordinates{ArtifactID: "some-plugin"}, Goals: []string{"generate"}},
	}
	ctrl := modexec.New(zaptest.NewLogger(t), config, nil)
	step := modexec.Step{PluginID: modrecord.PluginID{Group: "org.example", Artifact: "some-plugin"}, Goal: "generate"}
	record := &modrecord.BuildRecord{
		Steps: []modrecord.StepExecutionRecord{
			{PluginID: step.PluginID, ExecutionID: step.ExecutionID, Goal: step.Goal},
		},
	}
	ctrl.BeginLookup(record, true)
	assert.Equal(t, modexec.StateHit, ctrl.State())
	assert.Equal(t, modexec.DecisionExecute, ctrl.Decide(step))
}

func TestDecideCacheHitWhenRecordHasStep(t *testing.T) {
	t.Parallel()
	config := modcacheconfig.Default()
	ctrl := modexec.New(zaptest.NewLogger(t), config, nil)
	step := modexec.Step{PluginID: modrecord.PluginID{Group: "org.example", Artifact: "plugin"}, ExecutionID: "default", Goal: "compile"}
	record := &modrecord.BuildRecord{
		Steps: []modrecord.StepExecutionRecord{
			{PluginID: step.PluginID, ExecutionID: step.ExecutionID, Goal: step.Goal},
		},
	}
	ctrl.BeginLookup(record, true)
	assert.Equal(t, modexec.StateHit, ctrl.State())
	assert.Equal(t, modexec.DecisionCacheHit, ctrl.Decide(step))
}

func TestDecideExecuteOnMiss(t *testing.T) {
	t.Parallel()
	config := modcacheconfig.Default()
	ctrl := modexec.New(zaptest.NewLogger(t), config, nil)
	ctrl.BeginLookup(nil, false)
	assert.Equal(t, modexec.StateMiss, ctrl.State())
	step := modexec.Step{PluginID: modrecord.PluginID{Group: "org.example", Artifact: "plugin"}, Goal: "compile"}
	assert.Equal(t, modexec.DecisionExecute, ctrl.Decide(step))
}

func TestDecideIgnoreMissingSkipsAbsentStep(t *testing.T) {
	t.Parallel()
	config := modcacheconfig.Default()
	config.ExecutionControl.IgnoreMissing = []modcacheconfig.ExecutionControlRule{
		{Plugin: modcacheconfig.PluginCoordinates{ArtifactID: "new-plugin"}},
	}
	ctrl := modexec.New(zaptest.NewLogger(t), config, nil)
	ctrl.BeginLookup(&modrecord.BuildRecord{}, true)
	step := modexec.Step{PluginID: modrecord.PluginID{Group: "org.example", Artifact: "new-plugin"}, Goal: "generate"}
	assert.Equal(t, modexec.DecisionSkippedIgnoreMissing, ctrl.Decide(step))
}

func TestRestoreArtifactsDowngradesToMissOnTransportFailure(t *testing.T) {
	t.Parallel()
	local, err := storelocal.New(zaptest.NewLogger(t), t.TempDir(), 0)
	require.NoError(t, err)
	repo, err := modrepo.New(zaptest.NewLogger(t), modrepo.Config{CacheImplementationVersion: "1"}, local, nil)
	require.NoError(t, err)

	moduleID := modrecord.ModuleID{Group: "org.example", Artifact: "mod"}
	record := &modrecord.BuildRecord{
		HashAlgorithm: string(modhash.AlgorithmSHA256),
		Fingerprint:   "abcd",
		Artifacts: []modrecord.ArtifactEntry{
			{Filename: "missing.jar", ContentDigest: "whatever"},
		},
	}
	ctrl := modexec.New(zaptest.NewLogger(t), modcacheconfig.Default(), repo)
	ctrl.BeginLookup(record, true)

	dest := filepath.Join(t.TempDir(), "missing.jar")
	err = ctrl.RestoreArtifacts(context.Background(), moduleID, map[string]string{"missing.jar": dest}, 2)
	require.NoError(t, err)
	assert.Equal(t, modexec.StateMiss, ctrl.State())
}

func TestRestoreArtifactsCompletesToDoneOnSuccess(t *testing.T) {
	t.Parallel()
	local, err := storelocal.New(zaptest.NewLogger(t), t.TempDir(), 0)
	require.NoError(t, err)
	repo, err := modrepo.New(zaptest.NewLogger(t), modrepo.Config{CacheImplementationVersion: "1"}, local, nil)
	require.NoError(t, err)

	moduleID := modrecord.ModuleID{Group: "org.example", Artifact: "mod"}
	artifactDir := t.TempDir()
	artifactFile := filepath.Join(artifactDir, "artifact.jar")
	require.NoError(t, os.WriteFile(artifactFile, []byte("payload"), 0o644))
	digest, err := modhash.HashString(modhash.AlgorithmSHA256, "payload")
	require.NoError(t, err)

	record := &modrecord.BuildRecord{
		HashAlgorithm: string(modhash.AlgorithmSHA256),
		Fingerprint:   "abcd",
		ModuleID:      moduleID,
		Artifacts: []modrecord.ArtifactEntry{
			{Filename: "artifact.jar", ContentDigest: digest.Hex()},
		},
	}
	saved, err := repo.SaveBuild(context.Background(), record, map[string]string{"artifact.jar": artifactFile})
	require.NoError(t, err)
	require.True(t, saved)

	ctrl := modexec.New(zaptest.NewLogger(t), modcacheconfig.Default(), repo)
	ctrl.BeginLookup(record, true)

	dest := filepath.Join(t.TempDir(), "restored.jar")
	err = ctrl.RestoreArtifacts(context.Background(), moduleID, map[string]string{"artifact.jar": dest}, 2)
	require.NoError(t, err)
	assert.Equal(t, modexec.StateDone, ctrl.State())
}
