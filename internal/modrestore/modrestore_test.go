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

package modrestore_test

import (
	"testing"

	"github.com/buildcache/modcache/internal/modcacheconfig"
	"github.com/buildcache/modcache/internal/modrecord"
	"github.com/buildcache/modcache/internal/modrestore"
	"github.com/stretchr/testify/assert"
)

func baseRecord() *modrecord.BuildRecord {
	return &modrecord.BuildRecord{
		HashAlgorithm:              "sha256",
		CacheImplementationVersion: "1",
	}
}

func TestDecideRejectsAlgorithmMismatch(t *testing.T) {
	t.Parallel()
	record := baseRecord()
	record.HashAlgorithm = "sha512"
	decision := modrestore.Decide(record, "sha256", "1", modcacheconfig.Default())
	assert.False(t, decision.Accepted)
}

func TestDecideRejectsVersionMismatch(t *testing.T) {
	t.Parallel()
	record := baseRecord()
	record.CacheImplementationVersion = "2"
	decision := modrestore.Decide(record, "sha256", "1", modcacheconfig.Default())
	assert.False(t, decision.Accepted)
}

func TestDecideRejectsUnsatisfiableReconcileRule(t *testing.T) {
	t.Parallel()
	record := baseRecord()
	record.Steps = []modrecord.StepExecutionRecord{
		{
			PluginID:          modrecord.PluginID{Group: "org.example", Artifact: "some-plugin"},
			ExecutionID:       "default",
			Goal:              "generate",
			TrackedProperties: modrecord.PropertyMap{},
		},
	}
	config := &modcacheconfig.ConfigModel{
		ExecutionControl: modcacheconfig.ExecutionControl{
			Reconcile: modcacheconfig.ReconcileConfig{
				Plugins: []modcacheconfig.ReconcilePluginRule{
					{
						Plugin:     modcacheconfig.PluginCoordinates{GroupID: "org.example", ArtifactID: "some-plugin"},
						Reconciles: []modcacheconfig.TrackedProperty{"outputHash"},
					},
				},
			},
		},
	}
	decision := modrestore.Decide(record, "sha256", "1", config)
	assert.False(t, decision.Accepted)
}

func TestDecideAcceptsSatisfiedReconcileRule(t *testing.T) {
	t.Parallel()
	record := baseRecord()
	record.Steps = []modrecord.StepExecutionRecord{
		{
			PluginID:          modrecord.PluginID{Group: "org.example", Artifact: "some-plugin"},
			ExecutionID:       "default",
			Goal:              "generate",
			TrackedProperties: modrecord.PropertyMap{"outputHash": "abc"},
		},
	}
	config := &modcacheconfig.ConfigModel{
		ExecutionControl: modcacheconfig.ExecutionControl{
			Reconcile: modcacheconfig.ReconcileConfig{
				Plugins: []modcacheconfig.ReconcilePluginRule{
					{
						Plugin:     modcacheconfig.PluginCoordinates{GroupID: "org.example", ArtifactID: "some-plugin"},
						Reconciles: []modcacheconfig.TrackedProperty{"outputHash"},
					},
				},
			},
		},
	}
	decision := modrestore.Decide(record, "sha256", "1", config)
	assert.True(t, decision.Accepted)
}
