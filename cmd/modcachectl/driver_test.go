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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/buildcache/modcache/internal/modcacheconfig"
)

// copyTestdataReactor builds a reactor rooted at a scratch directory so
// each test run starts from an empty cache, instead of sharing
// testdata/.mvn/build-cache across test runs.
func copyTestdataReactor(t *testing.T) *reactorDescriptor {
	t.Helper()
	reactor, err := loadReactor(filepath.Join("testdata", "reactor.yaml"))
	require.NoError(t, err)
	reactor.MultiModuleRoot = t.TempDir()
	for _, module := range reactor.Modules {
		require.NoError(t, os.MkdirAll(filepath.Join(reactor.MultiModuleRoot, module.Dir), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(reactor.MultiModuleRoot, module.Dir, "src.txt"), []byte(module.Artifact+" source"), 0o644))
	}
	return reactor
}

func TestRunReactorFirstBuildIsAllMisses(t *testing.T) {
	t.Parallel()
	reactor := copyTestdataReactor(t)

	summary, results, err := runReactor(context.Background(), zaptest.NewLogger(t), reactor, modcacheconfig.Properties{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Hits)
	assert.Equal(t, 2, summary.Misses)
	require.Len(t, results, 2)
	for _, result := range results {
		assert.False(t, result.hit)
	}
}

func TestRunReactorSecondBuildIsAllHits(t *testing.T) {
	t.Parallel()
	reactor := copyTestdataReactor(t)

	_, _, err := runReactor(context.Background(), zaptest.NewLogger(t), reactor, modcacheconfig.Properties{})
	require.NoError(t, err)

	summary, results, err := runReactor(context.Background(), zaptest.NewLogger(t), reactor, modcacheconfig.Properties{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Hits)
	assert.Equal(t, 0, summary.Misses)
	for _, result := range results {
		assert.True(t, result.hit)
	}
}

func TestRunReactorDisabledProducesNoResults(t *testing.T) {
	t.Parallel()
	reactor := copyTestdataReactor(t)

	summary, results, err := runReactor(context.Background(), zaptest.NewLogger(t), reactor, modcacheconfig.Properties{
		modcacheconfig.PropertyEnabled: "false",
	})
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Equal(t, 0, summary.Total)
}
