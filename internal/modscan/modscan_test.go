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

package modscan_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/buildcache/modcache/internal/modcacheconfig"
	"github.com/buildcache/modcache/internal/modhash"
	"github.com/buildcache/modcache/internal/modscan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "main"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "target"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main", "A.java"), []byte("class A {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main", "B.java"), []byte("class B {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "target", "A.class"), []byte("compiled"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pom.xml"), []byte("<project/>"), 0o644))
	return root
}

func TestScanIsSortedAndExcludesOutputDir(t *testing.T) {
	t.Parallel()
	root := writeTree(t)
	scanner := modscan.New(zap.NewNop(), modhash.AlgorithmSHA256)
	global := modcacheconfig.Default().Global

	records, err := scanner.Scan(context.Background(), root, global, nil, nil)
	require.NoError(t, err)

	var paths []string
	for _, r := range records {
		paths = append(paths, r.RelativePath)
	}
	assert.Equal(t, []string{"pom.xml", "src/main/A.java", "src/main/B.java"}, paths)
	for i := 1; i < len(paths); i++ {
		assert.Less(t, paths[i-1], paths[i])
	}
}

func TestScanDeterministicAcrossRuns(t *testing.T) {
	t.Parallel()
	root := writeTree(t)
	scanner := modscan.New(zap.NewNop(), modhash.AlgorithmSHA256)
	global := modcacheconfig.Default().Global

	first, err := scanner.Scan(context.Background(), root, global, nil, nil)
	require.NoError(t, err)
	second, err := scanner.Scan(context.Background(), root, global, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScanFingerprintChangesOnContentChange(t *testing.T) {
	t.Parallel()
	root := writeTree(t)
	scanner := modscan.New(zap.NewNop(), modhash.AlgorithmSHA256)
	global := modcacheconfig.Default().Global

	before, err := scanner.Scan(context.Background(), root, global, nil, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main", "A.java"), []byte("class A { /* changed */ }"), 0o644))

	after, err := scanner.Scan(context.Background(), root, global, nil, nil)
	require.NoError(t, err)

	require.Equal(t, len(before), len(after))
	assert.NotEqual(t, before[1].ContentDigest, after[1].ContentDigest)
}

func TestScanNoDuplicates(t *testing.T) {
	t.Parallel()
	root := writeTree(t)
	scanner := modscan.New(zap.NewNop(), modhash.AlgorithmSHA256)
	global := modcacheconfig.Default().Global
	plugins := []modcacheconfig.PluginInputConfig{
		{
			Plugin:  modcacheconfig.PluginCoordinates{ArtifactID: "some-plugin"},
			DirScan: &modcacheconfig.DirScanConfig{Includes: []string{"src/main/A.java"}},
		},
	}

	records, err := scanner.Scan(context.Background(), root, global, plugins, nil)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, r := range records {
		assert.False(t, seen[r.RelativePath], "duplicate path %s", r.RelativePath)
		seen[r.RelativePath] = true
	}
}

func TestScanHonorsOutputExcludePatterns(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "generated.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("y"), 0o644))

	scanner := modscan.New(zap.NewNop(), modhash.AlgorithmSHA256)
	global := modcacheconfig.Default().Global
	global.Excludes = nil

	records, err := scanner.Scan(context.Background(), root, global, nil, []string{`.*\.tmp$`})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "keep.txt", records[0].RelativePath)
}
