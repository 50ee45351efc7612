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

package storelocal_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/buildcache/modcache/internal/modstore"
	"github.com/buildcache/modcache/internal/modstore/storelocal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPutGetRoundTripsAndCompressesArtifacts(t *testing.T) {
	t.Parallel()
	store, err := storelocal.New(zaptest.NewLogger(t), t.TempDir(), 0)
	require.NoError(t, err)

	path := modstore.Path("1", "org.example", "mod", "abcd", "artifact.jar")
	require.NoError(t, store.Put(context.Background(), path, []byte("hello artifact")))

	data, ok, err := store.Get(context.Background(), path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello artifact", string(data))
}

func TestGetMissingReturnsNotOK(t *testing.T) {
	t.Parallel()
	store, err := storelocal.New(zaptest.NewLogger(t), t.TempDir(), 0)
	require.NoError(t, err)

	_, ok, err := store.Get(context.Background(), modstore.Path("1", "g", "a", "ffff", "build.xml"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuildRecordStoredUncompressedAndReadable(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	store, err := storelocal.New(zaptest.NewLogger(t), root, 0)
	require.NoError(t, err)

	path := modstore.Path("1", "org.example", "mod", "abcd", modstore.WellKnownFilename)
	require.NoError(t, store.Put(context.Background(), path, []byte("<build/>")))

	// build.xml is never gzip-compressed, so the plain file must exist
	// directly at the logical path.
	raw, err := os.ReadFile(filepath.Join(root, "v1", "org.example", "mod", "abcd", "build.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<build/>", string(raw))
}

func TestGetToFileWritesLocalFile(t *testing.T) {
	t.Parallel()
	store, err := storelocal.New(zaptest.NewLogger(t), t.TempDir(), 0)
	require.NoError(t, err)
	path := modstore.Path("1", "g", "a", "ffff", "out.bin")
	require.NoError(t, store.Put(context.Background(), path, []byte("payload")))

	dest := filepath.Join(t.TempDir(), "restored.bin")
	ok, err := store.GetToFile(context.Background(), path, dest)
	require.NoError(t, err)
	require.True(t, ok)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestTryCreateExclusiveIsAtMostOneWinner(t *testing.T) {
	t.Parallel()
	store, err := storelocal.New(zaptest.NewLogger(t), t.TempDir(), 0)
	require.NoError(t, err)
	path := modstore.LockPath("1", "g", "a", "ffff")

	first, err := store.TryCreateExclusive(context.Background(), path)
	require.NoError(t, err)
	second, err := store.TryCreateExclusive(context.Background(), path)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestDeleteRemovesBothCompressedAndPlainForms(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	store, err := storelocal.New(zaptest.NewLogger(t), root, 0)
	require.NoError(t, err)
	path := modstore.Path("1", "g", "a", "ffff", "artifact.jar")
	require.NoError(t, store.Put(context.Background(), path, []byte("x")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "v1", "g", "a", "ffff", "artifact.jar"), []byte("x"), 0o644))

	require.NoError(t, store.Delete(context.Background(), path))
	_, ok, err := store.Get(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvictionRespectsMaxRecordsAndProtection(t *testing.T) {
	t.Parallel()
	store, err := storelocal.New(zaptest.NewLogger(t), t.TempDir(), 2)
	require.NoError(t, err)

	ctx := context.Background()
	write := func(fp string) {
		require.NoError(t, store.Put(ctx, modstore.Path("1", "g", "a", fp, "build.xml"), []byte("<build/>")))
	}
	write("fp1")
	write("fp2")

	store.Protect(modstore.RecordDir("1", "g", "a", "fp1"))
	write("fp3")

	_, ok, err := store.Get(ctx, modstore.Path("1", "g", "a", "fp1", "build.xml"))
	require.NoError(t, err)
	assert.True(t, ok, "protected record must survive eviction")
}
