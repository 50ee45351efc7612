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

package modhash_test

import (
	"crypto/sha512"
	"errors"
	"hash"
	"testing"

	"github.com/buildcache/modcache/internal/modcacheerr"
	"github.com/buildcache/modcache/internal/modhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	modhash.RegisterAlgorithm("sha512-test", func() hash.Hash { return sha512.New() })
}

func TestHashDeterministic(t *testing.T) {
	t.Parallel()
	fp1, err := modhash.Hash(modhash.AlgorithmSHA256, []byte("some content"))
	require.NoError(t, err)
	fp2, err := modhash.Hash(modhash.AlgorithmSHA256, []byte("some content"))
	require.NoError(t, err)
	assert.True(t, fp1.Equal(fp2))
	assert.NotEmpty(t, fp1.Hex())
}

func TestHashDiffersOnContent(t *testing.T) {
	t.Parallel()
	fp1, err := modhash.Hash(modhash.AlgorithmSHA256, []byte("a"))
	require.NoError(t, err)
	fp2, err := modhash.Hash(modhash.AlgorithmSHA256, []byte("b"))
	require.NoError(t, err)
	assert.False(t, fp1.Equal(fp2))
}

func TestUnknownAlgorithm(t *testing.T) {
	t.Parallel()
	_, err := modhash.NewHasher("md5")
	require.Error(t, err)
	var configErr *modcacheerr.ConfigurationError
	assert.True(t, errors.As(err, &configErr))
}

func TestCombineOrderSensitive(t *testing.T) {
	t.Parallel()
	a, err := modhash.HashString(modhash.AlgorithmSHA256, "a")
	require.NoError(t, err)
	b, err := modhash.HashString(modhash.AlgorithmSHA256, "b")
	require.NoError(t, err)

	combinedAB, err := modhash.Combine(modhash.AlgorithmSHA256, []modhash.Fingerprint{a, b})
	require.NoError(t, err)
	combinedBA, err := modhash.Combine(modhash.AlgorithmSHA256, []modhash.Fingerprint{b, a})
	require.NoError(t, err)
	assert.False(t, combinedAB.Equal(combinedBA), "Combine must not silently reorder its input")

	combinedABAgain, err := modhash.Combine(modhash.AlgorithmSHA256, []modhash.Fingerprint{a, b})
	require.NoError(t, err)
	assert.True(t, combinedAB.Equal(combinedABAgain))
}

func TestCombineRejectsMismatchedAlgorithm(t *testing.T) {
	t.Parallel()
	a, err := modhash.HashString(modhash.AlgorithmSHA256, "a")
	require.NoError(t, err)
	b, err := modhash.HashString("sha512-test", "b")
	require.NoError(t, err)

	_, err = modhash.Combine(modhash.AlgorithmSHA256, []modhash.Fingerprint{a, b})
	require.Error(t, err)
	var configErr *modcacheerr.ConfigurationError
	assert.True(t, errors.As(err, &configErr))
}

func TestParseFingerprintRoundTrip(t *testing.T) {
	t.Parallel()
	fp, err := modhash.Hash(modhash.AlgorithmSHA256, []byte("round trip"))
	require.NoError(t, err)
	parsed, err := modhash.ParseFingerprint(fp.String())
	require.NoError(t, err)
	assert.True(t, fp.Equal(parsed))
}

func TestParseFingerprintErrors(t *testing.T) {
	t.Parallel()
	_, err := modhash.ParseFingerprint("not-a-fingerprint")
	require.Error(t, err)
	_, err = modhash.ParseFingerprint("md5:deadbeef")
	require.Error(t, err)
	_, err = modhash.ParseFingerprint("sha256:zz")
	require.Error(t, err)
}
