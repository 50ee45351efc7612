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

package modfingerprint_test

import (
	"testing"

	"github.com/buildcache/modcache/internal/modfingerprint"
	"github.com/buildcache/modcache/internal/modhash"
	"github.com/buildcache/modcache/internal/modrecord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseInput() modfingerprint.Input {
	return modfingerprint.Input{
		CacheImplementationVersion:       "1",
		ModuleID:                         modrecord.ModuleID{Group: "org.example", Artifact: "some-module", Version: "1.0.0"},
		CanonicalizedEffectiveDescriptor: []byte("<project/>"),
		ScannedFiles: []modrecord.InputFileRecord{
			{RelativePath: "pom.xml", ContentDigest: "aa", SizeBytes: 1},
			{RelativePath: "src/A.java", ContentDigest: "bb", SizeBytes: 2},
		},
	}
}

func TestComputeDeterministic(t *testing.T) {
	t.Parallel()
	f := modfingerprint.New(modhash.AlgorithmSHA256)
	fp1, err := f.Compute(baseInput())
	require.NoError(t, err)
	fp2, err := f.Compute(baseInput())
	require.NoError(t, err)
	assert.True(t, fp1.Equal(fp2))
}

func TestComputeChangesOnFileContentChange(t *testing.T) {
	t.Parallel()
	f := modfingerprint.New(modhash.AlgorithmSHA256)
	before, err := f.Compute(baseInput())
	require.NoError(t, err)

	changed := baseInput()
	changed.ScannedFiles = []modrecord.InputFileRecord{
		{RelativePath: "pom.xml", ContentDigest: "aa", SizeBytes: 1},
		{RelativePath: "src/A.java", ContentDigest: "cc", SizeBytes: 2},
	}
	after, err := f.Compute(changed)
	require.NoError(t, err)
	assert.False(t, before.Equal(after))
}

func TestComputeIgnoresFileOrder(t *testing.T) {
	t.Parallel()
	f := modfingerprint.New(modhash.AlgorithmSHA256)
	in1 := baseInput()
	in2 := baseInput()
	in2.ScannedFiles = []modrecord.InputFileRecord{in1.ScannedFiles[1], in1.ScannedFiles[0]}

	fp1, err := f.Compute(in1)
	require.NoError(t, err)
	fp2, err := f.Compute(in2)
	require.NoError(t, err)
	assert.True(t, fp1.Equal(fp2), "fingerprint must not depend on scan result ordering, only its sorted content")
}

func TestComputeChangesOnUpstreamFingerprint(t *testing.T) {
	t.Parallel()
	f := modfingerprint.New(modhash.AlgorithmSHA256)
	in := baseInput()
	upstreamFP, err := modhash.HashString(modhash.AlgorithmSHA256, "upstream-1")
	require.NoError(t, err)
	in.Upstreams = []modfingerprint.Upstream{
		{ModuleID: modrecord.ModuleID{Group: "org.example", Artifact: "upstream"}, Fingerprint: upstreamFP},
	}

	withUpstream, err := f.Compute(in)
	require.NoError(t, err)
	without, err := f.Compute(baseInput())
	require.NoError(t, err)
	assert.False(t, withUpstream.Equal(without))
}

func TestCanonicalizeDescriptorDropsExcludedPropertiesAndComments(t *testing.T) {
	t.Parallel()
	doc := []byte(`<project>
		<!-- a comment -->
		<version>1.0.0</version>
		<properties>
			<build.timestamp>2026-01-01</build.timestamp>
			<kept>value</kept>
		</properties>
	</project>`)
	canon, err := modfingerprint.CanonicalizeDescriptor(doc, []string{"build.timestamp"})
	require.NoError(t, err)
	assert.NotContains(t, string(canon), "comment")
	assert.NotContains(t, string(canon), "2026-01-01")
	assert.Contains(t, string(canon), "value")
}

func TestCanonicalizeDescriptorNormalizesAttributeOrder(t *testing.T) {
	t.Parallel()
	docA := []byte(`<project a="1" b="2"><x/></project>`)
	docB := []byte(`<project b="2" a="1"><x/></project>`)
	canonA, err := modfingerprint.CanonicalizeDescriptor(docA, nil)
	require.NoError(t, err)
	canonB, err := modfingerprint.CanonicalizeDescriptor(docB, nil)
	require.NoError(t, err)
	assert.Equal(t, string(canonA), string(canonB))
}
