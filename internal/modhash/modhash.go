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

// Package modhash implements the content-addressable digest abstraction
// that every fingerprint in the cache is built from.
//
// A Fingerprint is a fixed-width byte string tagged with the algorithm
// that produced it; two Fingerprints are only ever compared when their
// algorithms match, so the algorithm is never silently substituted.
package modhash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"

	"github.com/buildcache/modcache/internal/modcacheerr"
)

// Algorithm is a hash algorithm identifier. It is embedded in every
// persisted Fingerprint so restores reject records produced under a
// different algorithm.
type Algorithm string

const (
	// AlgorithmSHA256 is the default and only algorithm required by the
	// cache's external interfaces; additional algorithms can be
	// registered by string identifier via RegisterAlgorithm.
	AlgorithmSHA256 Algorithm = "sha256"
)

var newHashFuncs = map[Algorithm]func() hash.Hash{
	AlgorithmSHA256: sha256.New,
}

// RegisterAlgorithm adds support for an additional hash algorithm,
// addressable by string identifier. It is intended to be called from
// package init functions; it is not safe to call concurrently with
// NewHasher.
func RegisterAlgorithm(name Algorithm, newHash func() hash.Hash) {
	newHashFuncs[name] = newHash
}

// Fingerprint is an opaque, fixed-width, algorithm-tagged digest.
type Fingerprint struct {
	algorithm Algorithm
	value     []byte
}

// Algorithm returns the algorithm that produced this Fingerprint.
func (f Fingerprint) Algorithm() Algorithm {
	return f.algorithm
}

// Value returns the raw digest bytes. Callers must not mutate the
// returned slice.
func (f Fingerprint) Value() []byte {
	return f.value
}

// Hex returns the hex-encoded digest, used for persistence and lookup
// keys.
func (f Fingerprint) Hex() string {
	return hex.EncodeToString(f.value)
}

// IsZero returns true for the zero-value Fingerprint.
func (f Fingerprint) IsZero() bool {
	return f.algorithm == "" && len(f.value) == 0
}

// String implements fmt.Stringer as "<algorithm>:<hex>".
func (f Fingerprint) String() string {
	return fmt.Sprintf("%s:%s", f.algorithm, f.Hex())
}

// Equal returns true iff the algorithm and bytes of f and other match
// exactly. The algorithm is never silently substituted: two
// Fingerprints under different algorithms are always unequal, even if
// their bytes happen to coincide.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if f.algorithm != other.algorithm {
		return false
	}
	if len(f.value) != len(other.value) {
		return false
	}
	for i := range f.value {
		if f.value[i] != other.value[i] {
			return false
		}
	}
	return true
}

// ParseFingerprint parses the "<algorithm>:<hex>" form written by
// String, validating that algorithm is known and hex is well-formed.
func ParseFingerprint(s string) (Fingerprint, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			algorithm := Algorithm(s[:i])
			if _, ok := newHashFuncs[algorithm]; !ok {
				return Fingerprint{}, modcacheerr.NewConfigurationError(fmt.Sprintf("unknown hash algorithm %q", algorithm))
			}
			value, err := hex.DecodeString(s[i+1:])
			if err != nil {
				return Fingerprint{}, modcacheerr.NewConfigurationError(fmt.Sprintf("malformed fingerprint %q: %s", s, err))
			}
			return Fingerprint{algorithm: algorithm, value: value}, nil
		}
	}
	return Fingerprint{}, modcacheerr.NewConfigurationError(fmt.Sprintf("malformed fingerprint %q", s))
}

// FingerprintFromHex builds a Fingerprint from an already-validated
// algorithm and hex-encoded value, as read back from a persisted
// BuildRecord.
func FingerprintFromHex(algorithm Algorithm, hexValue string) (Fingerprint, error) {
	value, err := hex.DecodeString(hexValue)
	if err != nil {
		return Fingerprint{}, modcacheerr.NewConfigurationError(fmt.Sprintf("malformed fingerprint hex %q: %s", hexValue, err))
	}
	return Fingerprint{algorithm: algorithm, value: value}, nil
}

// Hasher is a stateful digest accumulator.
type Hasher interface {
	// Update feeds bytes into the accumulator.
	Update(data []byte)
	// UpdateString feeds a UTF-8 string into the accumulator without an
	// intermediate []byte conversion allocation beyond what hash.Hash
	// requires.
	UpdateString(s string)
	// Finish returns the accumulated Fingerprint. The Hasher must not be
	// reused afterwards.
	Finish() Fingerprint
}

type hasher struct {
	algorithm Algorithm
	h         hash.Hash
}

// NewHasher returns a new Hasher for the given algorithm. It fails with
// a *modcacheerr.ConfigurationError if the algorithm is not a member of
// the closed, registered set.
func NewHasher(algorithm Algorithm) (Hasher, error) {
	newHash, ok := newHashFuncs[algorithm]
	if !ok {
		return nil, modcacheerr.NewConfigurationError(fmt.Sprintf("unknown hash algorithm %q", algorithm))
	}
	return &hasher{algorithm: algorithm, h: newHash()}, nil
}

func (h *hasher) Update(data []byte) {
	// hash.Hash.Write never returns an error per its documented contract.
	_, _ = h.h.Write(data)
}

func (h *hasher) UpdateString(s string) {
	_, _ = h.h.Write([]byte(s))
}

func (h *hasher) Finish() Fingerprint {
	return Fingerprint{algorithm: h.algorithm, value: h.h.Sum(nil)}
}

// Hash hashes a single byte slice under the given algorithm.
func Hash(algorithm Algorithm, data []byte) (Fingerprint, error) {
	h, err := NewHasher(algorithm)
	if err != nil {
		return Fingerprint{}, err
	}
	h.Update(data)
	return h.Finish(), nil
}

// HashString hashes a single string under the given algorithm.
func HashString(algorithm Algorithm, s string) (Fingerprint, error) {
	h, err := NewHasher(algorithm)
	if err != nil {
		return Fingerprint{}, err
	}
	h.UpdateString(s)
	return h.Finish(), nil
}

// Combine hashes the concatenation of the ordered, length-prefixed
// fingerprints into a single Fingerprint. Ordering is the caller's
// responsibility: Combine never sorts its input, so that callers who
// need a stable aggregate over an unordered set (e.g. upstream module
// fingerprints) must sort before calling.
//
// All inputs must share algorithm, which must equal algorithm.
func Combine(algorithm Algorithm, fingerprints []Fingerprint) (Fingerprint, error) {
	h, err := NewHasher(algorithm)
	if err != nil {
		return Fingerprint{}, err
	}
	var lengthBuf [8]byte
	for _, fp := range fingerprints {
		if !fp.IsZero() && fp.algorithm != algorithm {
			return Fingerprint{}, modcacheerr.NewConfigurationError(
				fmt.Sprintf("cannot combine fingerprint under algorithm %q into aggregate under %q", fp.algorithm, algorithm),
			)
		}
		binary.BigEndian.PutUint64(lengthBuf[:], uint64(len(fp.value)))
		h.Update(lengthBuf[:])
		h.Update(fp.value)
	}
	return h.Finish(), nil
}

// SortFingerprints sorts fingerprints by their hex encoding, for callers
// that need a deterministic order over an unordered set before calling
// Combine.
func SortFingerprints(fingerprints []Fingerprint) {
	sort.Slice(fingerprints, func(i, j int) bool {
		return fingerprints[i].Hex() < fingerprints[j].Hex()
	})
}
