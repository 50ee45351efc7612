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

// Package modpath provides path normalization helpers shared by the
// scanner and the blob stores.
//
// A normalized path is cleaned and forward-slashed, relative to some
// root, and never jumps outside that root.
package modpath

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	errNotRelative  = errors.New("path must be relative")
	errJumpsContext = errors.New("path escapes its root")
)

// Normalize cleans path and converts it to forward slashes.
func Normalize(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// Unnormalize converts a normalized path back to the host OS's
// separator, for use in real filesystem calls.
func Unnormalize(path string) string {
	return filepath.FromSlash(path)
}

// NormalizeAndValidate normalizes path and rejects it if it is absolute
// or escapes its root via "../" after cleaning.
func NormalizeAndValidate(path string) (string, error) {
	normalized := Normalize(path)
	if filepath.IsAbs(normalized) {
		return "", errNotRelative
	}
	if normalized == ".." || strings.HasPrefix(normalized, "../") {
		return "", errJumpsContext
	}
	return normalized, nil
}

// Join joins path elements and normalizes the result.
func Join(elems ...string) string {
	return Normalize(filepath.Join(elems...))
}
