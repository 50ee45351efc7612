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

// Package modcacheerr defines the typed error kinds raised by the cache
// engine, and their propagation policy.
//
// No kind is a catch-all. Callers should use errors.As to inspect a
// returned error rather than string-matching.
package modcacheerr

import "fmt"

// ConfigurationError is returned when the cache configuration cannot be
// used: an unknown hash algorithm, a malformed matching rule. It is fatal
// at initialize time.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("cache configuration: %s", e.Reason)
}

// NewConfigurationError returns a new *ConfigurationError.
func NewConfigurationError(reason string) *ConfigurationError {
	return &ConfigurationError{Reason: reason}
}

// InputIoError is returned when reading a module's inputs fails. The
// module degrades to MISS and its build steps are forced to execute.
type InputIoError struct {
	Path string
	Err  error
}

func (e *InputIoError) Error() string {
	return fmt.Sprintf("reading input %q: %s", e.Path, e.Err)
}

func (e *InputIoError) Unwrap() error {
	return e.Err
}

// NewInputIoError returns a new *InputIoError for the given path.
func NewInputIoError(path string, err error) *InputIoError {
	return &InputIoError{Path: path, Err: err}
}

// IntegrityError is returned when a restored artifact's content digest
// does not match the digest recorded in its BuildRecord. It is fatal and
// the caller is expected to delete the corrupted local record.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %q: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// NewIntegrityError returns a new *IntegrityError.
func NewIntegrityError(path, expected, actual string) *IntegrityError {
	return &IntegrityError{Path: path, Expected: expected, Actual: actual}
}

// StoreIoError wraps a transport or filesystem failure from a BlobStore.
// On reads it is treated as absent (with a WARN log); on writes it
// degrades the save to SAVE_SKIPPED (also with a WARN log).
type StoreIoError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreIoError) Error() string {
	return fmt.Sprintf("store %s %q: %s", e.Op, e.Path, e.Err)
}

func (e *StoreIoError) Unwrap() error {
	return e.Err
}

// NewStoreIoError returns a new *StoreIoError.
func NewStoreIoError(op, path string, err error) *StoreIoError {
	return &StoreIoError{Op: op, Path: path, Err: err}
}

// ReconciliationError is returned when a tracked property differs from
// the baseline build record. It only fails the module when failFast is
// configured; otherwise it is collected into the diff report.
type ReconciliationError struct {
	PluginID  string
	Execution string
	Property  string
	Baseline  string
	Current   string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf(
		"tracked property %q for %s/%s differs from baseline: %q != %q",
		e.Property, e.PluginID, e.Execution, e.Baseline, e.Current,
	)
}

// NewReconciliationError returns a new *ReconciliationError.
func NewReconciliationError(pluginID, execution, property, baseline, current string) *ReconciliationError {
	return &ReconciliationError{
		PluginID:  pluginID,
		Execution: execution,
		Property:  property,
		Baseline:  baseline,
		Current:   current,
	}
}

// CacheDisabled describes a build for which the user has disabled
// caching. Initialize does not return it: a disabled cache is reported
// as StatusDisabled together with a nil Engine.
type CacheDisabled struct {
	Reason string
}

func (e *CacheDisabled) Error() string {
	if e.Reason == "" {
		return "cache disabled"
	}
	return fmt.Sprintf("cache disabled: %s", e.Reason)
}

// NewCacheDisabled returns a new *CacheDisabled.
func NewCacheDisabled(reason string) *CacheDisabled {
	return &CacheDisabled{Reason: reason}
}
