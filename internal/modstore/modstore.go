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

// Package modstore defines the minimal key/value BlobStore contract
// that both the local filesystem store and the remote transport store
// implement, and the cache path convention shared by both.
//
// This is meant to abstract the underlying transport, the same way the
// teacher's storage package abstracts filesystem calls behind a small
// Bucket interface: it gives the cache a single capability (get, put)
// realized by two concrete implementations chosen at initialize time,
// rather than runtime inheritance over a pluggable store hierarchy.
package modstore

import (
	"context"
	"fmt"

	"github.com/buildcache/modcache/internal/modpath"
)

// WellKnownFilename is the name a BuildRecord is always stored under
// within its fingerprint directory.
const WellKnownFilename = "build.xml"

// BlobStore is a minimal key/value store over opaque paths.
type BlobStore interface {
	// Get returns the bytes at path, or ok=false if path does not
	// exist. A transport/filesystem failure returns a
	// *modcacheerr.StoreIoError.
	Get(ctx context.Context, path string) (data []byte, ok bool, err error)

	// GetToFile streams path directly to localFilePath, returning
	// ok=false if path does not exist.
	GetToFile(ctx context.Context, path, localFilePath string) (ok bool, err error)

	// Put writes data at path, overwriting any existing content.
	Put(ctx context.Context, path string, data []byte) error

	// PutFile writes the contents of localFilePath at path.
	PutFile(ctx context.Context, path, localFilePath string) error
}

// Deleter is implemented by stores that support deletion. Only the
// local store does: a remote store never deletes (spec §4.5).
type Deleter interface {
	Delete(ctx context.Context, path string) error
}

// Locker is implemented by stores that can provide an at-most-one-writer
// guarantee via an atomic create-if-absent primitive. Only the local
// store does today; a transport with conditional-PUT support could
// implement it too.
type Locker interface {
	// TryCreateExclusive creates path if and only if it does not already
	// exist, returning created=false (not an error) if it does.
	TryCreateExclusive(ctx context.Context, path string) (created bool, err error)
}

// Path renders the cache path convention from spec §4.5/§6:
//
//	v<cacheImplementationVersion>/<groupId>/<artifactId>/<fingerprintHex>/<filename>
func Path(cacheImplementationVersion, groupID, artifactID, fingerprintHex, filename string) string {
	return modpath.Join(
		fmt.Sprintf("v%s", cacheImplementationVersion),
		groupID,
		artifactID,
		fingerprintHex,
		filename,
	)
}

// RecordDir renders the directory a module+fingerprint's record and
// artifacts live under, without a filename.
func RecordDir(cacheImplementationVersion, groupID, artifactID, fingerprintHex string) string {
	return modpath.Join(
		fmt.Sprintf("v%s", cacheImplementationVersion),
		groupID,
		artifactID,
		fingerprintHex,
	)
}

// LockPath renders the at-most-one-writer lock path for a record
// directory, used on transports without a native conditional-PUT
// primitive (spec §4.6/§9: "the spec mandates a lock-file convention
// but acknowledges this is racy across incompatible transports").
func LockPath(cacheImplementationVersion, groupID, artifactID, fingerprintHex string) string {
	return modpath.Join(RecordDir(cacheImplementationVersion, groupID, artifactID, fingerprintHex), ".lock")
}
