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

package modrepo

import (
	"sync"

	"github.com/buildcache/modcache/internal/modhash"
	"github.com/buildcache/modcache/internal/modrecord"
)

// FingerprintIndex is a per-build publish/await map from module to its
// computed fingerprint. A downstream module blocks in Await until its
// upstream has Published, giving a happens-before guarantee between the
// upstream's fingerprint computation and any downstream read of it,
// without the downstream needing to know which goroutine computed it.
type FingerprintIndex struct {
	mu      sync.Mutex
	entries map[modrecord.ModuleID]*entry
}

type entry struct {
	ready       chan struct{}
	fingerprint modhash.Fingerprint
}

// NewFingerprintIndex returns an empty index for one build.
func NewFingerprintIndex() *FingerprintIndex {
	return &FingerprintIndex{entries: make(map[modrecord.ModuleID]*entry)}
}

func (idx *FingerprintIndex) entryFor(moduleID modrecord.ModuleID) *entry {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	e, ok := idx.entries[moduleID]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		idx.entries[moduleID] = e
	}
	return e
}

// Publish records moduleID's fingerprint and unblocks any Await calls
// waiting on it. Publishing the same module twice panics: a module is
// fingerprinted exactly once per build.
func (idx *FingerprintIndex) Publish(moduleID modrecord.ModuleID, fingerprint modhash.Fingerprint) {
	e := idx.entryFor(moduleID)
	select {
	case <-e.ready:
		panic("modrepo: fingerprint published twice for " + moduleID.String())
	default:
	}
	e.fingerprint = fingerprint
	close(e.ready)
}

// Await blocks until moduleID's fingerprint has been Published, or ctx
// is done.
func (idx *FingerprintIndex) Await(ctxDone <-chan struct{}, moduleID modrecord.ModuleID) (modhash.Fingerprint, bool) {
	e := idx.entryFor(moduleID)
	select {
	case <-e.ready:
		return e.fingerprint, true
	case <-ctxDone:
		return modhash.Fingerprint{}, false
	}
}
