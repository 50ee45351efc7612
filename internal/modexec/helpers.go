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

package modexec

import (
	"errors"

	"github.com/buildcache/modcache/internal/modcacheerr"
	"github.com/buildcache/modcache/internal/modhash"
	"github.com/buildcache/modcache/internal/modrecord"
)

func fingerprintFromRecord(record *modrecord.BuildRecord) (modhash.Fingerprint, error) {
	return modhash.FingerprintFromHex(modhash.Algorithm(record.HashAlgorithm), record.Fingerprint)
}

func isIntegrityError(err error, target **modcacheerr.IntegrityError) bool {
	return errors.As(err, target)
}
