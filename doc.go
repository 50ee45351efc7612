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

// Package modcache ties together modhash, modcacheconfig, modscan,
// modfingerprint, modstore, modrepo, modrestore, modexec, modreconcile,
// and modreport into the single engine a build driver embeds. See
// cmd/modcachectl for a minimal driver exercising the whole sequence
// end to end.
package modcache
