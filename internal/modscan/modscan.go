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

// Package modscan enumerates a module's input files per configuration,
// filters them by pattern, and hashes their content.
//
// Determinism is the governing constraint: identical input trees must
// produce identical scan results regardless of filesystem enumeration
// order. The Scanner walks the tree in whatever order the filesystem
// gives it, then always sorts the result before returning.
package modscan

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/buildcache/modcache/internal/modcacheconfig"
	"github.com/buildcache/modcache/internal/modcacheerr"
	"github.com/buildcache/modcache/internal/modhash"
	"github.com/buildcache/modcache/internal/modpath"
	"github.com/buildcache/modcache/internal/modrecord"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Option configures a Scanner.
type Option func(*Scanner)

// WithFollowSymlinks enables following symlinks during the scan.
// Symlink targets outside the module root remain errors even when
// this is enabled; spec §4.3/§9 forbid crossing the module root.
func WithFollowSymlinks(follow bool) Option {
	return func(s *Scanner) { s.followSymlinks = follow }
}

// WithConcurrency bounds how many files are hashed in parallel. The
// default is 8.
func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// Scanner enumerates and hashes a module's input files.
type Scanner struct {
	logger         *zap.Logger
	hashAlgorithm  modhash.Algorithm
	followSymlinks bool
	concurrency    int
}

// New returns a new Scanner using the given hash algorithm for content
// digests.
func New(logger *zap.Logger, hashAlgorithm modhash.Algorithm, opts ...Option) *Scanner {
	s := &Scanner{logger: logger, hashAlgorithm: hashAlgorithm, concurrency: 8}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan enumerates the input set for a module rooted at moduleRoot,
// given its global input config and any plugin-specific dir-scan
// configs that apply to this module.
//
// It never returns partial results: on any unreadable file it fails
// with a *modcacheerr.InputIoError naming the offending path.
func (s *Scanner) Scan(
	ctx context.Context,
	moduleRoot string,
	global modcacheconfig.GlobalInputConfig,
	pluginConfigs []modcacheconfig.PluginInputConfig,
	outputExcludePatterns []string,
) ([]modrecord.InputFileRecord, error) {
	candidates, err := s.enumerate(moduleRoot, global, pluginConfigs)
	if err != nil {
		return nil, err
	}

	excludeRegexps := make([]*regexp.Regexp, 0, len(outputExcludePatterns))
	for _, pattern := range outputExcludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, modcacheerr.NewConfigurationError("invalid output.exclude pattern " + pattern + ": " + err.Error())
		}
		excludeRegexps = append(excludeRegexps, re)
	}

	filtered := candidates[:0:0]
	for _, relPath := range candidates {
		if matchesAny(excludeRegexps, relPath) {
			continue
		}
		filtered = append(filtered, relPath)
	}

	records := make([]modrecord.InputFileRecord, len(filtered))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for i, relPath := range filtered {
		i, relPath := i, relPath
		group.Go(func() error {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}
			record, err := s.hashFile(moduleRoot, relPath)
			if err != nil {
				return err
			}
			records[i] = record
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].RelativePath < records[j].RelativePath
	})
	return records, nil
}

func (s *Scanner) hashFile(moduleRoot, relPath string) (modrecord.InputFileRecord, error) {
	absPath := filepath.Join(moduleRoot, modpath.Unnormalize(relPath))
	file, err := os.Open(absPath)
	if err != nil {
		return modrecord.InputFileRecord{}, modcacheerr.NewInputIoError(relPath, err)
	}
	defer file.Close()

	hasher, err := modhash.NewHasher(s.hashAlgorithm)
	if err != nil {
		return modrecord.InputFileRecord{}, err
	}
	var size int64
	buf := make([]byte, 64*1024)
	for {
		n, readErr := file.Read(buf)
		if n > 0 {
			hasher.Update(buf[:n])
			size += int64(n)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return modrecord.InputFileRecord{}, modcacheerr.NewInputIoError(relPath, readErr)
		}
	}
	return modrecord.InputFileRecord{
		RelativePath:  relPath,
		ContentDigest: hasher.Finish().Hex(),
		SizeBytes:     size,
	}, nil
}

func (s *Scanner) enumerate(
	moduleRoot string,
	global modcacheconfig.GlobalInputConfig,
	pluginConfigs []modcacheconfig.PluginInputConfig,
) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return modcacheerr.NewInputIoError(path, err)
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if !s.followSymlinks {
				return nil
			}
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				return modcacheerr.NewInputIoError(path, err)
			}
			rel, err := filepath.Rel(moduleRoot, resolved)
			if err != nil || hasParentJump(rel) {
				return modcacheerr.NewInputIoError(path, errSymlinkEscapesRoot)
			}
		}
		relPath, err := filepath.Rel(moduleRoot, path)
		if err != nil {
			return modcacheerr.NewInputIoError(path, err)
		}
		relPath = modpath.Normalize(relPath)
		if !matchesGlob(global.Glob, relPath) {
			return nil
		}
		if matchesAnyGlob(global.Excludes, relPath) {
			return nil
		}
		if len(global.Includes) > 0 && !matchesAnyGlob(global.Includes, relPath) {
			return nil
		}
		if _, ok := seen[relPath]; !ok {
			seen[relPath] = struct{}{}
			out = append(out, relPath)
		}
		return nil
	}

	if err := filepath.WalkDir(moduleRoot, walkFn); err != nil {
		var ioErr *modcacheerr.InputIoError
		if errors.As(err, &ioErr) {
			return nil, ioErr
		}
		return nil, modcacheerr.NewInputIoError(moduleRoot, err)
	}

	for _, plugin := range pluginConfigs {
		if plugin.DirScan == nil {
			continue
		}
		for _, include := range plugin.DirScan.Includes {
			absPath := filepath.Join(moduleRoot, modpath.Unnormalize(include))
			if err := addPluginPath(moduleRoot, absPath, plugin.DirScan.Excludes, seen, &out); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func addPluginPath(moduleRoot, absPath string, excludes []string, seen map[string]struct{}, out *[]string) error {
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return modcacheerr.NewInputIoError(absPath, err)
	}
	if !info.IsDir() {
		relPath, err := filepath.Rel(moduleRoot, absPath)
		if err != nil {
			return modcacheerr.NewInputIoError(absPath, err)
		}
		relPath = modpath.Normalize(relPath)
		if matchesAnyGlob(excludes, relPath) {
			return nil
		}
		if _, ok := seen[relPath]; !ok {
			seen[relPath] = struct{}{}
			*out = append(*out, relPath)
		}
		return nil
	}
	return filepath.WalkDir(absPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return modcacheerr.NewInputIoError(path, err)
		}
		if d.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(moduleRoot, path)
		if err != nil {
			return modcacheerr.NewInputIoError(path, err)
		}
		relPath = modpath.Normalize(relPath)
		if matchesAnyGlob(excludes, relPath) {
			return nil
		}
		if _, ok := seen[relPath]; !ok {
			seen[relPath] = struct{}{}
			*out = append(*out, relPath)
		}
		return nil
	})
}

func hasParentJump(relPath string) bool {
	normalized := modpath.Normalize(relPath)
	return normalized == ".." || len(normalized) >= 3 && normalized[:3] == "../"
}

// matchesGlob reports whether relPath is selected by the global glob.
// "**/*" (the default) selects every regular file; any other pattern is
// evaluated with globMatch.
func matchesGlob(pattern, relPath string) bool {
	if pattern == "" || pattern == "**/*" {
		return true
	}
	return globMatch(pattern, relPath)
}

func matchesAnyGlob(patterns []string, relPath string) bool {
	for _, pattern := range patterns {
		if globMatch(pattern, relPath) {
			return true
		}
	}
	return false
}

// globMatch supports filepath.Match syntax plus a trailing "/**"
// meaning "this directory and everything under it", since
// filepath.Match alone cannot express recursive directory matches.
func globMatch(pattern, relPath string) bool {
	if len(pattern) > 3 && pattern[len(pattern)-3:] == "/**" {
		prefix := pattern[:len(pattern)-3]
		if relPath == prefix || (len(relPath) > len(prefix) && relPath[:len(prefix)+1] == prefix+"/") {
			return true
		}
	}
	matched, err := filepath.Match(pattern, relPath)
	return err == nil && matched
}

func matchesAny(patterns []*regexp.Regexp, relPath string) bool {
	for _, re := range patterns {
		if re.MatchString(relPath) {
			return true
		}
	}
	return false
}

var errSymlinkEscapesRoot = errors.New("symlink target escapes module root")
