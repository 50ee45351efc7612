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

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/buildcache/modcache/internal/modcacheconfig"
)

var buildFlags struct {
	reactorPath string
	properties  []string
	verbose     bool
}

var buildCmd = &cobra.Command{
	Use:   "build --reactor reactor.yaml",
	Short: "Drive every module in a reactor descriptor through the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		reactor, err := loadReactor(buildFlags.reactorPath)
		if err != nil {
			return err
		}

		props, err := parseProperties(buildFlags.properties)
		if err != nil {
			return err
		}

		logLevel := zap.WarnLevel
		if buildFlags.verbose {
			logLevel = zap.DebugLevel
		}
		loggerConfig := zap.NewDevelopmentConfig()
		loggerConfig.Level = zap.NewAtomicLevelAt(logLevel)
		logger, err := loggerConfig.Build()
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		defer logger.Sync() //nolint:errcheck

		summary, results, err := runReactor(context.Background(), logger, reactor, props)
		if err != nil {
			return err
		}
		return printReport(os.Stdout, summary, results)
	},
}

func parseProperties(raw []string) (modcacheconfig.Properties, error) {
	props := modcacheconfig.Properties{}
	for _, entry := range raw {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("malformed -D property %q, expected key=value", entry)
		}
		props[key] = value
	}
	return props, nil
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVar(&buildFlags.reactorPath, "reactor", "", "path to the reactor descriptor YAML file")
	buildCmd.Flags().StringArrayVarP(&buildFlags.properties, "define", "D", nil, "remote.cache.* property override, key=value (repeatable)")
	buildCmd.Flags().BoolVarP(&buildFlags.verbose, "verbose", "v", false, "enable debug logging")
	_ = buildCmd.MarkFlagRequired("reactor")
}
