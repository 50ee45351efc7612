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
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "modcachectl",
	Short: "Drive a reactor against the modcache build-artifact cache",
	Long: `modcachectl reads a YAML reactor descriptor describing a set of
modules and their build steps, then drives them through the modcache
engine in dependency order: scanning inputs, fingerprinting, looking up
and restoring cached builds, executing or skipping each step, and
saving new builds. It prints a cache-report summary at the end.`,
}

// Execute runs the root command. It is called once from main.main.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		return err
	}
	return nil
}
