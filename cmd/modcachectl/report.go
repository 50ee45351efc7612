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
	"io"
	"text/tabwriter"

	"go.uber.org/multierr"

	"github.com/buildcache/modcache/internal/modreport"
)

// printReport renders one line per module plus the build-wide cache-hit
// summary, in the teacher's tabwriter style.
func printReport(writer io.Writer, summary modreport.Summary, results []moduleResult) (retErr error) {
	if len(results) == 0 {
		fmt.Fprintln(writer, "build cache disabled for this reactor run")
		return nil
	}

	tabWriter := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	defer func() {
		retErr = multierr.Append(retErr, tabWriter.Flush())
	}()

	if _, err := fmt.Fprintln(tabWriter, "MODULE\tSTATE\tOUTCOME"); err != nil {
		return err
	}
	for _, result := range results {
		outcome := "MISS"
		if result.hit {
			outcome = "HIT"
		}
		if _, err := fmt.Fprintf(tabWriter, "%s\t%s\t%s\n", result.moduleID.String(), result.state, outcome); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(tabWriter, "\nbuild %s: %d hit, %d miss, %d total\n", summary.BuildID, summary.Hits, summary.Misses, summary.Total); err != nil {
		return err
	}
	return nil
}
