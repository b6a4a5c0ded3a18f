// Copyright 2025 Keel DB
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

// keel-join joins two CSV files on equality keys and writes the joined
// rows as CSV to stdout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flags struct {
	configFile string

	leftTypes  string
	rightTypes string
	leftKeys   string
	rightKeys  string

	buildSide  string
	partitions int
}

var rootCmd = &cobra.Command{
	Use:   "keel-join <left.csv> <right.csv>",
	Short: "inner-join two CSV files on equality keys",
	Long: `keel-join reads two CSV files, materializes one side into a hash
table and streams the other side through it, printing one CSV line per
joined row. Column types are declared per side; key columns are given
by ordinal.`,
	Args: cobra.ExactArgs(2),
	RunE: runJoin,
}

func init() {
	rootCmd.Flags().StringVarP(&flags.configFile, "config", "c", "", "engine config file (toml)")
	rootCmd.Flags().StringVar(&flags.leftTypes, "left-types", "", "comma list of left column types, e.g. int64,varchar")
	rootCmd.Flags().StringVar(&flags.rightTypes, "right-types", "", "comma list of right column types")
	rootCmd.Flags().StringVar(&flags.leftKeys, "left-keys", "0", "comma list of left key column ordinals")
	rootCmd.Flags().StringVar(&flags.rightKeys, "right-keys", "0", "comma list of right key column ordinals")
	rootCmd.Flags().StringVar(&flags.buildSide, "build-side", "right", "which side to materialize: left or right")
	rootCmd.Flags().IntVar(&flags.partitions, "partitions", 1, "hash-partition the inputs and join the partitions concurrently")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "keel-join: %v\n", err)
		os.Exit(1)
	}
}
