// Copyright (C) 2023 Gobalsky Labs Limited
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stratum",
	Short: "Stratum perpetual swap engine",
	Long:  "Stratum runs the market engine of a perpetual swap venue, exposing it over HTTP",
}

var rootArgs struct {
	home string
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootArgs.home, "home", defaultHome(), "Path of the configuration directory")
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command, it is called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stratum"
	}
	return filepath.Join(home, ".stratum")
}
