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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"code.stratumtrade.io/stratum/config"
)

var initArgs struct {
	force bool
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a stratum node",
	Long:  "Generate the minimal configuration required for a stratum node to start",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initArgs.force, "force", "f", false, "Erase existing configuration at the specified path")
}

func runInit(_ *cobra.Command, _ []string) error {
	if _, err := os.Stat(rootArgs.home); err == nil && !initArgs.force {
		return fmt.Errorf("configuration already exists at %q, remove it first or re-run using -f", rootArgs.home)
	}
	if initArgs.force {
		os.RemoveAll(rootArgs.home)
	}
	if err := config.Write(rootArgs.home, config.NewDefaultConfig()); err != nil {
		return err
	}
	fmt.Printf("configuration generated at %q\n", rootArgs.home)
	return nil
}
