// Copyright 2026 The routecore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package routecorecmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var configFlag string

func configFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.StringVarP(&configFlag, "config", "c", "routecore.json", "configuration file")
	return fs
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file, including its policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configFlag)
		if err != nil {
			return err
		}
		fmt.Printf("valid configuration: AS %d, %d peer(s), %d set(s)\n",
			cfg.AS, len(cfg.Peers), len(cfg.Sets))
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control plane",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configFlag)
		if err != nil {
			return err
		}
		if err := cfg.Logging.SetupLogging(); err != nil {
			return err
		}
		d, err := NewDaemon(cfg)
		if err != nil {
			return err
		}
		return d.Run(cmd.Context())
	},
}

func init() {
	validateCmd.Flags().AddFlagSet(configFlagSet())
	runCmd.Flags().AddFlagSet(configFlagSet())
}
