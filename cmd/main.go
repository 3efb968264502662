/*
Copyright 2026 Presslane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/presslane/newswire"
	"github.com/presslane/newswire/config"
	"github.com/presslane/newswire/database"
	"github.com/presslane/newswire/internal/notification"
)

// Newswire wraps the root Cobra command of the CLI.
type Newswire struct {
	cmd *cobra.Command
}

// newswireInstance holds the engine and configuration shared by subcommands.
type newswireInstance struct {
	newswire *newswire.Newswire
	cnf      *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and wires the engine before any subcommand
// runs.
func preRun(app *newswireInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("newswire.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		engine, err := setupNewswire(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.newswire = engine
		app.cnf = cnf

		return nil
	}
}

// setupNewswire connects the datasource and builds the engine. The editorial
// item loader reads published items back out of the delivery queue records.
func setupNewswire(cfg *config.Configuration) (*newswire.Newswire, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	loader, err := newswire.NewContentAPILoader()
	if err != nil {
		return nil, fmt.Errorf("error creating content API loader: %v", err)
	}

	engine, err := newswire.NewNewswire(db, loader)
	if err != nil {
		return nil, fmt.Errorf("error creating newswire: %v", err)
	}
	return engine, nil
}

// NewCLI builds the command line interface with its server and worker
// subcommands.
func NewCLI() *Newswire {
	var configFile string
	n := &newswireInstance{}

	var rootCmd = &cobra.Command{
		Use:   "newswire",
		Short: "publish fan-out and delivery queue engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./newswire.json", "Configuration file for newswire")

	rootCmd.PersistentPreRunE = preRun(n)

	rootCmd.AddCommand(serverCommands(n))
	rootCmd.AddCommand(workerCommands(n))

	return &Newswire{cmd: rootCmd}
}

func (w Newswire) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
