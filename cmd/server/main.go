/*
main.go - Application entry point

PURPOSE:
  The sickpay command evaluates sickness benefit cases, either one case
  document from disk or as an HTTP service.

COMMANDS:
  serve              Start the HTTP API (api/server.go)
  evaluate FILE      Evaluate a case document and print the result as JSON
  batch FILE...      Evaluate many documents concurrently, one JSON line each

CONFIGURATION:
  config.yaml in the working directory, overridden by SICKPAY_* environment
  variables (SICKPAY_SERVER_PORT, SICKPAY_STORE_PATH, SICKPAY_LOG_LEVEL, ...).
  See config/config.go for every key and its default.

EXAMPLES:
  # Serve with a file database
  SICKPAY_STORE_PATH=./data/sickpay.db sickpay serve

  # Serve without persistence
  SICKPAY_STORE_PATH= sickpay serve --port 3000

  # Evaluate one case
  sickpay evaluate ./cases/two-employers.json

  # Evaluate a directory of cases, eight at a time
  sickpay batch --concurrency 8 ./cases/*.json

SEE ALSO:
  - serve.go, evaluate.go, batch.go: subcommands
  - config/config.go: configuration keys
*/
package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/sickpay-engine/config"
	"github.com/warp/sickpay-engine/eligibility"
	"github.com/warp/sickpay-engine/factory"
	"github.com/warp/sickpay-engine/store/sqlite"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sickpay",
	Short: "Sickness benefit engine",
	Long:  "Merges reported sickness periods, tracks the maximum entitlement and splits daily payouts between employers and the person.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// engine bundles what the subcommands need.
type engine struct {
	store       *sqlite.Store
	factory     *factory.CaseFactory
	baseAmounts eligibility.BaseAmountTable
}

// newEngine opens the store (when a path is configured) and loads the rules.
func newEngine(withStore bool) (*engine, error) {
	baseAmounts, err := factory.LoadBaseAmountsFile(cfg.Rules.BaseAmountsFile)
	if err != nil {
		return nil, err
	}
	e := &engine{
		factory:     factory.NewCaseFactory(cfg.Rules.DefaultTieBreak),
		baseAmounts: baseAmounts,
	}

	if withStore && cfg.Store.Path != "" {
		if e.store, err = sqlite.New(cfg.Store.Path); err != nil {
			return nil, err
		}
		zap.L().Info("store opened", zap.String("path", cfg.Store.Path))
	}
	return e, nil
}

func (e *engine) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
