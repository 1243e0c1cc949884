package main

import (
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/sickpay-engine/api"
	"github.com/warp/sickpay-engine/audit"
	"github.com/warp/sickpay-engine/payment"
)

var (
	evaluateWithAudit bool
	evaluateIndent    bool
)

// evaluateResult is the document printed by the evaluate command.
type evaluateResult struct {
	api.EvaluationDTO
	Audit []api.AuditRecordDTO `json:"audit,omitempty"`
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate FILE",
	Short: "Evaluate a case document and print the result",
	Long:  "Reads a case document (\"-\" for stdin), runs the engine and prints the payment output as JSON. Nothing is persisted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("evaluate"); err != nil {
			return err
		}

		data, err := readCase(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}

		eng, err := newEngine(false)
		if err != nil {
			return err
		}
		defer eng.Close()

		result, err := eng.evaluate(data, evaluateWithAudit)
		if err != nil {
			return eris.Wrapf(err, "evaluate %s", args[0])
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		if evaluateIndent {
			enc.SetIndent("", "  ")
		}
		return eris.Wrap(enc.Encode(result), "write result")
	},
}

// evaluate runs one case document through the engine. Nothing is persisted.
func (e *engine) evaluate(data []byte, withAudit bool) (*evaluateResult, error) {
	c, err := e.factory.ParseCase(data)
	if err != nil {
		return nil, err
	}

	collector := audit.NewCollector()
	var sink audit.Sink = collector
	if cfg.Rules.MirrorAuditToLog {
		sink = audit.Tee{collector, audit.NewZapSink(zap.L())}
	}

	out, err := payment.Build(c.Input(e.baseAmounts, sink))
	if err != nil {
		return nil, err
	}
	for _, w := range out.Warnings {
		zap.L().Warn("evaluation warning", zap.String("case_id", c.ID), zap.String("warning", w))
	}

	records := collector.Records()
	result := &evaluateResult{EvaluationDTO: api.NewEvaluationDTO(c.ID, out, len(records))}
	if withAudit {
		result.Audit = api.NewAuditRecordDTOs(records)
	}
	return result, nil
}

func readCase(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return data, eris.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return data, nil
}

func init() {
	evaluateCmd.Flags().BoolVar(&evaluateWithAudit, "audit", false, "include the audit records in the output")
	evaluateCmd.Flags().BoolVar(&evaluateIndent, "indent", true, "pretty-print the JSON output")
	rootCmd.AddCommand(evaluateCmd)
}
