package main

import (
	"sync/atomic"

	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	batchConcurrency int
	batchWithAudit   bool
)

// batchLine is one line of the batch output. Exactly one of Result and
// Error is set.
type batchLine struct {
	File   string          `json:"file"`
	Result *evaluateResult `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

var batchCmd = &cobra.Command{
	Use:   "batch FILE...",
	Short: "Evaluate many case documents concurrently",
	Long: "Evaluates every case document and prints one JSON line per file, in argument order. " +
		"A failing case does not stop the batch; the command exits non-zero when any case failed.",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("evaluate"); err != nil {
			return err
		}
		if batchConcurrency < 1 {
			return eris.New("--concurrency must be at least 1")
		}

		eng, err := newEngine(false)
		if err != nil {
			return err
		}
		defer eng.Close()

		zap.L().Info("processing batch",
			zap.Int("cases", len(args)),
			zap.Int("concurrency", batchConcurrency),
		)

		lines := make([]batchLine, len(args))
		var failed atomic.Int64

		g, gctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(batchConcurrency)

		for i, path := range args {
			i, path := i, path
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				lines[i] = eng.evaluateFile(path, batchWithAudit)
				if lines[i].Error != "" {
					failed.Add(1)
					zap.L().Error("case failed", zap.String("file", path), zap.String("error", lines[i].Error))
				}
				return nil // don't abort batch on individual failure
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch processing")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, line := range lines {
			if err := enc.Encode(line); err != nil {
				return eris.Wrap(err, "write result")
			}
		}

		zap.L().Info("batch complete",
			zap.Int64("succeeded", int64(len(args))-failed.Load()),
			zap.Int64("failed", failed.Load()),
		)
		if n := failed.Load(); n > 0 {
			return eris.Errorf("%d of %d cases failed", n, len(args))
		}
		return nil
	},
}

func (e *engine) evaluateFile(path string, withAudit bool) batchLine {
	line := batchLine{File: path}
	if path == "-" {
		line.Error = "stdin is not supported in a batch"
		return line
	}

	data, err := readCase(path, nil)
	if err == nil {
		line.Result, err = e.evaluate(data, withAudit)
	}
	if err != nil {
		line.Error = err.Error()
	}
	return line
}

func init() {
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "cases evaluated at the same time")
	batchCmd.Flags().BoolVar(&batchWithAudit, "audit", false, "include the audit records in each result")
	rootCmd.AddCommand(batchCmd)
}
