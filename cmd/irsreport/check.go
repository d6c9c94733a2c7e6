package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/irsreport/irsreport/internal/anomaly"
	"github.com/irsreport/irsreport/internal/debug"
	"github.com/irsreport/irsreport/internal/pipeline"
	"github.com/irsreport/irsreport/internal/tracker"
	"github.com/irsreport/irsreport/internal/ui"
)

var checkCmd = &cobra.Command{
	Use:     "check",
	GroupID: "reports",
	Short:   "Check priorities for consistency without writing a report",
	Long: `Fetch and reconcile like 'irsreport report', print every inconsistency, and
write nothing. With --strict the command exits 1 when any priority
disagrees with the dependency graph, which makes it usable in CI.

Examples:
  irsreport check
  irsreport check --strict --snapshot q3.yaml
  irsreport check --json | jq '.anomalies[] | select(.severity == "inconsistency")'`,
	Run: func(cmd *cobra.Command, args []string) {
		strict, _ := cmd.Flags().GetBool("strict")

		cfg := loadConfig(cmd)
		defer startTelemetry(rootCtx)()
		src := openSource(cfg, nil)
		defer func() { _ = src.Close() }()

		collector := anomaly.NewCollector(nil)
		if !jsonOutput {
			collector = anomaly.NewCollector(ui.NewAnomalyPrinter(os.Stderr, verboseFlag))
		}

		doc, err := pipeline.RunWithOptions(rootCtx, cfg, src, collector, pipeline.Options{OnMessage: progress})
		if errors.Is(err, tracker.ErrStopped) {
			return
		}
		if err != nil {
			failRun(src, err)
		}

		counts := collector.Counts()
		if jsonOutput {
			outputJSON(map[string]interface{}{
				"reconciliation": doc.Reconciliation,
				"anomalies":      doc.Anomalies,
				"counts": map[string]int{
					anomaly.Inconsistency.String(): counts[anomaly.Inconsistency],
					anomaly.Warning.String():       counts[anomaly.Warning],
					anomaly.Info.String():          counts[anomaly.Info],
				},
			})
		} else {
			debug.PrintNormal("\n%s\n", ui.RenderCategory("Summary"))
			debug.PrintNormal("  %s %d inconsistencies, %d warnings, %d notes\n",
				icon(counts), counts[anomaly.Inconsistency], counts[anomaly.Warning], counts[anomaly.Info])
		}

		if strict && counts[anomaly.Inconsistency] > 0 {
			os.Exit(1)
		}
	},
}

func icon(counts map[anomaly.Severity]int) string {
	if counts[anomaly.Inconsistency] > 0 || counts[anomaly.Warning] > 0 {
		return ui.RenderWarnIcon()
	}
	return ui.RenderPassIcon()
}

func init() {
	addSourceFlags(checkCmd)
	checkCmd.Flags().Bool("strict", false, "Exit 1 when any inconsistency is found")
	rootCmd.AddCommand(checkCmd)
}
