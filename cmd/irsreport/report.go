package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/irsreport/irsreport/internal/anomaly"
	"github.com/irsreport/irsreport/internal/config"
	"github.com/irsreport/irsreport/internal/debug"
	"github.com/irsreport/irsreport/internal/jira"
	"github.com/irsreport/irsreport/internal/pipeline"
	"github.com/irsreport/irsreport/internal/render"
	"github.com/irsreport/irsreport/internal/report"
	"github.com/irsreport/irsreport/internal/tracker"
	"github.com/irsreport/irsreport/internal/ui"
)

var reportCmd = &cobra.Command{
	Use:     "report",
	GroupID: "reports",
	Short:   "Fetch issues, reconcile priorities and write the report",
	Long: `Fetch the issues matching the configured query, reconcile priorities and
write the report files.

Features take the highest priority of the user stories that rely on them,
policies the highest of the stories and features that rely on them. User
stories are checked against the lowest priority of what they rely on and
only reported unless --modify-stories is given.

Output:
  <output>/<prefix>report.tex   LaTeX report (default)
  <output>/<prefix>report.md    Markdown report (--format markdown)

Examples:
  irsreport report                                 # Use .irsreport/config.toml
  irsreport report --format tex,markdown -o build
  irsreport report --preview                       # Show the markdown report in the terminal
  irsreport report --save-snapshot q3.yaml         # Keep the fetched issues
  irsreport report --snapshot q3.yaml              # Rebuild offline from a snapshot
  irsreport report --source jira-xml --show-uri    # Print the XML view URI and stop`,
	Run: func(cmd *cobra.Command, args []string) {
		runReport(cmd)
	},
}

func init() {
	addSourceFlags(reportCmd)
	reportCmd.Flags().StringP("output", "o", "", "Output directory (config: report.output_dir)")
	reportCmd.Flags().StringSlice("format", nil, "Output formats: tex, markdown (config: report.formats)")
	reportCmd.Flags().String("templates", "", "Directory holding report.<ext>.tmpl overrides (config: report.templates)")
	reportCmd.Flags().String("prefix", "", "Output file name prefix (config: report.prefix)")
	reportCmd.Flags().String("save-snapshot", "", "Also save the fetched issues to this YAML snapshot")
	reportCmd.Flags().Bool("preview", false, "Render the markdown report in the terminal instead of writing files")
	reportCmd.Flags().Bool("no-pager", false, "Do not pipe --preview output through a pager")
	reportCmd.Flags().Bool("show-uri", false, "Print the XML view request URI and exit (jira-xml source)")
	reportCmd.Flags().Bool("show-xml", false, "Print the raw XML view response and exit (jira-xml source)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command) {
	cfg := loadConfig(cmd)
	defer startTelemetry(rootCtx)()

	showURI, _ := cmd.Flags().GetBool("show-uri")
	showXML, _ := cmd.Flags().GetBool("show-xml")
	extra := map[string]string{}
	if showURI || showXML {
		if cfg.Source != "jira-xml" {
			FatalErrorWithHint("--show-uri and --show-xml only apply to the XML view",
				"Add --source jira-xml")
		}
		extra[jira.ConfigShowURI] = fmt.Sprint(showURI)
		extra[jira.ConfigShowXML] = fmt.Sprint(showXML)
	}

	src := openSource(cfg, extra)
	defer func() { _ = src.Close() }()
	if path, _ := cmd.Flags().GetString("save-snapshot"); path != "" {
		src = &savingSource{Source: src, path: path, query: cfg.Query}
	}

	var sink anomaly.Sink = ui.NewAnomalyPrinter(os.Stderr, verboseFlag)
	if jsonOutput {
		sink = anomaly.Discard
	}

	doc, err := pipeline.RunWithOptions(rootCtx, cfg, src, sink, pipeline.Options{OnMessage: progress})
	if errors.Is(err, tracker.ErrStopped) {
		return
	}
	if err != nil {
		failRun(src, err)
	}

	templates := render.LoadOptions{Dir: cfg.TemplateDir, ProjectDir: projectDir()}
	if preview, _ := cmd.Flags().GetBool("preview"); preview {
		noPager, _ := cmd.Flags().GetBool("no-pager")
		if err := previewReport(doc, templates, noPager); err != nil {
			failRun(src, err)
		}
		return
	}

	paths, err := render.WriteAll(rootCtx, doc, render.Options{
		OutputDir: cfg.OutputDir,
		Prefix:    cfg.Prefix,
		Formats:   cfg.Formats,
		Templates: templates,
	})
	if err != nil {
		failRun(src, err)
	}

	if jsonOutput {
		outputJSON(struct {
			Files    []string         `json:"files"`
			Document *report.Document `json:"document"`
		}{paths, doc})
		return
	}
	for _, p := range paths {
		debug.PrintNormal("%s Wrote %s\n", ui.RenderPassIcon(), p)
	}
	printSummary(doc)
}

// previewReport renders the markdown report with glamour and pages it.
func previewReport(doc *report.Document, templates render.LoadOptions, noPager bool) error {
	var buf bytes.Buffer
	if err := render.Render(&buf, render.FormatMarkdown, doc, templates); err != nil {
		return err
	}
	return ui.ToPager(ui.RenderMarkdown(buf.String()), ui.PagerOptions{NoPager: noPager})
}

// printSummary prints issue counts and what reconciliation found.
func printSummary(doc *report.Document) {
	features, policies, stories := doc.Issues()
	debug.PrintNormal("  %d features, %d policies, %d user stories in %d epics\n",
		features, policies, stories, len(doc.Stories))

	corrected := len(doc.Reconciliation.Corrections)
	reported := len(doc.Reconciliation.Inconsistencies) - corrected
	switch {
	case corrected == 0 && reported == 0:
		debug.PrintNormal("  %s priorities are consistent\n", ui.RenderPassIcon())
	default:
		debug.PrintNormal("  %s %d priorities corrected, %d inconsistencies reported\n",
			ui.RenderWarnIcon(), corrected, reported)
	}
	if doc.Effort.Missing > 0 {
		debug.PrintNormal("  %s %d features have no effort estimate\n", ui.RenderInfoIcon(), doc.Effort.Missing)
	}
	if used := config.ConfigFileUsed(); used != "" && verboseFlag {
		debug.PrintNormal("  %s\n", ui.RenderMuted("config: "+used))
	}
}
