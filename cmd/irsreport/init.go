package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/irsreport/irsreport/internal/config"
	"github.com/irsreport/irsreport/internal/ui"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "setup",
	Short:   "Create .irsreport/config.toml",
	Long: `Create a project config file interactively.

Credentials are best kept out of the file: export JIRA_USERNAME and
JIRA_API_TOKEN (or JIRA_PASSWORD) instead.

Examples:
  irsreport init
  irsreport init --non-interactive --url https://jira.example.com --query 'project = IRS'`,
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("path")
		force, _ := cmd.Flags().GetBool("force")
		nonInteractive, _ := cmd.Flags().GetBool("non-interactive")

		if path == "" {
			path = filepath.Join(config.Dir, config.FileName)
		}
		if _, err := os.Stat(path); err == nil && !force {
			FatalErrorWithHint(fmt.Sprintf("%s already exists", path), "Use --force to overwrite it")
		}

		f := config.DefaultFile()
		f.Report.Name, _ = cmd.Flags().GetString("name")
		f.Jira.URL, _ = cmd.Flags().GetString("url")
		f.Jira.Query, _ = cmd.Flags().GetString("query")
		if f.Report.Name == "" {
			f.Report.Name = "Report"
		}

		if !nonInteractive {
			if err := runInitForm(&f); err != nil {
				if err == huh.ErrUserAborted {
					fmt.Fprintln(os.Stderr, "Init cancelled.")
					os.Exit(0)
				}
				FatalError("form error: %v", err)
			}
		} else if err := validateURL(f.Jira.URL); err != nil {
			FatalError("--url: %v", err)
		}

		if err := config.WriteFile(path, f); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s Created %s\n", ui.RenderPassIcon(), path)
		if f.Jira.Password == "" && f.Jira.APIToken == "" {
			fmt.Printf("  %s\n", ui.RenderMuted("Set JIRA_USERNAME and JIRA_API_TOKEN before running 'irsreport report'"))
		}
	},
}

func runInitForm(f *config.File) error {
	formats := f.Report.Formats
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Report name").
				Description("Shown in the report title").
				Value(&f.Report.Name),

			huh.NewInput().
				Title("Jira URL").
				Placeholder("https://jira.example.com").
				Value(&f.Jira.URL).
				Validate(validateURL),

			huh.NewText().
				Title("JQL query").
				Description("Selects the features, policies, user stories and epics to report on").
				Placeholder(`project = IRS AND issuetype in ("New Feature", "Policy Question", "User Story", Epic)`).
				Value(&f.Jira.Query).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("query is required")
					}
					return nil
				}),
		),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Source").
				Options(
					huh.NewOption("Jira REST search (default)", "jira"),
					huh.NewOption("Jira XML issue view", "jira-xml"),
				).
				Value(&f.Report.Source),

			huh.NewMultiSelect[string]().
				Title("Output formats").
				Options(
					huh.NewOption("LaTeX", "tex").Selected(true),
					huh.NewOption("Markdown", "markdown"),
				).
				Value(&formats),

			huh.NewSelect[string]().
				Title("Unrecognized link types").
				Options(
					huh.NewOption("Warn and keep in related text (default)", "warn"),
					huh.NewOption("Warn and drop", "drop"),
					huh.NewOption("Fail the report", "error"),
				).
				Value(&f.Links.Unknown),

			huh.NewConfirm().
				Title("Also lower user story priorities?").
				Description("Features and policies are always corrected; stories are only reported by default").
				Value(&f.Reconcile.ModifyStories),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		return err
	}
	f.Report.Formats = formats
	return nil
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("enter an http(s) URL such as https://jira.example.com")
	}
	return nil
}

func init() {
	initCmd.Flags().String("path", "", "Where to write the config (default: .irsreport/config.toml)")
	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")
	initCmd.Flags().Bool("non-interactive", false, "Write the file from flags without prompting")
	initCmd.Flags().String("name", "", "Report name")
	initCmd.Flags().String("url", "", "Jira base URL")
	initCmd.Flags().String("query", "", "JQL query")
	rootCmd.AddCommand(initCmd)
}
