package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/irsreport/irsreport/internal/config"
	"github.com/irsreport/irsreport/internal/debug"
	"github.com/irsreport/irsreport/internal/ui"
)

var (
	configPath  string
	jsonOutput  bool
	verboseFlag bool // Enable verbose/debug output
	quietFlag   bool // Suppress non-essential output

	// Signal-aware context for graceful cancellation
	rootCtx    = context.Background()
	rootCancel context.CancelFunc = func() {}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: auto-discover .irsreport/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	rootCmd.AddGroup(&cobra.Group{ID: "reports", Title: "Reports:"})
	rootCmd.AddGroup(&cobra.Group{ID: "setup", Title: "Setup & Configuration:"})
}

var rootCmd = &cobra.Command{
	Use:   "irsreport",
	Short: "irsreport - priority-consistent feature, policy and user story reports",
	Long: `Build a prioritized report of features, policy questions and user stories
from a Jira query. Priorities flow from user stories to the features and
policies they rely on; inconsistencies are reported and, for features and
policies, corrected before the report is written.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("irsreport version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()
		applyVerbosityFlags()

		// init writes the config file, it does not read one.
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return
		}
		if err := config.Initialize(configPath); err != nil {
			FatalErrorWithHint(err.Error(), "Run 'irsreport init' to create .irsreport/config.toml")
		}
		for _, w := range config.Warnings() {
			WarnError("%s", w)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		rootCancel()
	},
}

// setupSignalContext creates a context that cancels on SIGINT/SIGTERM so an
// interrupted fetch stops promptly.
func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// applyVerbosityFlags propagates --verbose and --quiet to the debug package.
func applyVerbosityFlags() {
	debug.SetVerbose(verboseFlag)
	debug.SetQuiet(quietFlag || jsonOutput)
}

// projectDir returns the project .irsreport directory: the one holding the
// loaded config file, else one in the working directory, else "".
func projectDir() string {
	if used := config.ConfigFileUsed(); used != "" {
		if dir := filepath.Dir(used); filepath.Base(dir) == config.Dir {
			return dir
		}
	}
	if info, err := os.Stat(config.Dir); err == nil && info.IsDir() {
		abs, _ := filepath.Abs(config.Dir)
		return abs
	}
	return ""
}

// progress prints pipeline progress lines unless --quiet or --json.
func progress(msg string) {
	debug.PrintNormal("%s %s\n", ui.RenderMuted("→"), msg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
