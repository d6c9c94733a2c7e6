package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// TestMain isolates tests from any .irsreport/config.toml on the machine
// running them: config discovery walks up from CWD and checks HOME.
func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "irsreport-config-tests-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	oldWD, _ := os.Getwd()
	_ = os.Chdir(tmp)
	_ = os.Setenv("HOME", tmp)
	_ = os.Setenv("USERPROFILE", tmp) // Windows compatibility
	_ = os.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg-config"))
	for _, env := range []string{"JIRA_URL", "JIRA_USERNAME", "JIRA_PASSWORD", "JIRA_API_TOKEN"} {
		_ = os.Unsetenv(env)
	}
	ResetForTesting()

	code := m.Run()

	_ = os.Chdir(oldWD)
	_ = os.RemoveAll(tmp)
	os.Exit(code)
}
