// Package config layers irsreport settings from defaults, a TOML config
// file, environment variables and command-line flags, and snapshots them
// into an immutable Config for a report run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/irsreport/irsreport/internal/debug"
)

// Dir and FileName locate the project config file (.irsreport/config.toml).
const (
	Dir      = ".irsreport"
	FileName = "config.toml"
	AppName  = "irsreport"
)

var (
	v        *viper.Viper
	warnings []string
)

// Initialize sets up the viper configuration singleton.
// Should be called once at application startup. An explicit path wins over
// the lookup chain:
// project .irsreport/config.toml (walking up from CWD) >
// ~/.config/irsreport/config.toml > ~/.irsreport/config.toml
func Initialize(explicit string) error {
	v = viper.New()
	v.SetConfigType("toml")
	warnings = nil

	// Environment variables take precedence over the config file.
	// E.g., IRS_REPORT_NAME, IRS_JIRA_QUERY, IRS_LINKS_UNKNOWN
	v.SetEnvPrefix("IRS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// The Jira variables the original reporter's users already export.
	_ = v.BindEnv("jira.url", "IRS_JIRA_URL", "JIRA_URL")
	_ = v.BindEnv("jira.username", "IRS_JIRA_USERNAME", "JIRA_USERNAME")
	_ = v.BindEnv("jira.password", "IRS_JIRA_PASSWORD", "JIRA_PASSWORD")
	_ = v.BindEnv("jira.api_token", "IRS_JIRA_API_TOKEN", "JIRA_API_TOKEN")

	path := explicit
	if path == "" {
		path = FindConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if path == "" {
		debug.Logf("Debug: no %s found; using defaults and environment variables\n", FileName)
		return nil
	}

	file, undecoded, err := ReadFile(path)
	if err != nil {
		return err
	}
	for _, key := range undecoded {
		warnings = append(warnings, fmt.Sprintf("%s: unknown key %q ignored", path, key))
	}
	if err := v.MergeConfigMap(file); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	v.SetConfigFile(path)
	debug.Logf("Debug: loaded config from %s\n", path)
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("report.name", "Report")
	v.SetDefault("report.source", "jira")
	v.SetDefault("report.output_dir", ".")
	v.SetDefault("report.formats", []string{"tex"})
	v.SetDefault("report.prefix", "irs_")
	v.SetDefault("report.templates", "")
	v.SetDefault("report.no_epic_name", "No epic")
	v.SetDefault("report.date", "")

	v.SetDefault("jira.url", "")
	v.SetDefault("jira.username", "")
	v.SetDefault("jira.password", "")
	v.SetDefault("jira.api_token", "")
	v.SetDefault("jira.query", "")
	v.SetDefault("jira.fields", []string{})
	v.SetDefault("jira.epic_field", "customfield_10730")
	v.SetDefault("jira.effort_field", "")
	v.SetDefault("jira.page_size", 50)
	v.SetDefault("jira.timeout", 30)

	v.SetDefault("snapshot.path", "")

	// Values: "error" | "warn" | "drop"
	v.SetDefault("links.unknown", "warn")

	v.SetDefault("reconcile.modify_features", true)
	v.SetDefault("reconcile.modify_policies", true)
	v.SetDefault("reconcile.modify_stories", false)
}

// FindConfigFile returns the first config file on the lookup chain, or "".
func FindConfigFile() string {
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; ; dir = filepath.Dir(dir) {
			path := filepath.Join(dir, Dir, FileName)
			if _, err := os.Stat(path); err == nil {
				return path
			}
			if dir == filepath.Dir(dir) {
				break
			}
		}
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		path := filepath.Join(configDir, AppName, FileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(homeDir, Dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ResetForTesting clears the config state, allowing Initialize() to be called again.
// WARNING: Not thread-safe. Only call from single-threaded test contexts.
func ResetForTesting() {
	v = nil
	warnings = nil
}

func instance() *viper.Viper {
	if v == nil {
		v = viper.New()
		setDefaults(v)
	}
	return v
}

// ConfigFileUsed returns the path of the loaded config file, or "".
func ConfigFileUsed() string {
	return instance().ConfigFileUsed()
}

// Warnings returns problems found while reading the config file.
func Warnings() []string {
	return append([]string(nil), warnings...)
}

// Set overrides a value, typically from an explicitly set flag.
func Set(key string, value interface{}) {
	instance().Set(key, value)
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	return instance().GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	return instance().GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	return instance().GetInt(key)
}

// GetStringSlice retrieves a string slice configuration value. A single
// comma-separated string (as environment variables deliver) is split.
func GetStringSlice(key string) []string {
	var out []string
	for _, item := range instance().GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault    ConfigSource = "default"
	SourceConfigFile ConfigSource = "config_file"
	SourceEnvVar     ConfigSource = "env_var"
)

// GetValueSource returns the source of a configuration value.
// Priority (highest to lowest): env var > config file > default.
// Flag overrides are tracked by the command layer since viper doesn't know
// about cobra flags.
func GetValueSource(key string) ConfigSource {
	envKey := "IRS_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	if os.Getenv(envKey) != "" {
		return SourceEnvVar
	}
	if instance().InConfig(key) {
		return SourceConfigFile
	}
	return SourceDefault
}
