package tracker

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Config holds the settings for one source. Values come from the loaded
// configuration; environment variables fill in anything left empty.
type Config struct {
	// Prefix is the config section for this source (e.g., "jira").
	Prefix string

	// Values maps keys without the prefix ("url", "query") to settings.
	Values map[string]string

	// Out receives anything a source is asked to show instead of fetching
	// (request URIs, raw responses). Nil means os.Stdout.
	Out io.Writer
}

// NewConfig creates a source config with the given prefix and values.
func NewConfig(prefix string, values map[string]string) *Config {
	if values == nil {
		values = make(map[string]string)
	}
	return &Config{Prefix: prefix, Values: values}
}

// Get retrieves a config value by key, falling back to the environment.
// The key should not include the prefix.
// Example: cfg.Get("api_token") for "jira" prefix reads Values["api_token"]
// and falls back to the "JIRA_API_TOKEN" env var.
func (c *Config) Get(key string) string {
	if value := c.Values[key]; value != "" {
		return value
	}
	if envKey := c.envVarName(key); envKey != "" {
		return os.Getenv(envKey)
	}
	return ""
}

// GetRequired is like Get but returns an error if the value is empty.
func (c *Config) GetRequired(key string) (string, error) {
	value := c.Get(key)
	if value == "" {
		fullKey := c.Prefix + "." + key
		hint := fmt.Sprintf("Set %s in .irsreport/config.toml", fullKey)
		if envKey := c.envVarName(key); envKey != "" {
			hint += fmt.Sprintf("\nOr: export %s=VALUE", envKey)
		}
		return "", fmt.Errorf("%s not configured\n%s", fullKey, hint)
	}
	return value, nil
}

// Bool returns the value of key parsed as a boolean; empty or invalid is false.
func (c *Config) Bool(key string) bool {
	b, err := strconv.ParseBool(c.Get(key))
	return err == nil && b
}

// Int returns the value of key as an integer, or def when empty or invalid.
func (c *Config) Int(key string, def int) int {
	n, err := strconv.Atoi(c.Get(key))
	if err != nil {
		return def
	}
	return n
}

// List splits a comma-separated value, dropping blanks.
func (c *Config) List(key string) []string {
	var out []string
	for _, part := range strings.Split(c.Get(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Writer returns Out, or os.Stdout when unset.
func (c *Config) Writer() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// envVarName converts a config key to its environment variable name.
// Example: for prefix "jira" and key "api_token", returns "JIRA_API_TOKEN"
func (c *Config) envVarName(key string) string {
	if c.Prefix == "" {
		return ""
	}
	envKey := strings.ToUpper(c.Prefix + "_" + key)
	envKey = strings.NewReplacer(".", "_", "-", "_").Replace(envKey)
	return envKey
}

// CommonConfig defines configuration keys shared by sources.
var CommonConfig = struct {
	URL      string
	Username string
	Password string
	APIToken string
	Query    string
	Fields   string
}{
	URL:      "url",
	Username: "username",
	Password: "password",
	APIToken: "api_token",
	Query:    "query",
	Fields:   "fields",
}
