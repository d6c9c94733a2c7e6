package jira

import (
	"net/url"
	"strings"
)

// BrowseURL returns the web link of an issue.
func BrowseURL(baseURL, key string) string {
	return strings.TrimSuffix(baseURL, "/") + "/browse/" + url.PathEscape(key)
}

// ExtractJiraKey extracts the Jira issue key from a browse URL.
// For example, "https://company.atlassian.net/browse/PROJ-123" returns "PROJ-123".
func ExtractJiraKey(link string) string {
	idx := strings.LastIndex(link, "/browse/")
	if idx == -1 {
		return ""
	}
	return link[idx+len("/browse/"):]
}
