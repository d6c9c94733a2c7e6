package testutil

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Paths served by JiraMockServer.
const (
	JiraSearchPath = "/rest/api/2/search"
	JiraXMLPath    = "/sr/jira.issueviews:searchrequest-xml/temp/SearchRequest.xml"
)

// JiraLink is one link of a mock issue, described from the issue's side.
type JiraLink struct {
	TypeName string // e.g. "Rely"
	Inward   string // e.g. "is relied upon by"
	Outward  string // e.g. "relies on"
	Key      string
	// IsOutward selects which description applies to this issue.
	IsOutward bool
}

// JiraIssue is the mock data for one issue.
type JiraIssue struct {
	Key         string
	Type        string
	Summary     string
	Description string // HTML
	Status      string
	Priority    string
	Components  []string
	Epic        string
	Effort      string
	Links       []JiraLink
}

// RelyLink returns a link of the "Rely" type.
func RelyLink(key string, outward bool) JiraLink {
	return JiraLink{TypeName: "Rely", Inward: "is relied upon by", Outward: "relies on", Key: key, IsOutward: outward}
}

// JiraMockServer serves the REST search API and the XML search-request view
// from a fixed issue list.
type JiraMockServer struct {
	*MockTrackerServer
	issues      []JiraIssue
	EpicField   string
	EffortField string
}

// NewJiraMockServer creates a new Jira mock server.
func NewJiraMockServer(issues ...JiraIssue) *JiraMockServer {
	m := &JiraMockServer{
		MockTrackerServer: NewMockTrackerServer(),
		issues:            issues,
		EpicField:         "customfield_10730",
		EffortField:       "customfield_10800",
	}
	m.SetHandler(m.handleJiraRequest)
	return m
}

// SetIssues replaces the served issues.
func (m *JiraMockServer) SetIssues(issues []JiraIssue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues = issues
}

func (m *JiraMockServer) snapshot() []JiraIssue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]JiraIssue(nil), m.issues...)
}

func (m *JiraMockServer) handleJiraRequest(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case JiraSearchPath:
		m.handleSearch(w, r)
	case JiraXMLPath:
		m.handleXML(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	}
}

func (m *JiraMockServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	issues := m.snapshot()
	startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
	maxResults, err := strconv.Atoi(r.URL.Query().Get("maxResults"))
	if err != nil || maxResults <= 0 {
		maxResults = 50
	}
	if startAt > len(issues) {
		startAt = len(issues)
	}
	end := startAt + maxResults
	if end > len(issues) {
		end = len(issues)
	}

	page := make([]map[string]interface{}, 0, end-startAt)
	for _, is := range issues[startAt:end] {
		page = append(page, m.restIssue(is))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"startAt":    startAt,
		"maxResults": maxResults,
		"total":      len(issues),
		"issues":     page,
	})
}

func (m *JiraMockServer) restIssue(is JiraIssue) map[string]interface{} {
	fields := map[string]interface{}{
		"issuetype":   map[string]string{"name": is.Type},
		"summary":     is.Summary,
		"description": is.Description,
		"status":      map[string]string{"name": is.Status},
		"priority":    map[string]string{"name": is.Priority},
	}
	if is.Priority == "" {
		fields["priority"] = nil
	}
	comps := make([]map[string]string, 0, len(is.Components))
	for _, c := range is.Components {
		comps = append(comps, map[string]string{"name": c})
	}
	fields["components"] = comps

	links := make([]map[string]interface{}, 0, len(is.Links))
	for _, l := range is.Links {
		link := map[string]interface{}{
			"type": map[string]string{"name": l.TypeName, "inward": l.Inward, "outward": l.Outward},
		}
		if l.IsOutward {
			link["outwardIssue"] = map[string]string{"key": l.Key}
		} else {
			link["inwardIssue"] = map[string]string{"key": l.Key}
		}
		links = append(links, link)
	}
	fields["issuelinks"] = links

	if is.Epic != "" {
		fields[m.EpicField] = is.Epic
	} else {
		fields[m.EpicField] = nil
	}
	if is.Effort != "" {
		fields[m.EffortField] = is.Effort
	}

	return map[string]interface{}{
		"id":             strings.TrimLeft(is.Key, "ABCDEFGHIJKLMNOPQRSTUVWXYZ-"),
		"key":            is.Key,
		"self":           m.URL() + "/rest/api/2/issue/" + is.Key,
		"fields":         fields,
		"renderedFields": map[string]interface{}{"description": is.Description},
	}
}

func (m *JiraMockServer) handleXML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/xml; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(m.RenderXML())
}

// RenderXML returns the XML search-request view of the served issues.
func (m *JiraMockServer) RenderXML() []byte {
	var b bytes.Buffer
	esc := func(s string) string {
		var e bytes.Buffer
		_ = xml.EscapeText(&e, []byte(s))
		return e.String()
	}

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString("<rss version=\"0.92\">\n<channel>\n<title>Mock Jira</title>\n")
	for _, is := range m.snapshot() {
		b.WriteString("<item>\n")
		fmt.Fprintf(&b, "<link>%s/browse/%s</link>\n", m.URL(), esc(is.Key))
		fmt.Fprintf(&b, "<key>%s</key>\n", esc(is.Key))
		fmt.Fprintf(&b, "<summary>%s</summary>\n", esc(is.Summary))
		fmt.Fprintf(&b, "<type>%s</type>\n", esc(is.Type))
		if is.Priority != "" {
			fmt.Fprintf(&b, "<priority>%s</priority>\n", esc(is.Priority))
		}
		fmt.Fprintf(&b, "<status>%s</status>\n", esc(is.Status))
		fmt.Fprintf(&b, "<description>%s</description>\n", esc(is.Description))
		for _, c := range is.Components {
			fmt.Fprintf(&b, "<component>%s</component>\n", esc(c))
		}

		if len(is.Links) > 0 {
			b.WriteString("<issuelinks>\n")
			for _, l := range is.Links {
				dir, desc := "inwardlinks", l.Inward
				if l.IsOutward {
					dir, desc = "outwardlinks", l.Outward
				}
				fmt.Fprintf(&b, "<issuelinktype><name>%s</name><%s description=\"%s\"><issuelink><issuekey>%s</issuekey></issuelink></%s></issuelinktype>\n",
					esc(l.TypeName), dir, esc(desc), esc(l.Key), dir)
			}
			b.WriteString("</issuelinks>\n")
		}

		b.WriteString("<customfields>\n")
		if is.Epic != "" {
			fmt.Fprintf(&b, "<customfield id=\"%s\"><customfieldname>Epic Link</customfieldname><customfieldvalues><customfieldvalue>%s</customfieldvalue></customfieldvalues></customfield>\n",
				m.EpicField, esc(is.Epic))
		}
		if is.Effort != "" {
			fmt.Fprintf(&b, "<customfield id=\"%s\"><customfieldname>Effort</customfieldname><customfieldvalues><customfieldvalue>%s</customfieldvalue></customfieldvalues></customfield>\n",
				m.EffortField, esc(is.Effort))
		}
		b.WriteString("</customfields>\n")
		b.WriteString("</item>\n")
	}
	b.WriteString("</channel>\n</rss>\n")
	return b.Bytes()
}
