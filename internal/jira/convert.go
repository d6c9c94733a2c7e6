package jira

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/irsreport/irsreport/internal/types"
)

// DefaultEpicField is the custom field carrying a story's epic link.
const DefaultEpicField = "customfield_10730"

// Mapping names the Jira fields a RawIssue is built from.
type Mapping struct {
	// BaseURL is used to build browse links.
	BaseURL string
	// EpicField is the epic link custom field id.
	EpicField string
	// EffortField is an optional custom field holding effort in days or
	// as duration text. When empty, timetracking.originalEstimate is used.
	EffortField string
}

// restFieldNames maps report field names onto Jira REST field ids.
var restFieldNames = map[string]string{
	types.FieldKey:         "",
	types.FieldType:        "issuetype",
	types.FieldSummary:     "summary",
	types.FieldDescription: "description",
	types.FieldStatus:      "status",
	types.FieldLink:        "",
	types.FieldComponent:   "components",
	types.FieldPriority:    "priority",
	types.FieldIssueLinks:  "issuelinks",
	types.FieldCustom:      "",
}

// RESTFields returns the Jira REST field ids to request for the given
// report fields and mapping.
func RESTFields(fields []string, m Mapping) []string {
	var out []string
	seen := map[string]bool{}
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, f := range fields {
		add(restFieldNames[f])
		if f == types.FieldCustom {
			add(m.epicField())
			if m.EffortField != "" {
				add(m.EffortField)
			}
		}
	}
	if m.EffortField == "" {
		add("timetracking")
	}
	return out
}

func (m Mapping) epicField() string {
	if m.EpicField == "" {
		return DefaultEpicField
	}
	return m.EpicField
}

// ToRawIssue converts a REST issue into an ingestion record. Text fields
// prefer their rendered HTML form. Requested fields absent from the
// response are listed in Missing.
func ToRawIssue(issue *Issue, fields []string, m Mapping) types.RawIssue {
	r := types.RawIssue{Key: issue.Key}
	if m.BaseURL != "" {
		r.Link = BrowseURL(m.BaseURL, issue.Key)
	}

	for _, f := range fields {
		id := restFieldNames[f]
		if id == "" {
			continue
		}
		if _, ok := issue.Fields[id]; !ok {
			r.Missing = append(r.Missing, f)
		}
	}

	r.Type = namedField(issue.Fields["issuetype"])
	r.Summary = stringField(issue.Fields["summary"])
	if html, ok := issue.RenderedFields["description"]; ok && stringField(html) != "" {
		r.Description = stringField(html)
	} else {
		r.Description = DescriptionToPlainText(issue.Fields["description"])
	}
	r.Status = namedField(issue.Fields["status"])
	r.Priority = namedField(issue.Fields["priority"])

	var comps []NamedField
	if raw, ok := issue.Fields["components"]; ok {
		_ = json.Unmarshal(raw, &comps)
	}
	names := make([]string, 0, len(comps))
	for _, c := range comps {
		names = append(names, c.Name)
	}
	r.Component = strings.Join(names, ", ")

	var links []IssueLink
	if raw, ok := issue.Fields["issuelinks"]; ok {
		_ = json.Unmarshal(raw, &links)
	}
	r.Links = groupLinks(links)

	r.EpicLink = scalarField(issue.Fields[m.epicField()])

	if m.EffortField != "" {
		r.Effort = scalarField(issue.Fields[m.EffortField])
	} else if raw, ok := issue.Fields["timetracking"]; ok {
		var tt TimeTracking
		if err := json.Unmarshal(raw, &tt); err == nil {
			r.Effort = tt.OriginalEstimate
		}
	}
	return r
}

// groupLinks collects link targets by relation description, keeping the
// order in which descriptions first appear.
func groupLinks(links []IssueLink) []types.RawLink {
	var out []types.RawLink
	pos := map[string]int{}
	for _, l := range links {
		var desc, target string
		switch {
		case l.OutwardIssue != nil:
			desc, target = l.Type.Outward, l.OutwardIssue.Key
		case l.InwardIssue != nil:
			desc, target = l.Type.Inward, l.InwardIssue.Key
		default:
			continue
		}
		i, ok := pos[desc]
		if !ok {
			i = len(out)
			pos[desc] = i
			out = append(out, types.RawLink{Description: desc})
		}
		out[i].Targets = append(out[i].Targets, target)
	}
	return out
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func namedField(raw json.RawMessage) string {
	var nf NamedField
	if len(raw) == 0 || json.Unmarshal(raw, &nf) != nil {
		return ""
	}
	return nf.Name
}

// scalarField renders a string, number or {value}/{key} object as text.
func scalarField(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	var obj struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		if obj.Key != "" {
			return obj.Key
		}
		return obj.Value
	}
	return ""
}
