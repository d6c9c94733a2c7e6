package jira

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/irsreport/irsreport/internal/types"
)

// MaxXMLResults is the tempMax of an XML search request.
const MaxXMLResults = 1000

// SearchRequestURI builds the URI of the XML search-request issue view.
// Credentials, when given, are sent as os_username/os_password parameters.
func SearchRequestURI(baseURL, jql, username, password string, fields []string) string {
	params := url.Values{}
	params.Set("jqlQuery", jql)
	params.Set("tempMax", fmt.Sprint(MaxXMLResults))
	if username != "" || password != "" {
		params.Set("os_username", username)
		params.Set("os_password", password)
	}
	for _, f := range fields {
		params.Add("field", f)
	}
	return strings.TrimSuffix(baseURL, "/") +
		"/sr/jira.issueviews:searchrequest-xml/temp/SearchRequest.xml?" + params.Encode()
}

type xmlRSS struct {
	Items []xmlItem `xml:"channel>item"`
}

type xmlText struct {
	Value string `xml:",chardata"`
}

type xmlItem struct {
	Key          *xmlText        `xml:"key"`
	Type         *xmlText        `xml:"type"`
	Summary      *xmlText        `xml:"summary"`
	Description  *xmlText        `xml:"description"`
	Status       *xmlText        `xml:"status"`
	Link         *xmlText        `xml:"link"`
	Components   []xmlText       `xml:"component"`
	Priority     *xmlText        `xml:"priority"`
	IssueLinks   *xmlIssueLinks  `xml:"issuelinks"`
	CustomFields *xmlCustomField `xml:"customfields"`
}

type xmlIssueLinks struct {
	Types []struct {
		Name    string        `xml:"name"`
		Outward []xmlLinkList `xml:"outwardlinks"`
		Inward  []xmlLinkList `xml:"inwardlinks"`
	} `xml:"issuelinktype"`
}

type xmlLinkList struct {
	Description string   `xml:"description,attr"`
	Keys        []string `xml:"issuelink>issuekey"`
}

type xmlCustomField struct {
	Fields []struct {
		ID     string   `xml:"id,attr"`
		Name   string   `xml:"customfieldname"`
		Values []string `xml:"customfieldvalues>customfieldvalue"`
	} `xml:"customfield"`
}

// value returns the first value of the custom field with the given id.
func (c *xmlCustomField) value(id string) string {
	if c == nil || id == "" {
		return ""
	}
	for _, f := range c.Fields {
		if f.ID == id && len(f.Values) > 0 {
			return strings.TrimSpace(f.Values[0])
		}
	}
	return ""
}

// ParseSearchRequest reads an XML search-request view into ingestion
// records, in document order. Requested fields absent from an item are
// listed in Missing.
func ParseSearchRequest(r io.Reader, fields []string, m Mapping) ([]types.RawIssue, error) {
	var doc xmlRSS
	dec := xml.NewDecoder(r)
	// Older Jira servers declare and emit ISO-8859-1.
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse search request XML: %w", err)
	}

	wanted := make(map[string]bool, len(fields))
	for _, f := range fields {
		wanted[f] = true
	}

	out := make([]types.RawIssue, 0, len(doc.Items))
	for _, item := range doc.Items {
		var rec types.RawIssue
		text := func(field string, el *xmlText) string {
			if el == nil {
				if wanted[field] {
					rec.Missing = append(rec.Missing, field)
				}
				return ""
			}
			return strings.TrimSpace(el.Value)
		}

		rec.Key = text(types.FieldKey, item.Key)
		rec.Type = text(types.FieldType, item.Type)
		rec.Summary = text(types.FieldSummary, item.Summary)
		rec.Description = text(types.FieldDescription, item.Description)
		rec.Status = text(types.FieldStatus, item.Status)
		rec.Link = text(types.FieldLink, item.Link)
		rec.Priority = text(types.FieldPriority, item.Priority)
		if rec.Key == "" {
			rec.Key = ExtractJiraKey(rec.Link)
		}

		if len(item.Components) == 0 {
			if wanted[types.FieldComponent] {
				rec.Missing = append(rec.Missing, types.FieldComponent)
			}
		} else {
			names := make([]string, len(item.Components))
			for i, c := range item.Components {
				names[i] = strings.TrimSpace(c.Value)
			}
			rec.Component = strings.Join(names, ", ")
		}

		if item.IssueLinks != nil {
			rec.Links = xmlLinks(item.IssueLinks)
		}
		rec.EpicLink = item.CustomFields.value(m.epicField())
		rec.Effort = item.CustomFields.value(m.EffortField)

		out = append(out, rec)
	}
	return out, nil
}

func xmlLinks(el *xmlIssueLinks) []types.RawLink {
	var out []types.RawLink
	pos := map[string]int{}
	add := func(list xmlLinkList) {
		i, ok := pos[list.Description]
		if !ok {
			i = len(out)
			pos[list.Description] = i
			out = append(out, types.RawLink{Description: list.Description})
		}
		for _, k := range list.Keys {
			out[i].Targets = append(out[i].Targets, strings.TrimSpace(k))
		}
	}
	for _, t := range el.Types {
		for _, l := range t.Outward {
			add(l)
		}
		for _, l := range t.Inward {
			add(l)
		}
	}
	return out
}
