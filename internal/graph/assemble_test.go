package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irsreport/irsreport/internal/anomaly"
	"github.com/irsreport/irsreport/internal/links"
	"github.com/irsreport/irsreport/internal/types"
)

func feature(key, summary, priority string, rel ...types.RawLink) types.RawIssue {
	return types.RawIssue{Key: key, Type: types.TrackerTypeFeature, Summary: summary, Priority: priority, Links: rel}
}

func policy(key, summary, priority string, rel ...types.RawLink) types.RawIssue {
	return types.RawIssue{Key: key, Type: types.TrackerTypePolicy, Summary: summary, Priority: priority, Links: rel}
}

func story(key, summary, priority, epic string, rel ...types.RawLink) types.RawIssue {
	return types.RawIssue{Key: key, Type: types.TrackerTypeUserStory, Summary: summary, Priority: priority, EpicLink: epic, Links: rel}
}

func epic(key, summary string) types.RawIssue {
	return types.RawIssue{Key: key, Type: types.TrackerTypeEpic, Summary: summary}
}

func link(desc string, targets ...string) types.RawLink {
	return types.RawLink{Description: desc, Targets: targets}
}

func sampleRecords() []types.RawIssue {
	return []types.RawIssue{
		epic("IRS-1", "Submission"),
		epic("IRS-2", "Moderation"),
		feature("IRS-10", "Feature: Upload PDF", "Major", link("is relied upon by", "IRS-31", "IRS-30")),
		policy("IRS-20", "Policy: Accepted formats", "Low", link("is relied upon by", "IRS-30", "IRS-10")),
		story("IRS-30", "As an author I can upload a PDF", "Critical", "IRS-1",
			link("relies on", "IRS-10", "IRS-20")),
		story("IRS-31", "As a moderator I can reject an upload", "Major", "IRS-2",
			link("relies on", "IRS-10")),
	}
}

func TestAssemblePartitions(t *testing.T) {
	g, err := Assemble(sampleRecords(), Options{})
	require.NoError(t, err)

	require.Len(t, g.Features, 1)
	require.Len(t, g.Policies, 1)
	require.Len(t, g.Stories, 2)
	require.Len(t, g.Epics, 2)

	f := g.Features[0]
	assert.Equal(t, "Upload PDF", f.Summary)
	assert.Equal(t, "Upload PDF.", f.Description)
	assert.Equal(t, types.PriorityMajor, f.Priority)
	assert.Equal(t, 3, f.Ordinal)
	assert.Equal(t, 10, f.Number)

	issue, ok := g.Lookup("IRS-31")
	require.True(t, ok)
	assert.Equal(t, types.KindUserStory, issue.Kind)
	_, ok = g.Lookup("IRS-99")
	assert.False(t, ok)

	assert.Len(t, g.Index(types.KindFeature, types.KindPolicy), 2)
	assert.Equal(t, 1, g.EpicStoryCounts()["IRS-1"])
}

func TestAssembleEpicNamesAndStoryGroups(t *testing.T) {
	g, err := Assemble(sampleRecords(), Options{})
	require.NoError(t, err)

	s30, _ := g.Lookup("IRS-30")
	assert.Equal(t, "Submission", s30.EpicName)
	assert.Equal(t, "IRS-1", s30.EpicKey)

	f, _ := g.Lookup("IRS-10")
	assert.Equal(t, []string{"Moderation", "Submission"}, f.Links[types.UserStoryGroups])

	// The policy keeps its feature dependent but only stories name groups.
	p, _ := g.Lookup("IRS-20")
	assert.Equal(t, []string{"IRS-30", "IRS-10"}, p.Links[types.ReliedUponBy])
	assert.Equal(t, []string{"Submission"}, p.Links[types.UserStoryGroups])
}

func TestAssembleRelatedText(t *testing.T) {
	g, err := Assemble(sampleRecords(), Options{})
	require.NoError(t, err)

	f, _ := g.Lookup("IRS-10")
	want := "Is relied upon by: IRS-30, IRS-31\nUser story groups: Moderation, Submission"
	assert.Equal(t, want, f.RelatedText)
	require.Len(t, f.Related, 2)
	assert.True(t, f.Related[1].Names)

	s, _ := g.Lookup("IRS-30")
	assert.Equal(t, "Relies on: IRS-10, IRS-20", s.RelatedText)
}

func TestAssembleFatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		records []types.RawIssue
		check   func(t *testing.T, err error)
	}{
		{
			name:    "unknown type",
			records: []types.RawIssue{{Key: "IRS-1", Type: "Bug", Summary: "x"}},
			check: func(t *testing.T, err error) {
				var e *UnknownIssueTypeError
				require.True(t, errors.As(err, &e))
				assert.Equal(t, "Bug", e.Type)
			},
		},
		{
			name:    "feature without prefix",
			records: []types.RawIssue{feature("IRS-2", "Upload PDF", "Major")},
			check: func(t *testing.T, err error) {
				var e *MalformedSummaryError
				require.True(t, errors.As(err, &e))
				assert.Equal(t, FeaturePrefix, e.Prefix)
			},
		},
		{
			name:    "policy with feature prefix",
			records: []types.RawIssue{policy("IRS-3", "Feature: wrong", "Low")},
			check: func(t *testing.T, err error) {
				var e *MalformedSummaryError
				require.True(t, errors.As(err, &e))
				assert.Equal(t, types.KindPolicy, e.Kind)
			},
		},
		{
			name:    "story without priority",
			records: []types.RawIssue{story("IRS-4", "As a user", "", "")},
			check: func(t *testing.T, err error) {
				var e *MissingPriorityError
				require.True(t, errors.As(err, &e))
				assert.Empty(t, e.Value)
			},
		},
		{
			name:    "feature with unknown priority",
			records: []types.RawIssue{feature("IRS-5", "Feature: x", "Blocker")},
			check: func(t *testing.T, err error) {
				var e *MissingPriorityError
				require.True(t, errors.As(err, &e))
				assert.Equal(t, "Blocker", e.Value)
			},
		},
		{
			name:    "missing key",
			records: []types.RawIssue{{Type: types.TrackerTypeEpic}},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMissingKey)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.records, Options{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestAssembleEpicResolution(t *testing.T) {
	records := []types.RawIssue{
		epic("IRS-1", "Submission"),
		story("IRS-10", "found", "Low", "IRS-1"),
		story("IRS-11", "unknown epic", "Low", "IRS-9"),
		story("IRS-12", "escape template", "Low", `$xmlutils.escape("Search")`),
		story("IRS-13", "no epic", "Low", ""),
	}
	c := anomaly.NewCollector(nil)
	g, err := Assemble(records, Options{Sink: c, NoEpicName: "Unassigned"})
	require.NoError(t, err)

	names := map[string]string{}
	for _, s := range g.Stories {
		names[s.Key] = s.EpicName
	}
	assert.Equal(t, map[string]string{
		"IRS-10": "Submission",
		"IRS-11": "IRS-9",
		"IRS-12": `$xmlutils.escape("Search")`,
		"IRS-13": "Unassigned",
	}, names)

	warnings := c.Filter(anomaly.Warning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "IRS-11", warnings[0].Key)
}

func TestAssembleNonStoryDependentDropped(t *testing.T) {
	records := []types.RawIssue{
		feature("IRS-1", "Feature: a", "Low", link("is relied upon by", "IRS-2", "IRS-3")),
		feature("IRS-2", "Feature: b", "Low"),
		story("IRS-3", "s", "Major", ""),
	}
	c := anomaly.NewCollector(nil)
	g, err := Assemble(records, Options{Sink: c})
	require.NoError(t, err)

	f, _ := g.Lookup("IRS-1")
	assert.Equal(t, []string{"IRS-3"}, f.Links[types.ReliedUponBy])
	assert.Equal(t, []string{DefaultNoEpicName}, f.Links[types.UserStoryGroups])
	require.Equal(t, 1, c.Count(anomaly.Warning))
	assert.Contains(t, c.All()[0].Message, "IRS-2")
}

func TestAssembleUnknownRelationPolicies(t *testing.T) {
	records := []types.RawIssue{
		feature("IRS-1", "Feature: a", "Low", link("blocks", "IRS-2")),
		feature("IRS-2", "Feature: b", "Low"),
	}

	t.Run("warn keeps translated label", func(t *testing.T) {
		c := anomaly.NewCollector(nil)
		g, err := Assemble(records, Options{Sink: c})
		require.NoError(t, err)
		f, _ := g.Lookup("IRS-1")
		assert.Equal(t, map[string][]string{"Blocks": {"IRS-2"}}, f.ExtraLinks)
		assert.Equal(t, "Blocks: IRS-2", f.RelatedText)
		assert.Equal(t, 1, c.Count(anomaly.Warning))
	})

	t.Run("drop discards", func(t *testing.T) {
		c := anomaly.NewCollector(nil)
		g, err := Assemble(records, Options{Sink: c, UnknownRelations: links.UnknownDrop})
		require.NoError(t, err)
		f, _ := g.Lookup("IRS-1")
		assert.Empty(t, f.ExtraLinks)
		assert.Empty(t, f.RelatedText)
		assert.Equal(t, 1, c.Count(anomaly.Warning))
	})

	t.Run("error aborts", func(t *testing.T) {
		_, err := Assemble(records, Options{UnknownRelations: links.UnknownError})
		assert.ErrorIs(t, err, links.ErrUnrecognizedRelation)
	})
}

func TestAssembleTextNormalization(t *testing.T) {
	records := []types.RawIssue{
		{
			Key: "IRS-1", Type: types.TrackerTypeFeature, Priority: "Low",
			Summary:     "Feature: Search <b>fast</b>.",
			Description: "<p>Results in under a second</p>",
		},
		{
			Key: "IRS-2", Type: types.TrackerTypeUserStory, Priority: "Low",
			Summary:     "Can I search?",
			Description: "",
		},
		{
			Key: "IRS-3", Type: types.TrackerTypeUserStory, Priority: "Low",
			Summary: "Something", Missing: []string{types.FieldDescription, types.FieldStatus},
		},
	}
	g, err := Assemble(records, Options{})
	require.NoError(t, err)

	f, _ := g.Lookup("IRS-1")
	assert.Equal(t, "Search fast", f.Summary)
	assert.Equal(t, "Results in under a second.", f.Description)

	s, _ := g.Lookup("IRS-2")
	assert.Equal(t, "Can I search?", s.Description)

	m, _ := g.Lookup("IRS-3")
	assert.Equal(t, "FIXME - missing description.", m.Description)
	assert.Equal(t, "FIXME - missing status", m.Status)
}

func TestAssembleEffort(t *testing.T) {
	records := []types.RawIssue{
		{Key: "IRS-1", Type: types.TrackerTypeFeature, Summary: "Feature: a", Priority: "Low", Effort: "1.5"},
		{Key: "IRS-2", Type: types.TrackerTypeFeature, Summary: "Feature: b", Priority: "Low", Effort: "lots"},
		{Key: "IRS-3", Type: types.TrackerTypeFeature, Summary: "Feature: c", Priority: "Low"},
	}
	c := anomaly.NewCollector(nil)
	g, err := Assemble(records, Options{Sink: c})
	require.NoError(t, err)

	require.NotNil(t, g.Features[0].EffortDays)
	assert.InDelta(t, 1.5, *g.Features[0].EffortDays, 1e-9)
	assert.Nil(t, g.Features[1].EffortDays)
	assert.Nil(t, g.Features[2].EffortDays)

	effort := c.Filter(anomaly.Warning)
	require.Len(t, effort, 1)
	assert.Equal(t, anomaly.PhaseEffort, effort[0].Phase)
}

func TestAssembleNonFiniteEffortIsMissing(t *testing.T) {
	for _, text := range []string{"NaN", "Inf", "+Inf", "-Inf"} {
		t.Run(text, func(t *testing.T) {
			records := []types.RawIssue{
				{Key: "IRS-1", Type: types.TrackerTypeFeature, Summary: "Feature: a", Priority: "Critical", Effort: "1.5"},
				{Key: "IRS-2", Type: types.TrackerTypeFeature, Summary: "Feature: b", Priority: "Critical", Effort: text},
			}
			c := anomaly.NewCollector(nil)
			g, err := Assemble(records, Options{Sink: c})
			require.NoError(t, err)

			require.NotNil(t, g.Features[0].EffortDays)
			assert.Nil(t, g.Features[1].EffortDays)

			warnings := c.Filter(anomaly.Warning)
			require.Len(t, warnings, 1)
			assert.Equal(t, "IRS-2", warnings[0].Key)
			assert.Equal(t, anomaly.PhaseEffort, warnings[0].Phase)
		})
	}
}

func TestAssembleDuplicateKey(t *testing.T) {
	records := []types.RawIssue{epic("IRS-1", "first"), epic("IRS-1", "second")}
	c := anomaly.NewCollector(nil)
	g, err := Assemble(records, Options{Sink: c})
	require.NoError(t, err)
	require.Len(t, g.Epics, 1)
	assert.Equal(t, "first", g.Epics[0].Summary)
	assert.Equal(t, 1, c.Count(anomaly.Warning))
}
