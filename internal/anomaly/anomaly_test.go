package anomaly

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordsAndForwards(t *testing.T) {
	var forwarded []Anomaly
	c := NewCollector(SinkFunc(func(a Anomaly) { forwarded = append(forwarded, a) }))

	Reportf(c, Info, PhaseFeatures, "IRS-1", "no dependents found")
	Reportf(c, Inconsistency, PhaseFeatures, "IRS-2", "priority %s lower than inferred %s", "Low", "Critical")
	Reportf(c, Warning, PhaseAssemble, "IRS-3", "link ignored")

	all := c.All()
	require.Len(t, all, 3)
	assert.Equal(t, forwarded, all)
	assert.Equal(t, "priority Low lower than inferred Critical", all[1].Message)

	assert.Equal(t, 1, c.Count(Info))
	assert.Equal(t, 1, c.Count(Warning))
	assert.Equal(t, 1, c.Count(Inconsistency))
	assert.Equal(t, map[Severity]int{Info: 1, Warning: 1, Inconsistency: 1}, c.Counts())
}

func TestReportfNilSink(t *testing.T) {
	// Must not panic.
	Reportf(nil, Warning, PhaseAssemble, "", "ignored")
	Discard.Report(Anomaly{Message: "dropped"})
}

func TestSeveritiesAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range []Severity{Info, Warning, Inconsistency} {
		name := s.String()
		assert.False(t, seen[name], "duplicate severity name %q", name)
		seen[name] = true
	}
}

func TestAnomalyJSON(t *testing.T) {
	data, err := json.Marshal(Anomaly{Severity: Inconsistency, Phase: PhaseStories, Key: "IRS-9", Message: "m"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"severity":"inconsistency","phase":"stories","key":"IRS-9","message":"m"}`, string(data))
}

func TestAnomalyString(t *testing.T) {
	a := Anomaly{Severity: Info, Key: "IRS-1", Message: "hello"}
	assert.Equal(t, "[info] IRS-1: hello", a.String())
	a.Key = ""
	assert.Equal(t, "[info] hello", a.String())
}
