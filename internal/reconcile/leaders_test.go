package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicgraph/orgscope/internal/model"
)

func leader(name, position string, conf float64, fetched time.Time) model.LeaderCandidate {
	return model.LeaderCandidate{
		Name:            name,
		Position:        position,
		Confidence:      conf,
		SourceURL:       "https://src.org/leaders",
		SourceFetchedAt: fetched,
	}
}

func TestMergeLeadersNewRecord(t *testing.T) {
	t.Parallel()

	r := New(0)
	profile, updated := r.Apply(nil, "The Group", model.Extraction{
		Leaders: []model.LeaderCandidate{leader("Jane Doe", "President", 0.9, baseTime)},
	})

	assert.Positive(t, updated)
	require.Len(t, profile.Leaders, 1)
	assert.Equal(t, "Jane Doe", profile.Leaders[0].Name)
	assert.Equal(t, "President", profile.Leaders[0].Position)
	assert.Equal(t, "The Group", profile.Leaders[0].Organization)
	assert.Equal(t, "https://src.org/leaders", profile.Leaders[0].SourceURL)
	assert.Equal(t, "https://src.org/leaders", profile.Provenance["leader:jane doe:position"])
}

func TestMergeLeadersGroupsByNormalizedName(t *testing.T) {
	t.Parallel()

	r := New(0)
	profile, _ := r.Apply(nil, "The Group", model.Extraction{
		Leaders: []model.LeaderCandidate{
			leader("Jane Doe", "President", 0.6, baseTime),
			leader("jane  doe", "Chairwoman", 0.9, baseTime),
		},
	})

	require.Len(t, profile.Leaders, 1)
	assert.Equal(t, "Chairwoman", profile.Leaders[0].Position)
}

func TestMergeLeadersKeepsStoredCasing(t *testing.T) {
	t.Parallel()

	existing := &model.OrganizationProfile{
		Name:       "The Group",
		Provenance: map[string]string{},
		Leaders:    []model.LeaderRecord{{Name: "Jane Doe", Position: "Chair"}},
	}

	r := New(0)
	profile, _ := r.Apply(existing, "The Group", model.Extraction{
		Leaders: []model.LeaderCandidate{leader("JANE DOE", "Chairwoman", 0.9, baseTime)},
	})

	require.Len(t, profile.Leaders, 1)
	// The record keeps its stored casing while the field updates.
	assert.Equal(t, "Jane Doe", profile.Leaders[0].Name)
	assert.Equal(t, "Chairwoman", profile.Leaders[0].Position)
}

func TestMergeLeadersRetainsAbsentLeaders(t *testing.T) {
	t.Parallel()

	existing := &model.OrganizationProfile{
		Name:       "The Group",
		Provenance: map[string]string{},
		Leaders: []model.LeaderRecord{
			{Name: "Alice Old", Position: "Treasurer"},
		},
	}

	r := New(0)
	profile, _ := r.Apply(existing, "The Group", model.Extraction{
		Leaders: []model.LeaderCandidate{leader("Bob New", "Director", 0.9, baseTime)},
	})

	require.Len(t, profile.Leaders, 2)
	assert.Equal(t, "Alice Old", profile.Leaders[0].Name)
	assert.Equal(t, "Bob New", profile.Leaders[1].Name)
}

func TestMergeLeadersSupersededRemoves(t *testing.T) {
	t.Parallel()

	existing := &model.OrganizationProfile{
		Name:       "The Group",
		Provenance: map[string]string{},
		Leaders:    []model.LeaderRecord{{Name: "Jane Doe", Position: "Chair"}},
	}

	superseded := leader("Jane Doe", "", 0.9, baseTime)
	superseded.Superseded = true

	r := New(0)
	profile, updated := r.Apply(existing, "The Group", model.Extraction{
		Leaders: []model.LeaderCandidate{superseded},
	})

	assert.Positive(t, updated)
	assert.Empty(t, profile.Leaders)
}

func TestMergeLeadersSupersededDropsProvenance(t *testing.T) {
	t.Parallel()

	existing := &model.OrganizationProfile{
		Name: "The Group",
		Provenance: map[string]string{
			"leader:jane doe:position":   "https://old.org/leaders",
			"leader:jane doe:background": "https://old.org/bio",
			"leader:bob kept:position":   "https://old.org/leaders",
			"description":                "https://old.org/about",
		},
		Leaders: []model.LeaderRecord{
			{Name: "Bob Kept", Position: "Treasurer"},
			{Name: "Jane Doe", Position: "Chair"},
		},
	}

	superseded := leader("Jane Doe", "", 0.9, baseTime)
	superseded.Superseded = true

	r := New(0)
	profile, _ := r.Apply(existing, "The Group", model.Extraction{
		Leaders: []model.LeaderCandidate{superseded},
	})

	require.Len(t, profile.Leaders, 1)
	assert.Equal(t, "Bob Kept", profile.Leaders[0].Name)
	// The departed leader's citations leave with the record.
	assert.NotContains(t, profile.Provenance, "leader:jane doe:position")
	assert.NotContains(t, profile.Provenance, "leader:jane doe:background")
	assert.Equal(t, "https://old.org/leaders", profile.Provenance["leader:bob kept:position"])
	assert.Equal(t, "https://old.org/about", profile.Provenance["description"])
}

func TestMergeLeadersSupersededUnknownIsNoop(t *testing.T) {
	t.Parallel()

	superseded := leader("Nobody Known", "", 0.9, baseTime)
	superseded.Superseded = true

	r := New(0)
	profile, updated := r.Apply(nil, "The Group", model.Extraction{
		Leaders: []model.LeaderCandidate{superseded},
	})

	assert.Zero(t, updated)
	assert.Empty(t, profile.Leaders)
}

func TestMergeLeadersFloorFiltered(t *testing.T) {
	t.Parallel()

	r := New(0.3)
	profile, updated := r.Apply(nil, "The Group", model.Extraction{
		Leaders: []model.LeaderCandidate{leader("Jane Doe", "President", 0.1, baseTime)},
	})

	assert.Zero(t, updated)
	assert.Empty(t, profile.Leaders)
}

func TestMergeLeadersFieldByField(t *testing.T) {
	t.Parallel()

	a := leader("Jane Doe", "President", 0.9, baseTime)
	a.Education = "State University"
	b := leader("Jane Doe", "", 0.95, baseTime)
	b.Background = "Former city council member"

	r := New(0)
	profile, _ := r.Apply(nil, "The Group", model.Extraction{
		Leaders: []model.LeaderCandidate{a, b},
	})

	require.Len(t, profile.Leaders, 1)
	l := profile.Leaders[0]
	// Each sub-field takes its own best candidate.
	assert.Equal(t, "President", l.Position)
	assert.Equal(t, "State University", l.Education)
	assert.Equal(t, "Former city council member", l.Background)
}

func TestMergeLeadersSortedByName(t *testing.T) {
	t.Parallel()

	r := New(0)
	profile, _ := r.Apply(nil, "The Group", model.Extraction{
		Leaders: []model.LeaderCandidate{
			leader("Zed Last", "Member", 0.9, baseTime),
			leader("Ann First", "Member", 0.9, baseTime),
		},
	})

	require.Len(t, profile.Leaders, 2)
	assert.Equal(t, "Ann First", profile.Leaders[0].Name)
	assert.Equal(t, "Zed Last", profile.Leaders[1].Name)
}
