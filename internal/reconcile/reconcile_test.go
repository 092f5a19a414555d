package reconcile

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicgraph/orgscope/internal/model"
)

var baseTime = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func fact(field, value string, conf float64, fetched time.Time) model.CandidateFact {
	return model.CandidateFact{
		EntityKey:       "the group",
		FieldName:       field,
		Value:           value,
		Confidence:      conf,
		SourceURL:       "https://src.org/" + value,
		SourceFetchedAt: fetched,
	}
}

func TestApplyNewProfile(t *testing.T) {
	t.Parallel()

	r := New(0)
	ext := model.Extraction{Facts: []model.CandidateFact{
		fact("description", "A watchdog group", 0.9, baseTime),
		fact("founding_date", "1970", 0.8, baseTime),
	}}

	profile, updated := r.Apply(nil, "The Group", ext)

	assert.Equal(t, 2, updated)
	assert.Equal(t, "The Group", profile.Name)
	assert.Equal(t, "A watchdog group", profile.Description)
	assert.Equal(t, "1970", profile.FoundingDate)
	assert.Equal(t, "https://src.org/A watchdog group", profile.Provenance["description"])
	assert.False(t, profile.UpdatedAt.IsZero())
}

func TestApplyHighestConfidenceWins(t *testing.T) {
	t.Parallel()

	r := New(0)
	ext := model.Extraction{Facts: []model.CandidateFact{
		fact("headquarters", "Denver", 0.9, baseTime),
		fact("headquarters", "Austin", 0.4, baseTime),
		fact("headquarters", "Boston", 0.6, baseTime),
	}}

	profile, updated := r.Apply(nil, "The Group", ext)
	assert.Equal(t, 1, updated)
	assert.Equal(t, "Denver", profile.Headquarters)
}

func TestApplyRecencyBreaksConfidenceTie(t *testing.T) {
	t.Parallel()

	r := New(0)
	ext := model.Extraction{Facts: []model.CandidateFact{
		fact("headquarters", "Older", 0.8, baseTime),
		fact("headquarters", "Newer", 0.8, baseTime.Add(time.Hour)),
	}}

	profile, _ := r.Apply(nil, "The Group", ext)
	assert.Equal(t, "Newer", profile.Headquarters)
}

func TestApplyStabilityBiasKeepsExistingOnTie(t *testing.T) {
	t.Parallel()

	existing := &model.OrganizationProfile{
		Name:         "The Group",
		Headquarters: "Denver",
		Provenance:   map[string]string{"headquarters": "https://old.org"},
	}

	r := New(0)
	ext := model.Extraction{Facts: []model.CandidateFact{
		fact("headquarters", "Austin", 0.8, baseTime),
		fact("headquarters", "Denver", 0.8, baseTime),
	}}

	profile, updated := r.Apply(existing, "The Group", ext)
	assert.Zero(t, updated)
	assert.Equal(t, "Denver", profile.Headquarters)
	// Unchanged fields keep their original provenance.
	assert.Equal(t, "https://old.org", profile.Provenance["headquarters"])
}

func TestApplyLexicographicTieBreak(t *testing.T) {
	t.Parallel()

	r := New(0)
	ext := model.Extraction{Facts: []model.CandidateFact{
		fact("headquarters", "Boston", 0.8, baseTime),
		fact("headquarters", "Austin", 0.8, baseTime),
	}}

	profile, _ := r.Apply(nil, "The Group", ext)
	assert.Equal(t, "Austin", profile.Headquarters)
}

func TestApplyConfidenceFloorNeverOverrides(t *testing.T) {
	t.Parallel()

	existing := &model.OrganizationProfile{
		Name:         "The Group",
		Headquarters: "Denver",
		Provenance:   map[string]string{},
	}

	r := New(0.3)
	ext := model.Extraction{Facts: []model.CandidateFact{
		fact("headquarters", "Nowhere", 0.1, baseTime.Add(time.Hour)),
	}}

	profile, updated := r.Apply(existing, "The Group", ext)
	assert.Zero(t, updated)
	assert.Equal(t, "Denver", profile.Headquarters)
}

func TestApplyIgnoresOtherEntities(t *testing.T) {
	t.Parallel()

	other := fact("description", "Someone else", 0.95, baseTime)
	other.EntityKey = "other org"

	r := New(0)
	profile, updated := r.Apply(nil, "The Group", model.Extraction{
		Facts: []model.CandidateFact{other},
	})
	assert.Zero(t, updated)
	assert.Empty(t, profile.Description)
}

func TestApplyOrderIndependent(t *testing.T) {
	t.Parallel()

	facts := []model.CandidateFact{
		fact("headquarters", "Denver", 0.9, baseTime),
		fact("headquarters", "Austin", 0.9, baseTime),
		fact("headquarters", "Boston", 0.7, baseTime.Add(time.Hour)),
		fact("description", "First", 0.6, baseTime),
		fact("description", "Second", 0.6, baseTime),
	}

	r := New(0)
	reference, _ := r.Apply(nil, "The Group", model.Extraction{Facts: facts})

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := append([]model.CandidateFact(nil), facts...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		got, _ := r.Apply(nil, "The Group", model.Extraction{Facts: shuffled})
		assert.Equal(t, reference.Headquarters, got.Headquarters)
		assert.Equal(t, reference.Description, got.Description)
		assert.Equal(t, reference.Provenance["headquarters"], got.Provenance["headquarters"])
	}
}

func TestApplyIdempotent(t *testing.T) {
	t.Parallel()

	ext := model.Extraction{Facts: []model.CandidateFact{
		fact("description", "A watchdog group", 0.9, baseTime),
		fact("headquarters", "Denver", 0.8, baseTime),
	}}

	r := New(0)
	first, updated := r.Apply(nil, "The Group", ext)
	require.Equal(t, 2, updated)

	second, updated := r.Apply(first, "The Group", ext)
	assert.Zero(t, updated)
	assert.Equal(t, first.Description, second.Description)
	assert.Equal(t, first.Headquarters, second.Headquarters)
	// No spurious timestamp churn between identical runs.
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestApplyNoChangeKeepsUpdatedAt(t *testing.T) {
	t.Parallel()

	stamp := baseTime.Add(-24 * time.Hour)
	existing := &model.OrganizationProfile{
		Name:         "The Group",
		Headquarters: "Denver",
		Provenance:   map[string]string{},
		UpdatedAt:    stamp,
	}

	r := New(0)
	profile, updated := r.Apply(existing, "The Group", model.Extraction{
		Facts: []model.CandidateFact{fact("headquarters", "Denver", 0.9, baseTime)},
	})

	assert.Zero(t, updated)
	assert.Equal(t, stamp, profile.UpdatedAt)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	existing := &model.OrganizationProfile{
		Name:         "The Group",
		Headquarters: "Denver",
		Provenance:   map[string]string{"headquarters": "https://old.org"},
		Leaders:      []model.LeaderRecord{{Name: "Jane Doe", Position: "Chair"}},
	}

	r := New(0)
	_, _ = r.Apply(existing, "The Group", model.Extraction{
		Facts: []model.CandidateFact{fact("headquarters", "Austin", 0.99, baseTime)},
		Leaders: []model.LeaderCandidate{{
			Name: "Jane Doe", Position: "Chairwoman", Confidence: 0.9,
			SourceURL: "https://new.org", SourceFetchedAt: baseTime,
		}},
	})

	assert.Equal(t, "Denver", existing.Headquarters)
	assert.Equal(t, "Chair", existing.Leaders[0].Position)
	assert.Equal(t, "https://old.org", existing.Provenance["headquarters"])
}

func TestSelectScalarEmpty(t *testing.T) {
	t.Parallel()

	value, src, changed := selectScalar(nil, "kept")
	assert.Equal(t, "kept", value)
	assert.Empty(t, src)
	assert.False(t, changed)
}
