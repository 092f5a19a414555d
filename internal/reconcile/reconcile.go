// Package reconcile merges candidate facts into stored profiles under a
// deterministic confidence policy.
package reconcile

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/civicgraph/orgscope/internal/model"
)

// DefaultConfidenceFloor rejects weak candidates outright.
const DefaultConfidenceFloor = 0.3

// Reconciler applies extraction output to a profile.
type Reconciler struct {
	floor float64
}

// New creates a Reconciler. A non-positive floor falls back to the
// default.
func New(floor float64) *Reconciler {
	if floor <= 0 {
		floor = DefaultConfidenceFloor
	}
	return &Reconciler{floor: floor}
}

// Apply merges ext into existing (which may be nil for a first run) and
// returns the reconciled profile plus the number of scalar fields,
// leader fields, and news items that changed. The input profile is not
// mutated. Output is deterministic for a given candidate set regardless
// of arrival order. UpdatedAt moves only when something changed, so a
// no-change run leaves the profile byte-identical.
func (r *Reconciler) Apply(existing *model.OrganizationProfile, name string, ext model.Extraction) (*model.OrganizationProfile, int) {
	profile := cloneProfile(existing, name)
	entityKey := model.NormalizeName(name)
	updated := 0

	for _, field := range model.ScalarFields() {
		cands := collectField(ext.Facts, entityKey, field, r.floor)
		value, sourceURL, changed := selectScalar(cands, profile.Field(field))
		if !changed {
			continue
		}
		profile.SetField(field, value)
		profile.Provenance[field] = sourceURL
		updated++
	}

	updated += r.mergeLeaders(profile, ext.Leaders)
	updated += mergeNews(profile, ext.News)

	if updated > 0 || existing == nil {
		profile.UpdatedAt = time.Now().UTC()
	}
	if updated > 0 {
		zap.L().Info("profile reconciled",
			zap.String("organization", profile.Name),
			zap.Int("fields_updated", updated),
		)
	}
	return profile, updated
}

// scalarCandidate is one competing value with its evidence.
type scalarCandidate struct {
	value     string
	conf      float64
	fetchedAt time.Time
	sourceURL string
}

func collectField(facts []model.CandidateFact, entityKey, field string, floor float64) []scalarCandidate {
	var out []scalarCandidate
	for _, f := range facts {
		if f.EntityKey != entityKey || f.FieldName != field || f.Value == "" {
			continue
		}
		if f.Confidence < floor {
			continue
		}
		out = append(out, scalarCandidate{
			value:     f.Value,
			conf:      f.Confidence,
			fetchedAt: f.SourceFetchedAt,
			sourceURL: f.SourceURL,
		})
	}
	return out
}

// selectScalar picks the winning value for one field: highest
// confidence, then most recently fetched source, then the existing
// stored value if it ties (stability bias), then the lexicographically
// first value. Returns changed=false when the existing value stands.
func selectScalar(cands []scalarCandidate, existing string) (value, sourceURL string, changed bool) {
	if len(cands) == 0 {
		return existing, "", false
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].conf != cands[j].conf {
			return cands[i].conf > cands[j].conf
		}
		if !cands[i].fetchedAt.Equal(cands[j].fetchedAt) {
			return cands[i].fetchedAt.After(cands[j].fetchedAt)
		}
		return cands[i].value < cands[j].value
	})

	// The equivalence class at the top shares confidence and recency.
	top := cands[0]
	for _, c := range cands {
		if c.conf != top.conf || !c.fetchedAt.Equal(top.fetchedAt) {
			break
		}
		if c.value == existing {
			return existing, "", false
		}
	}

	if top.value == existing {
		return existing, "", false
	}
	return top.value, top.sourceURL, true
}

func cloneProfile(existing *model.OrganizationProfile, name string) *model.OrganizationProfile {
	if existing == nil {
		return &model.OrganizationProfile{
			Name:       name,
			Provenance: make(map[string]string),
			CreatedAt:  time.Now().UTC(),
		}
	}

	p := *existing
	p.Leaders = append([]model.LeaderRecord(nil), existing.Leaders...)
	p.News = append([]model.NewsItem(nil), existing.News...)
	p.Provenance = make(map[string]string, len(existing.Provenance))
	for k, v := range existing.Provenance {
		p.Provenance[k] = v
	}
	return &p
}
