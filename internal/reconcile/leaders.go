package reconcile

import (
	"sort"
	"strings"

	"github.com/civicgraph/orgscope/internal/model"
)

// mergeLeaders reconciles leader candidates into the profile's leader
// records. Candidates are grouped by normalized name; each group merges
// field-by-field into its existing counterpart under the scalar policy.
// Existing leaders absent from the candidate set are retained; a group
// whose best candidate is marked superseded removes the record instead.
// Returns the number of leader sub-fields that changed.
func (r *Reconciler) mergeLeaders(profile *model.OrganizationProfile, cands []model.LeaderCandidate) int {
	if len(cands) == 0 {
		return 0
	}

	groups := make(map[string][]model.LeaderCandidate)
	var order []string
	for _, c := range cands {
		if c.Confidence < r.floor {
			continue
		}
		key := model.NormalizeName(c.Name)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}
	// Group processing order must not depend on candidate arrival order.
	sort.Strings(order)

	existingIdx := make(map[string]int, len(profile.Leaders))
	for i, l := range profile.Leaders {
		existingIdx[model.NormalizeName(l.Name)] = i
	}

	updated := 0
	removed := make(map[string]bool)

	for _, key := range order {
		group := groups[key]
		best := bestCandidate(group)

		idx, exists := existingIdx[key]
		if best.Superseded {
			if exists {
				removed[key] = true
				dropLeaderProvenance(profile.Provenance, key)
				updated++
			}
			continue
		}

		if !exists {
			rec := model.LeaderRecord{
				// New record: the best candidate's casing becomes canonical.
				Name:         best.Name,
				Organization: profile.Name,
			}
			updated += r.mergeLeaderFields(&rec, key, group, profile.Provenance)
			profile.Leaders = append(profile.Leaders, rec)
			existingIdx[key] = len(profile.Leaders) - 1
			updated++
			continue
		}

		// Existing record keeps its stored casing.
		updated += r.mergeLeaderFields(&profile.Leaders[idx], key, group, profile.Provenance)
	}

	if len(removed) > 0 {
		kept := profile.Leaders[:0]
		for _, l := range profile.Leaders {
			if !removed[model.NormalizeName(l.Name)] {
				kept = append(kept, l)
			}
		}
		profile.Leaders = kept
	}

	sort.Slice(profile.Leaders, func(i, j int) bool {
		return model.NormalizeName(profile.Leaders[i].Name) < model.NormalizeName(profile.Leaders[j].Name)
	})
	return updated
}

// dropLeaderProvenance removes the provenance entries of a leader that
// left the profile so reports do not cite sources for absent people.
func dropLeaderProvenance(provenance map[string]string, key string) {
	prefix := "leader:" + key + ":"
	for k := range provenance {
		if strings.HasPrefix(k, prefix) {
			delete(provenance, k)
		}
	}
}

// leaderFields maps sub-field names to accessors on a LeaderRecord.
var leaderFields = []struct {
	name string
	get  func(*model.LeaderRecord) string
	set  func(*model.LeaderRecord, string)
	cand func(model.LeaderCandidate) string
}{
	{"position", func(l *model.LeaderRecord) string { return l.Position }, func(l *model.LeaderRecord, v string) { l.Position = v }, func(c model.LeaderCandidate) string { return c.Position }},
	{"background", func(l *model.LeaderRecord) string { return l.Background }, func(l *model.LeaderRecord, v string) { l.Background = v }, func(c model.LeaderCandidate) string { return c.Background }},
	{"education", func(l *model.LeaderRecord) string { return l.Education }, func(l *model.LeaderRecord, v string) { l.Education = v }, func(c model.LeaderCandidate) string { return c.Education }},
	{"political_history", func(l *model.LeaderRecord) string { return l.PoliticalHistory }, func(l *model.LeaderRecord, v string) { l.PoliticalHistory = v }, func(c model.LeaderCandidate) string { return c.PoliticalHistory }},
	{"achievements", func(l *model.LeaderRecord) string { return l.Achievements }, func(l *model.LeaderRecord, v string) { l.Achievements = v }, func(c model.LeaderCandidate) string { return c.Achievements }},
}

// mergeLeaderFields applies the scalar policy to each sub-field of one
// leader group. Provenance entries are keyed "leader:<key>:<field>".
func (r *Reconciler) mergeLeaderFields(rec *model.LeaderRecord, key string, group []model.LeaderCandidate, provenance map[string]string) int {
	updated := 0
	for _, lf := range leaderFields {
		var cands []scalarCandidate
		for _, c := range group {
			v := lf.cand(c)
			if v == "" {
				continue
			}
			cands = append(cands, scalarCandidate{
				value:     v,
				conf:      c.Confidence,
				fetchedAt: c.SourceFetchedAt,
				sourceURL: c.SourceURL,
			})
		}
		value, sourceURL, changed := selectScalar(cands, lf.get(rec))
		if !changed {
			continue
		}
		lf.set(rec, value)
		provenance["leader:"+key+":"+lf.name] = sourceURL
		updated++
	}

	if rec.SourceURL == "" {
		best := bestCandidate(group)
		rec.SourceURL = best.SourceURL
	}
	return updated
}

// bestCandidate returns the group's strongest candidate: highest
// confidence, then most recent source, then lexicographically smallest
// name for determinism.
func bestCandidate(group []model.LeaderCandidate) model.LeaderCandidate {
	best := group[0]
	for _, c := range group[1:] {
		switch {
		case c.Confidence > best.Confidence:
			best = c
		case c.Confidence == best.Confidence && c.SourceFetchedAt.After(best.SourceFetchedAt):
			best = c
		case c.Confidence == best.Confidence && c.SourceFetchedAt.Equal(best.SourceFetchedAt) && c.Name < best.Name:
			best = c
		}
	}
	return best
}
