package reconcile

import (
	"sort"

	"github.com/civicgraph/orgscope/internal/model"
)

// maxNewsItems caps the stored news list per profile.
const maxNewsItems = 25

// mergeNews appends news candidates whose URL the profile has not seen,
// then orders the list newest-first. Returns the number of items added.
func mergeNews(profile *model.OrganizationProfile, cands []model.NewsCandidate) int {
	seen := make(map[string]bool, len(profile.News))
	for _, n := range profile.News {
		seen[model.NormalizeURL(n.SourceURL)] = true
	}

	added := 0
	for _, c := range cands {
		key := model.NormalizeURL(c.SourceURL)
		if key == "" || seen[key] || c.Title == "" {
			continue
		}
		seen[key] = true
		added++
		profile.News = append(profile.News, model.NewsItem{
			Organization: profile.Name,
			Title:        c.Title,
			Summary:      c.Summary,
			SourceURL:    c.SourceURL,
			PublishedAt:  c.PublishedAt,
		})
	}

	sort.SliceStable(profile.News, func(i, j int) bool {
		ti, tj := profile.News[i].PublishedAt, profile.News[j].PublishedAt
		switch {
		case ti == nil && tj == nil:
			return profile.News[i].Title < profile.News[j].Title
		case ti == nil:
			return false
		case tj == nil:
			return true
		case !ti.Equal(*tj):
			return ti.After(*tj)
		default:
			return profile.News[i].Title < profile.News[j].Title
		}
	})

	if len(profile.News) > maxNewsItems {
		profile.News = profile.News[:maxNewsItems]
	}
	return added
}
