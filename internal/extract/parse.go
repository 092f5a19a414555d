package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civicgraph/orgscope/internal/model"
)

type rawField struct {
	Value      *string `json:"value"`
	Confidence float64 `json:"confidence"`
	SourceURL  string  `json:"source_url"`
}

type rawLeader struct {
	Name             string  `json:"name"`
	Position         string  `json:"position"`
	Background       string  `json:"background"`
	Education        string  `json:"education"`
	PoliticalHistory string  `json:"political_history"`
	Achievements     string  `json:"achievements"`
	Confidence       float64 `json:"confidence"`
	SourceURL        string  `json:"source_url"`
	Superseded       bool    `json:"superseded"`
}

type rawNews struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	PublishedAt string `json:"published_at"`
	SourceURL   string `json:"source_url"`
}

// parseExtraction parses the model's JSON reply into candidates. The
// parse is field-tolerant: a malformed leader entry or unknown field is
// dropped without discarding the rest of the reply. Candidates citing a
// source_url that was not in the batch are rejected as fabricated.
func parseExtraction(text, entity string, schema *Schema, batch []model.RawDocument) (model.Extraction, error) {
	cleaned := cleanJSON(text)

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &top); err != nil {
		return model.Extraction{}, eris.Wrap(err, "extract: parse reply")
	}

	// Batch URLs are the only legitimate provenance.
	fetchedAt := make(map[string]time.Time, len(batch))
	for _, d := range batch {
		fetchedAt[model.NormalizeURL(d.URL)] = d.FetchedAt
	}

	now := time.Now().UTC()
	var out model.Extraction

	if raw, ok := top["organization"]; ok {
		var org map[string]json.RawMessage
		if err := json.Unmarshal(raw, &org); err == nil {
			for key, rawVal := range org {
				if !schema.Known(key) {
					zap.L().Debug("dropping unknown extraction field",
						zap.String("entity", entity),
						zap.String("field", key),
					)
					continue
				}
				var f rawField
				if err := json.Unmarshal(rawVal, &f); err != nil || f.Value == nil || *f.Value == "" {
					continue
				}
				seenAt, ok := fetchedAt[model.NormalizeURL(f.SourceURL)]
				if !ok {
					zap.L().Warn("dropping fact with fabricated source url",
						zap.String("entity", entity),
						zap.String("field", key),
						zap.String("source_url", f.SourceURL),
					)
					continue
				}
				out.Facts = append(out.Facts, model.CandidateFact{
					EntityKey:       model.NormalizeName(entity),
					FieldName:       key,
					Value:           strings.TrimSpace(*f.Value),
					Confidence:      clampConfidence(f.Confidence),
					SourceURL:       f.SourceURL,
					SourceFetchedAt: seenAt,
					ExtractedAt:     now,
				})
			}
		}
	}

	if raw, ok := top["leaders"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err == nil {
			for _, item := range items {
				var l rawLeader
				if err := json.Unmarshal(item, &l); err != nil || strings.TrimSpace(l.Name) == "" {
					continue
				}
				seenAt := now
				if l.SourceURL != "" {
					at, ok := fetchedAt[model.NormalizeURL(l.SourceURL)]
					if !ok {
						// Fabricated citation: keep the person, drop the claim
						// of provenance.
						l.SourceURL = ""
					} else {
						seenAt = at
					}
				}
				out.Leaders = append(out.Leaders, model.LeaderCandidate{
					Name:             strings.TrimSpace(l.Name),
					Position:         strings.TrimSpace(l.Position),
					Background:       strings.TrimSpace(l.Background),
					Education:        strings.TrimSpace(l.Education),
					PoliticalHistory: strings.TrimSpace(l.PoliticalHistory),
					Achievements:     strings.TrimSpace(l.Achievements),
					Confidence:       clampConfidence(l.Confidence),
					SourceURL:        l.SourceURL,
					SourceFetchedAt:  seenAt,
					Superseded:       l.Superseded,
				})
			}
		}
	}

	if raw, ok := top["news"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err == nil {
			for _, item := range items {
				var n rawNews
				if err := json.Unmarshal(item, &n); err != nil || strings.TrimSpace(n.Title) == "" {
					continue
				}
				if _, ok := fetchedAt[model.NormalizeURL(n.SourceURL)]; !ok {
					continue
				}
				out.News = append(out.News, model.NewsCandidate{
					Title:       strings.TrimSpace(n.Title),
					Summary:     strings.TrimSpace(n.Summary),
					SourceURL:   n.SourceURL,
					PublishedAt: parseNewsDate(n.PublishedAt),
				})
			}
		}
	}

	return out, nil
}

// cleanJSON strips markdown code fences and leading/trailing prose
// around the JSON object in an LLM reply.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func parseNewsDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func lastBatchError(entity string, failures int) error {
	return eris.Errorf("extract: all %d batches failed for %s", failures, entity)
}
