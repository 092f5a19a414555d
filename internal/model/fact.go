package model

import "time"

// CandidateFact is one proposed value for a scalar profile field,
// produced by extraction and consumed by reconciliation. Facts are
// evidence, not truth: several facts for the same (EntityKey, FieldName)
// pair compete and the reconciler picks exactly one winner.
type CandidateFact struct {
	EntityKey       string    `json:"entity_key"`
	FieldName       string    `json:"field_name"`
	Value           string    `json:"value"`
	Confidence      float64   `json:"confidence"`
	SourceURL       string    `json:"source_url"`
	SourceFetchedAt time.Time `json:"source_fetched_at"`
	ExtractedAt     time.Time `json:"extracted_at"`
}

// LeaderCandidate is one proposed leader extracted from a document.
// Candidates with the same normalized Name are grouped and merged
// field-by-field; Superseded marks the person as no longer holding
// the role, which replaces rather than merges.
type LeaderCandidate struct {
	Name             string    `json:"name"`
	Position         string    `json:"position,omitempty"`
	Background       string    `json:"background,omitempty"`
	Education        string    `json:"education,omitempty"`
	PoliticalHistory string    `json:"political_history,omitempty"`
	Achievements     string    `json:"achievements,omitempty"`
	Confidence       float64   `json:"confidence"`
	SourceURL        string    `json:"source_url"`
	SourceFetchedAt  time.Time `json:"source_fetched_at"`
	Superseded       bool      `json:"superseded,omitempty"`
}

// NewsCandidate is one proposed news item extracted from a document.
type NewsCandidate struct {
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	SourceURL   string     `json:"source_url"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Extraction is everything pulled out of one document batch for a
// single entity.
type Extraction struct {
	Facts   []CandidateFact
	Leaders []LeaderCandidate
	News    []NewsCandidate
}

// Merge appends another extraction's output into e.
func (e *Extraction) Merge(other Extraction) {
	e.Facts = append(e.Facts, other.Facts...)
	e.Leaders = append(e.Leaders, other.Leaders...)
	e.News = append(e.News, other.News...)
}
