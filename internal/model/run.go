package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStats counts what one pipeline run actually did, stage by stage.
type RunStats struct {
	SearchResults    int `json:"search_results"`
	DocumentsFetched int `json:"documents_fetched"`
	DocumentsFailed  int `json:"documents_failed"`
	FactsExtracted   int `json:"facts_extracted"`
	LeadersExtracted int `json:"leaders_extracted"`
	NewsExtracted    int `json:"news_extracted"`
	FieldsUpdated    int `json:"fields_updated"`
}

// RunResult is the outcome of one aggregation run for one entity.
type RunResult struct {
	RunID      string               `json:"run_id"`
	EntityName string               `json:"entity_name"`
	Profile    *OrganizationProfile `json:"profile,omitempty"`
	Stats      RunStats             `json:"stats"`
	Degraded   bool                 `json:"degraded,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}
