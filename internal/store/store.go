// Package store persists organization profiles in Postgres or SQLite.
package store

import (
	"context"

	"github.com/civicgraph/orgscope/internal/model"
)

// ListFilter specifies criteria for listing profiles.
type ListFilter struct {
	// Query filters by case-insensitive substring of the name.
	Query  string `json:"query,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ProfileStore defines the persistence interface for the pipeline.
type ProfileStore interface {
	// GetProfile returns the stored profile for name, or nil when none
	// exists. Lookup uses normalized-name identity.
	GetProfile(ctx context.Context, name string) (*model.OrganizationProfile, error)

	// UpsertProfile writes an already-reconciled profile atomically,
	// replacing its leader and news collections. The returned profile
	// carries assigned IDs and timestamps.
	UpsertProfile(ctx context.Context, p *model.OrganizationProfile) (*model.OrganizationProfile, error)

	// ListProfiles returns profiles matching the filter, without their
	// leader and news collections.
	ListProfiles(ctx context.Context, filter ListFilter) ([]model.OrganizationProfile, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
