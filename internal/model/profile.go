// Package model defines the core data types for the research pipeline.
package model

import "time"

// Scalar profile field names. These are the only keys the extractor is
// allowed to emit for the organization itself; leaders and news are
// collection fields with their own types.
const (
	FieldDescription  = "description"
	FieldIdeology     = "ideology"
	FieldFoundingDate = "founding_date"
	FieldHeadquarters = "headquarters"
	FieldWebsite      = "website"
)

// ScalarFields returns the scalar field names in stable order.
func ScalarFields() []string {
	return []string{
		FieldDescription,
		FieldIdeology,
		FieldFoundingDate,
		FieldHeadquarters,
		FieldWebsite,
	}
}

// OrganizationProfile is the golden record for a researched organization.
// Name is the stable identity key; every other field is derived and
// replaceable by later runs.
type OrganizationProfile struct {
	ID           int64          `json:"id,omitempty" db:"id"`
	Name         string         `json:"name" db:"name"`
	Description  string         `json:"description,omitempty" db:"description"`
	Ideology     string         `json:"ideology,omitempty" db:"ideology"`
	FoundingDate string         `json:"founding_date,omitempty" db:"founding_date"`
	Headquarters string         `json:"headquarters,omitempty" db:"headquarters"`
	Website      string         `json:"website,omitempty" db:"website"`
	Leaders      []LeaderRecord `json:"leaders,omitempty"`
	News         []NewsItem     `json:"news,omitempty"`

	// Provenance maps a field name ("ideology", "leader:<name>:position")
	// to the source URL that justified its current value.
	Provenance map[string]string `json:"provenance,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// Field returns the value of a scalar field by name.
func (p *OrganizationProfile) Field(name string) string {
	switch name {
	case FieldDescription:
		return p.Description
	case FieldIdeology:
		return p.Ideology
	case FieldFoundingDate:
		return p.FoundingDate
	case FieldHeadquarters:
		return p.Headquarters
	case FieldWebsite:
		return p.Website
	}
	return ""
}

// SetField sets a scalar field by name. Unknown names are ignored.
func (p *OrganizationProfile) SetField(name, value string) {
	switch name {
	case FieldDescription:
		p.Description = value
	case FieldIdeology:
		p.Ideology = value
	case FieldFoundingDate:
		p.FoundingDate = value
	case FieldHeadquarters:
		p.Headquarters = value
	case FieldWebsite:
		p.Website = value
	}
}

// LeaderRecord is a leader or key member of an organization. The
// (Name, Organization) pair is unique within a profile; re-extraction
// merges into the existing pair rather than duplicating.
type LeaderRecord struct {
	ID               int64  `json:"id,omitempty" db:"id"`
	Name             string `json:"name" db:"name"`
	Position         string `json:"position,omitempty" db:"position"`
	Organization     string `json:"organization" db:"organization"`
	Background       string `json:"background,omitempty" db:"background"`
	Education        string `json:"education,omitempty" db:"education"`
	PoliticalHistory string `json:"political_history,omitempty" db:"political_history"`
	Achievements     string `json:"achievements,omitempty" db:"achievements"`
	SourceURL        string `json:"source_url,omitempty" db:"source_url"`
}

// NewsItem is a recent news article associated with an organization.
type NewsItem struct {
	ID           int64      `json:"id,omitempty" db:"id"`
	Organization string     `json:"organization" db:"organization"`
	Title        string     `json:"title" db:"title"`
	Summary      string     `json:"summary,omitempty" db:"summary"`
	SourceURL    string     `json:"source_url" db:"source_url"`
	PublishedAt  *time.Time `json:"published_at,omitempty" db:"published_at"`
}
