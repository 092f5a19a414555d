package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScalarFieldAccessors(t *testing.T) {
	t.Parallel()

	p := &OrganizationProfile{}
	for i, name := range ScalarFields() {
		value := string(rune('a' + i))
		p.SetField(name, value)
		assert.Equal(t, value, p.Field(name), name)
	}

	assert.Equal(t, p.Description, p.Field(FieldDescription))
	assert.Equal(t, p.Website, p.Field(FieldWebsite))

	// Unknown fields read empty and set as no-ops.
	assert.Empty(t, p.Field("mascot"))
	p.SetField("mascot", "owl")
	assert.Empty(t, p.Field("mascot"))
}

func TestRawDocumentUsable(t *testing.T) {
	t.Parallel()

	ok := RawDocument{Status: FetchOK, ContentText: "text"}
	assert.True(t, ok.Usable())

	empty := RawDocument{Status: FetchOK}
	assert.False(t, empty.Usable())

	blocked := RawDocument{Status: FetchBlocked, ContentText: "text"}
	assert.False(t, blocked.Usable())
}

func TestExtractionMerge(t *testing.T) {
	t.Parallel()

	var e Extraction
	e.Merge(Extraction{
		Facts:   []CandidateFact{{FieldName: "description"}},
		Leaders: []LeaderCandidate{{Name: "Jane Doe"}},
	})
	e.Merge(Extraction{
		News: []NewsCandidate{{Title: "Story"}},
	})

	assert.Len(t, e.Facts, 1)
	assert.Len(t, e.Leaders, 1)
	assert.Len(t, e.News, 1)
}

func TestNewRunID(t *testing.T) {
	t.Parallel()

	a, b := NewRunID(), NewRunID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
