package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// FetchStatus describes the outcome of fetching one URL.
type FetchStatus string

const (
	FetchOK      FetchStatus = "ok"
	FetchTimeout FetchStatus = "timeout"
	FetchBlocked FetchStatus = "blocked"
	FetchEmpty   FetchStatus = "empty"
)

// RawDocument is the cleaned text of one fetched page. Only documents
// with Status == FetchOK carry usable content; the rest are kept so the
// pipeline can report what it tried.
type RawDocument struct {
	URL         string      `json:"url"`
	Title       string      `json:"title,omitempty"`
	ContentText string      `json:"content_text,omitempty"`
	ContentHash string      `json:"content_hash,omitempty"`
	Status      FetchStatus `json:"status"`
	FetchedAt   time.Time   `json:"fetched_at"`
	Truncated   bool        `json:"truncated,omitempty"`
}

// Usable reports whether the document carries content worth extracting.
func (d *RawDocument) Usable() bool {
	return d.Status == FetchOK && d.ContentText != ""
}

// HashContent returns the hex SHA-256 of the cleaned text, used to
// skip re-extraction of byte-identical pages.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
