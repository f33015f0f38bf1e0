package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TagCounts maps a species name to its detected instance count. A present
// entry is always >= 1; a species with count 0 is simply absent.
type TagCounts map[string]int

// TagSet is the tags field of a media record. New records always carry the
// canonical mapping form, but rows written before counts existed hold a bare
// list of species names; reads tolerate both shapes.
type TagSet struct {
	Counts TagCounts
	// Legacy holds the list-shaped names of an old row. Nil for canonical
	// rows.
	Legacy []string
}

// NewTagSet creates a canonical tag set from counts
func NewTagSet(counts TagCounts) TagSet {
	if counts == nil {
		counts = make(TagCounts)
	}
	return TagSet{Counts: counts}
}

// Count returns the stored count for species, 0 if absent. Legacy rows have
// no counts, so every species reads as 0.
func (t TagSet) Count(species string) int {
	return t.Counts[species]
}

// Contains reports whether species is present as an exact tag name in
// either shape. Unlike Has, no case folding or trimming is applied.
func (t TagSet) Contains(species string) bool {
	if _, ok := t.Counts[species]; ok {
		return true
	}
	for _, s := range t.Legacy {
		if s == species {
			return true
		}
	}
	return false
}

// Has reports whether species matches any tag, case-insensitively and
// ignoring surrounding whitespace, across both shapes.
func (t TagSet) Has(species string) bool {
	want := strings.ToLower(strings.TrimSpace(species))
	for s := range t.Counts {
		if strings.ToLower(strings.TrimSpace(s)) == want {
			return true
		}
	}
	for _, s := range t.Legacy {
		if strings.ToLower(strings.TrimSpace(s)) == want {
			return true
		}
	}
	return false
}

// Species returns every tag name present in either shape
func (t TagSet) Species() []string {
	out := make([]string, 0, len(t.Counts)+len(t.Legacy))
	for s := range t.Counts {
		out = append(out, s)
	}
	out = append(out, t.Legacy...)
	return out
}

// IsEmpty reports whether no tags are present
func (t TagSet) IsEmpty() bool {
	return len(t.Counts) == 0 && len(t.Legacy) == 0
}

// MarshalJSON always emits the canonical mapping form
func (t TagSet) MarshalJSON() ([]byte, error) {
	counts := t.Counts
	if counts == nil {
		counts = make(TagCounts)
	}
	return json.Marshal(counts)
}

// UnmarshalJSON accepts either the mapping form or the legacy list form
func (t *TagSet) UnmarshalJSON(data []byte) error {
	var counts TagCounts
	if err := json.Unmarshal(data, &counts); err == nil {
		t.Counts = counts
		t.Legacy = nil
		return nil
	}

	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		t.Counts = make(TagCounts)
		t.Legacy = names
		return nil
	}

	return fmt.Errorf("tags are neither a mapping nor a list")
}

// MediaRecord is the metadata row for one stored media object, keyed by its
// immutable file URL.
type MediaRecord struct {
	FileURL      string `json:"file_url"`
	Tags         TagSet `json:"tags"`
	FileType     string `json:"file_type"`
	Uploader     string `json:"uploader"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Link returns the URL a query result should carry: the thumbnail when one
// exists, otherwise the primary URL.
func (m *MediaRecord) Link() string {
	if m.ThumbnailURL != "" {
		return m.ThumbnailURL
	}
	return m.FileURL
}
