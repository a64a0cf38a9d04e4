package domain

import (
	"strings"
	"time"
)

// TaxonomyKind names one of the closed vocabularies a categorization draws from.
type TaxonomyKind string

const (
	TaxonomyNiche    TaxonomyKind = "niche"
	TaxonomySubniche TaxonomyKind = "subniche"
	TaxonomyCategory TaxonomyKind = "category"
	TaxonomyFormat   TaxonomyKind = "format"
)

// TaxonomyKinds lists every validated kind. Microniche is free text.
var TaxonomyKinds = []TaxonomyKind{TaxonomyNiche, TaxonomySubniche, TaxonomyCategory, TaxonomyFormat}

// Valid reports whether k is a known kind.
func (k TaxonomyKind) Valid() bool {
	for _, kind := range TaxonomyKinds {
		if kind == k {
			return true
		}
	}
	return false
}

// TaxonomyTerm is one allowed value of a vocabulary.
type TaxonomyTerm struct {
	ID        uint         `gorm:"primaryKey" json:"-"`
	Kind      TaxonomyKind `gorm:"type:text;not null;uniqueIndex:idx_taxonomy_kind_value" json:"kind"`
	Value     string       `gorm:"type:text;not null;uniqueIndex:idx_taxonomy_kind_value" json:"value"`
	CreatedAt time.Time    `json:"created_at"`
}

// TableName returns the database table name for TaxonomyTerm.
func (TaxonomyTerm) TableName() string {
	return "taxonomy_terms"
}

// Vocabulary groups the allowed values per kind.
type Vocabulary struct {
	Niches     []string `json:"niches"`
	Subniches  []string `json:"subniches"`
	Categories []string `json:"categories"`
	Formats    []string `json:"formats"`
}

// NewVocabulary groups terms by kind, preserving their order.
func NewVocabulary(terms []TaxonomyTerm) Vocabulary {
	var v Vocabulary
	for _, t := range terms {
		switch t.Kind {
		case TaxonomyNiche:
			v.Niches = append(v.Niches, t.Value)
		case TaxonomySubniche:
			v.Subniches = append(v.Subniches, t.Value)
		case TaxonomyCategory:
			v.Categories = append(v.Categories, t.Value)
		case TaxonomyFormat:
			v.Formats = append(v.Formats, t.Value)
		}
	}
	return v
}

// List returns the allowed values for kind.
func (v Vocabulary) List(kind TaxonomyKind) []string {
	switch kind {
	case TaxonomyNiche:
		return v.Niches
	case TaxonomySubniche:
		return v.Subniches
	case TaxonomyCategory:
		return v.Categories
	case TaxonomyFormat:
		return v.Formats
	}
	return nil
}

// Canonical looks value up case-insensitively and returns the stored spelling.
// An empty list for kind accepts any value unchanged.
func (v Vocabulary) Canonical(kind TaxonomyKind, value string) (string, bool) {
	list := v.List(kind)
	if len(list) == 0 {
		return value, true
	}
	needle := strings.TrimSpace(value)
	for _, allowed := range list {
		if strings.EqualFold(allowed, needle) {
			return allowed, true
		}
	}
	return "", false
}

// Contains reports whether value belongs to the vocabulary for kind.
func (v Vocabulary) Contains(kind TaxonomyKind, value string) bool {
	_, ok := v.Canonical(kind, value)
	return ok
}

// IsEmpty reports whether no kind has any allowed values.
func (v Vocabulary) IsEmpty() bool {
	return len(v.Niches) == 0 && len(v.Subniches) == 0 && len(v.Categories) == 0 && len(v.Formats) == 0
}
