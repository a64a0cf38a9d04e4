package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/timmy/tubebench/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VocabularyRepository reads and seeds the closed taxonomy vocabularies.
type VocabularyRepository struct {
	db *gorm.DB
}

// NewVocabularyRepository creates a new VocabularyRepository.
func NewVocabularyRepository(db *gorm.DB) *VocabularyRepository {
	return &VocabularyRepository{db: db}
}

// Load returns every allowed value grouped by kind, in insertion order.
func (r *VocabularyRepository) Load(ctx context.Context) (domain.Vocabulary, error) {
	var terms []domain.TaxonomyTerm
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&terms).Error; err != nil {
		return domain.Vocabulary{}, err
	}
	return domain.NewVocabulary(terms), nil
}

// ImportTerms inserts terms that are not present yet and returns how many were added.
func (r *VocabularyRepository) ImportTerms(ctx context.Context, terms []domain.TaxonomyTerm) (int, error) {
	added := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range terms {
			t.Value = strings.TrimSpace(t.Value)
			if t.Value == "" {
				continue
			}
			if !t.Kind.Valid() {
				return fmt.Errorf("unknown taxonomy kind %q", t.Kind)
			}
			term := domain.TaxonomyTerm{Kind: t.Kind, Value: t.Value}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "kind"}, {Name: "value"}},
				DoNothing: true,
			}).Create(&term)
			if res.Error != nil {
				return res.Error
			}
			added += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}
