package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/tubebench/internal/domain"
)

func TestDecodeCategorization_Shapes(t *testing.T) {
	want := domain.Categorization{
		Niche:      "Tech",
		Subniche:   "Reviews",
		Microniche: "budget phones",
		Category:   "Education",
		Format:     "Review",
	}
	flat := `{"niche":"Tech","subniche":"Reviews","microniche":"budget phones","category":"Education","format":"Review"}`

	tests := []struct {
		name string
		raw  string
	}{
		{"direct object", flat},
		{"categorization wrapper", `{"categorization":` + flat + `}`},
		{"output object", `{"output":` + flat + `}`},
		{"output string", `{"output":"{\"niche\":\"Tech\",\"subniche\":\"Reviews\",\"microniche\":\"budget phones\",\"category\":\"Education\",\"format\":\"Review\"}"}`},
		{"output categorization object", `{"output":{"categorization":` + flat + `}}`},
		{"output categorization string", `{"output":"{\"categorization\":{\"niche\":\"Tech\",\"subniche\":\"Reviews\",\"microniche\":\"budget phones\",\"category\":\"Education\",\"format\":\"Review\"}}"}`},
		{"json string", `"{\"niche\":\"Tech\",\"subniche\":\"Reviews\",\"microniche\":\"budget phones\",\"category\":\"Education\",\"format\":\"Review\"}"`},
		{"json fence", "```json\n" + flat + "\n```"},
		{"bare fence", "```\n" + flat + "\n```"},
		{"surrounding prose", "Sure! Here is the result:\n" + flat + "\nLet me know if you need more."},
		{"padded values", `{"niche":"  Tech ","subniche":"Reviews","microniche":"budget phones","category":"Education","format":"Review"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCategorization(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, want, *got)
		})
	}
}

func TestDecodeCategorization_WrapperWinsOverFlatFields(t *testing.T) {
	got, err := DecodeCategorization(`{"niche":"Flat","categorization":{"niche":"Wrapped"}}`)
	require.NoError(t, err)
	assert.Equal(t, "Wrapped", got.Niche)
}

func TestDecodeCategorization_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace", "   \n"},
		{"prose only", "I cannot categorize this channel."},
		{"empty niche", `{"niche":"","category":"Education"}`},
		{"wrong types", `{"niche":42}`},
		{"null wrapper", `{"categorization":null}`},
		{"truncated", `{"niche":"Tech"`},
		{"nested too deep", `{"output":{"categorization":{"categorization":{"niche":"Tech"}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCategorization(tt.raw)
			assert.Nil(t, got)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "want *ParseError, got %v", err)
		})
	}
}

func TestParseError_TruncatesRaw(t *testing.T) {
	raw := strings.Repeat("x", 500)
	_, err := DecodeCategorization(raw)
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 203, len(pe.Raw))
	assert.True(t, strings.HasSuffix(pe.Raw, "..."))
}

func TestExtractJSONObject(t *testing.T) {
	obj, ok := extractJSONObject(`prefix {"a":"}{","b":{"c":1}} suffix {"d":2}`)
	require.True(t, ok)
	assert.Equal(t, `{"a":"}{","b":{"c":1}}`, obj)

	_, ok = extractJSONObject(`no object {here`)
	assert.False(t, ok)
}

func TestApplyVocabulary(t *testing.T) {
	vocab := domain.Vocabulary{
		Niches:     []string{"Tech", "Food"},
		Subniches:  []string{"Reviews", "Recipes"},
		Categories: []string{"Education", "Entertainment"},
		Formats:    []string{"Review", "Tutorial"},
	}

	t.Run("canonicalizes case", func(t *testing.T) {
		got, err := ApplyVocabulary(domain.Categorization{
			Niche: "tech", Subniche: "REVIEWS", Microniche: "anything goes", Category: "education", Format: "review",
		}, vocab)
		require.NoError(t, err)
		assert.Equal(t, domain.Categorization{
			Niche: "Tech", Subniche: "Reviews", Microniche: "anything goes", Category: "Education", Format: "Review",
		}, got)
	})

	t.Run("rejects values outside the lists", func(t *testing.T) {
		_, err := ApplyVocabulary(domain.Categorization{
			Niche: "Gaming", Subniche: "Reviews", Category: "Education", Format: "Vlog",
		}, vocab)
		var ve *VocabularyError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, []VocabularyViolation{
			{Kind: domain.TaxonomyNiche, Value: "Gaming"},
			{Kind: domain.TaxonomyFormat, Value: "Vlog"},
		}, ve.Violations)
		assert.Contains(t, err.Error(), `niche "Gaming"`)
	})

	t.Run("empty value is a violation when the list is set", func(t *testing.T) {
		_, err := ApplyVocabulary(domain.Categorization{
			Niche: "Tech", Subniche: "Reviews", Category: "Education",
		}, vocab)
		var ve *VocabularyError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, domain.TaxonomyFormat, ve.Violations[0].Kind)
	})

	t.Run("empty list accepts anything", func(t *testing.T) {
		in := domain.Categorization{Niche: "Gaming", Subniche: "Speedruns", Category: "Fun", Format: "Stream"}
		got, err := ApplyVocabulary(in, domain.Vocabulary{})
		require.NoError(t, err)
		assert.Equal(t, in, got)
	})
}
