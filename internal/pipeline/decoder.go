package pipeline

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/timmy/tubebench/internal/domain"
)

// responseShape covers every field the tolerated response shapes can carry.
type responseShape struct {
	Categorization json.RawMessage `json:"categorization"`
	Output         json.RawMessage `json:"output"`

	Niche      string `json:"niche"`
	Subniche   string `json:"subniche"`
	Microniche string `json:"microniche"`
	Category   string `json:"category"`
	Format     string `json:"format"`
}

func (s responseShape) direct() *domain.Categorization {
	c := &domain.Categorization{
		Niche:      strings.TrimSpace(s.Niche),
		Subniche:   strings.TrimSpace(s.Subniche),
		Microniche: strings.TrimSpace(s.Microniche),
		Category:   strings.TrimSpace(s.Category),
		Format:     strings.TrimSpace(s.Format),
	}
	if c.IsEmpty() {
		return nil
	}
	return c
}

// DecodeCategorization extracts a categorization from a classifier reply.
// Shapes are tried in order:
//  1. {"categorization": {...}}
//  2. {"niche": ..., ...}
//  3. {"output": {...}} or {"output": "<json>"}, where the inner object may
//     itself be a {"categorization": {...}} wrapper
//  4. a JSON string holding one of the above, decoded one extra level only
//
// Markdown code fences are stripped first, and prose around a single JSON
// object is ignored. A reply yielding no non-empty niche is a *ParseError.
func DecodeCategorization(raw string) (*domain.Categorization, error) {
	text := stripCodeFences(raw)
	if text == "" {
		return nil, newParseError("empty response", raw)
	}

	if c := decodeShapes([]byte(text), 1); c != nil {
		return c, nil
	}
	if obj, ok := extractJSONObject(text); ok && obj != text {
		if c := decodeShapes([]byte(obj), 0); c != nil {
			return c, nil
		}
	}
	return nil, newParseError("no shape yielded a niche", raw)
}

func decodeShapes(data []byte, stringDepth int) *domain.Categorization {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	if data[0] == '"' {
		if stringDepth <= 0 {
			return nil
		}
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil
		}
		return decodeShapes([]byte(stripCodeFences(inner)), stringDepth-1)
	}

	var s responseShape
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	if c := decodeFlat(s.Categorization, false); c != nil {
		return c
	}
	if c := s.direct(); c != nil {
		return c
	}
	return decodeFlat(s.Output, true)
}

// decodeFlat reads a bare categorization object, or a string holding one.
// With unwrap set, a {"categorization": {...}} object is also accepted, one
// level deep.
func decodeFlat(raw json.RawMessage, unwrap bool) *domain.Categorization {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil
		}
		raw = json.RawMessage(stripCodeFences(inner))
	}
	var s responseShape
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	if unwrap {
		if c := decodeFlat(s.Categorization, false); c != nil {
			return c
		}
	}
	return s.direct()
}

// stripCodeFences removes a surrounding ``` or ```json fence.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, "{[\"") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractJSONObject returns the first balanced {...} in s, honouring string literals.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// ApplyVocabulary checks niche, subniche, category and format against the stored
// lists and rewrites them to the stored spelling. Microniche is free text.
func ApplyVocabulary(c domain.Categorization, vocab domain.Vocabulary) (domain.Categorization, error) {
	var violations []VocabularyViolation
	check := func(kind domain.TaxonomyKind, value *string) {
		canonical, ok := vocab.Canonical(kind, *value)
		if !ok {
			violations = append(violations, VocabularyViolation{Kind: kind, Value: *value})
			return
		}
		*value = canonical
	}
	check(domain.TaxonomyNiche, &c.Niche)
	check(domain.TaxonomySubniche, &c.Subniche)
	check(domain.TaxonomyCategory, &c.Category)
	check(domain.TaxonomyFormat, &c.Format)

	if len(violations) > 0 {
		return c, &VocabularyError{Violations: violations}
	}
	return c, nil
}
