package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/timmy/tubebench/internal/domain"
)

var (
	// ErrChannelNotFound is a hard failure: a step needs the channel row and it is absent.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrTaskNotFound is returned when a message or trigger names a task that does not exist.
	ErrTaskNotFound = errors.New("task not found")
)

// ParseError reports a classifier response from which no categorization could be decoded.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable categorization response: %s (raw: %q)", e.Reason, e.Raw)
}

func newParseError(reason, raw string) *ParseError {
	const maxRaw = 200
	if r := []rune(raw); len(r) > maxRaw {
		raw = string(r[:maxRaw]) + "..."
	}
	return &ParseError{Reason: reason, Raw: raw}
}

// VocabularyViolation is one categorization field holding a value outside its list.
type VocabularyViolation struct {
	Kind  domain.TaxonomyKind
	Value string
}

// VocabularyError reports categorization values that are not in the stored vocabulary.
type VocabularyError struct {
	Violations []VocabularyViolation
}

func (e *VocabularyError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s %q", v.Kind, v.Value))
	}
	return "categorization outside vocabulary: " + strings.Join(parts, ", ")
}
