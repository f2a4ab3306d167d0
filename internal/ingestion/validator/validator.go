// Package validator checks document events before they reach a feed or the
// engine and reports every offending field at once.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/ingestion"
)

const (
	maxFields      = 64
	maxFieldName   = 128
	maxValueLength = 1048576
	maxKeyLength   = 255
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return strings.Join(parts, "; ")
}

// ValidateDocumentEvent checks field count, names and value sizes.
func ValidateDocumentEvent(event *ingestion.DocumentEvent) error {
	errs := make(map[string]string)

	switch {
	case len(event.Fields) == 0:
		errs["fields"] = "at least one field is required"
	case len(event.Fields) > maxFields:
		errs["fields"] = fmt.Sprintf("at most %d fields are allowed", maxFields)
	}
	for name, field := range event.Fields {
		if strings.TrimSpace(name) == "" {
			errs["fields"] = "field names must not be blank"
			continue
		}
		if len(name) > maxFieldName {
			errs[name] = fmt.Sprintf("field name must be at most %d bytes", maxFieldName)
			continue
		}
		if len(field.Value) > maxValueLength {
			errs[name] = fmt.Sprintf("value must be at most %d bytes", maxValueLength)
		} else if !utf8.ValidString(field.Value) {
			errs[name] = "value must be valid UTF-8"
		}
	}
	if len(event.Key) > maxKeyLength {
		errs["key"] = fmt.Sprintf("key must be at most %d characters", maxKeyLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
