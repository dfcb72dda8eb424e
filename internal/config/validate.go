package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/a-lang/a/internal/types"
)

// ValidationError represents a manifest validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the manifest for required fields and valid values.
func Validate(m *Manifest) error {
	var errors []string

	seen := make(map[string]bool, len(m.Docs))
	for i, doc := range m.Docs {
		if err := validateDoc(i, doc); err != nil {
			errors = append(errors, err.Error())
			continue
		}
		base := filepath.Base(doc)
		if seen[base] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("docs[%d]", i),
				Message: fmt.Sprintf("duplicate document name '%s'", base),
			}.Error())
		}
		seen[base] = true
	}

	if len(m.Formats) == 0 {
		errors = append(errors, ValidationError{Field: "formats", Message: "at least one archive format is required"}.Error())
	}
	for i, f := range m.Formats {
		if err := types.ArchiveFormat(f).Validate(); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("formats[%d]", i),
				Message: err.Error(),
			}.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}

func validateDoc(index int, doc string) error {
	field := fmt.Sprintf("docs[%d]", index)
	if strings.TrimSpace(doc) == "" {
		return ValidationError{Field: field, Message: "document path is required"}
	}
	switch base := filepath.Base(doc); base {
	case ".", "..", string(filepath.Separator):
		return ValidationError{Field: field, Message: fmt.Sprintf("'%s' is not a file name", doc)}
	}
	return nil
}
