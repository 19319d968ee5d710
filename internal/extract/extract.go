// Package extract pulls structured clinical metadata out of de-identified
// report text. Extraction runs on redacted text only, so a field extractor
// can never reintroduce PHI into the metadata set.
package extract

import (
	"go.uber.org/zap"
)

// FieldExtractor extracts one metadata field from report text. Extract
// returns the field value and whether a value was found; Valid gates the
// value against the field's plausibility range before it is admitted into
// the metadata record.
type FieldExtractor interface {
	Field() string
	Extract(text string) (any, bool)
	Valid(value any) bool
}

// Extractor runs a closed set of field extractors over report text.
type Extractor struct {
	fields []FieldExtractor
	logger *zap.Logger
}

// New creates an extractor over the given fields.
func New(fields []FieldExtractor, logger *zap.Logger) *Extractor {
	return &Extractor{fields: fields, logger: logger}
}

// DefaultFields returns the extractors for the standard obstetric report
// metadata set.
func DefaultFields() []FieldExtractor {
	return []FieldExtractor{
		&AgeExtractor{},
		&BMIExtractor{},
		&GestationalAgeExtractor{},
		&FindingsExtractor{},
	}
}

// ExtractAll runs every field extractor against text and returns the fields
// that were found and passed validation. Absent or implausible values are
// dropped, not errors: scanned reports routinely omit fields.
func (e *Extractor) ExtractAll(text string) map[string]any {
	metadata := make(map[string]any)

	for _, f := range e.fields {
		value, ok := f.Extract(text)
		if !ok {
			continue
		}
		if !f.Valid(value) {
			e.logger.Debug("extracted value failed validation",
				zap.String("field", f.Field()),
			)
			continue
		}
		metadata[f.Field()] = value
	}

	return metadata
}
