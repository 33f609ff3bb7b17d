package extract

import (
	"context"
	"time"
)

// Fields is the named-field mapping produced by the external document
// parser from one validated payload.
type Fields map[string]string

// FieldExtractor turns validated text into named string fields.
// Implementations wrap the external parsing collaborator; they never
// see unvalidated payloads.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string) (FieldsResult, error)
}

type FieldsResult struct {
	Fields   Fields
	Duration time.Duration
	Warnings []string
}
