// Package pipeline coordinates what happens after a payload is
// decoded: validation and sanitization, field extraction, form
// population, and the history record.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/dpazeto/scanform/internal/common"
	"github.com/dpazeto/scanform/internal/extract"
	"github.com/dpazeto/scanform/internal/form"
	"github.com/dpazeto/scanform/internal/repository"
	"github.com/dpazeto/scanform/internal/validate"
)

// Processor runs one decoded payload end to end. The decoder hands it
// raw text; everything downstream only ever sees the sanitized form.
type Processor struct {
	logger    *slog.Logger
	extractor extract.FieldExtractor
	form      *form.Form
	scans     repository.ScanRepository // optional history log
	maxLength int
}

func NewProcessor(logger *slog.Logger, extractor extract.FieldExtractor, f *form.Form, scans repository.ScanRepository, maxLength int) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if maxLength <= 0 {
		maxLength = validate.DefaultMaxLength
	}
	return &Processor{
		logger:    logger,
		extractor: extractor,
		form:      f,
		scans:     scans,
		maxLength: maxLength,
	}
}

// Process validates and sanitizes the raw payload, extracts named
// fields, populates the form, and records the scan. A history-write
// failure is logged but does not fail the payload; everything earlier
// does.
func (p *Processor) Process(ctx context.Context, raw, source string) (map[string]string, error) {
	start := time.Now()

	text, err := validate.Validate(raw, p.maxLength)
	if err != nil {
		p.logger.Warn("pipeline.validate.failed", "source", source, "err", err)
		return nil, err
	}

	res, err := p.extractor.ExtractFields(ctx, text)
	if err != nil {
		p.logger.Error("pipeline.extract.failed", "source", source, "err", err)
		if common.CodeOf(err) == "" {
			err = common.NewAppError(common.CodeParserError, "field extraction failed", err)
		}
		return nil, err
	}
	for _, w := range res.Warnings {
		p.logger.Warn("pipeline.extract.warning", "source", source, "warning", w)
	}

	written := 0
	if p.form != nil {
		written = p.form.Populate(res.Fields)
	}

	if p.scans != nil {
		scan := &repository.Scan{Source: source, Text: text, Fields: res.Fields}
		if err := p.scans.Record(ctx, scan); err != nil {
			p.logger.Error("pipeline.history.failed", "source", source, "err", err)
		}
	}

	p.logger.Info("pipeline.processed",
		"source", source,
		"fields", len(res.Fields),
		"written", written,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res.Fields, nil
}
