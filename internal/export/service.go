// Package export produces XLSX workbooks from the scan history.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/dpazeto/scanform/internal/repository"
)

// Service is a tiny façade over the scan repository that produces XLSX
// bytes for exports.
type Service struct {
	scans  repository.ScanRepository
	logger *slog.Logger
}

func NewService(scans repository.ScanRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{scans: scans, logger: logger}
}

// ExportScansXLSX returns an XLSX workbook of the most recent scans,
// newest first. Field columns are the union of field names across the
// exported scans, sorted for a stable layout.
func (s *Service) ExportScansXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	scans, err := s.scans.ListScans(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}

	fieldNames := map[string]bool{}
	for _, sc := range scans {
		for name := range sc.Fields {
			fieldNames[name] = true
		}
	}
	columns := make([]string, 0, len(fieldNames))
	for name := range fieldNames {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	f := excelize.NewFile()
	const sheet = "Scans"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := append([]string{"Decoded At", "Source", "Payload"}, columns...)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, sc := range scans {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, sc.DecodedAt.UTC().Format("2006-01-02 15:04:05"))
		write(2, sc.Source)
		write(3, truncate(sc.Text, 140))
		for i, name := range columns {
			write(4+i, sc.Fields[name])
		}
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 20)
	_ = f.SetColWidth(sheet, "B", "B", 10)
	_ = f.SetColWidth(sheet, "C", "C", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(scans),
		"columns", len(headers),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// truncate shortens s to at most n runes. Counting runes keeps
// multi-byte payload characters intact.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n == 1 {
		return string(runes[:1])
	}
	return string(runes[:n-1]) + "…"
}
