package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dpazeto/scanform/internal/common"
)

// HTTPExtractor sends validated text to the external parsing service
// and hardens the response (schema check + normalization) before it
// reaches the form.
type HTTPExtractor struct {
	URL            string
	APIKey         string
	Client         *http.Client
	Logger         *slog.Logger
	RequiredFields []string
}

func NewHTTPExtractor(url, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPExtractor{
		URL:    url,
		APIKey: apiKey,
		Client: &http.Client{Timeout: timeout},
		Logger: logger,
	}
}

type parseRequest struct {
	Text string `json:"text"`
}

// ExtractFields implements FieldExtractor. Any failure from the
// collaborator comes back as a PARSER_ERROR with the cause attached.
func (e *HTTPExtractor) ExtractFields(ctx context.Context, text string) (FieldsResult, error) {
	start := time.Now()

	raw, status, err := e.sendJSON(ctx, parseRequest{Text: text})
	if err != nil {
		return FieldsResult{}, common.NewAppError(common.CodeParserError,
			fmt.Sprintf("parser request failed (status %d)", status), err)
	}

	if err := ValidateJSONAgainstSchema(BuildFieldsSchema(e.RequiredFields), raw); err != nil {
		return FieldsResult{}, common.NewAppError(common.CodeParserError, "parser response rejected", err)
	}

	fields, warnings, err := NormalizeFields(raw, e.Logger)
	if err != nil {
		return FieldsResult{}, common.NewAppError(common.CodeParserError, "parser response unusable", err)
	}

	return FieldsResult{
		Fields:   fields,
		Duration: time.Since(start),
		Warnings: warnings,
	}, nil
}

// sendJSON posts body to the parser endpoint and returns the raw
// response bytes and status code.
func (e *HTTPExtractor) sendJSON(ctx context.Context, body any) ([]byte, int, error) {
	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(bs))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	e.Logger.Info("parser.http.request", "req_id", reqID, "url", e.URL, "content_length", len(bs))

	resp, err := e.Client.Do(req)
	if err != nil {
		e.Logger.Error("parser.http.send_error", "req_id", reqID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			e.Logger.Warn("parser.http.body_close_error", "req_id", reqID, "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)

	e.Logger.Info("parser.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}
