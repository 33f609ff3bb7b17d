package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpazeto/scanform/internal/common"
	"github.com/dpazeto/scanform/internal/extract"
	"github.com/dpazeto/scanform/internal/form"
	"github.com/dpazeto/scanform/internal/repository"
	"github.com/dpazeto/scanform/internal/validate"
)

type fakeExtractor struct {
	gotText string
	fields  extract.Fields
	err     error
}

func (f *fakeExtractor) ExtractFields(_ context.Context, text string) (extract.FieldsResult, error) {
	f.gotText = text
	if f.err != nil {
		return extract.FieldsResult{}, f.err
	}
	return extract.FieldsResult{Fields: f.fields}, nil
}

type fakeScans struct {
	recorded []*repository.Scan
	err      error
}

func (f *fakeScans) Record(_ context.Context, s *repository.Scan) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, s)
	return nil
}

func (f *fakeScans) ListScans(context.Context, int) ([]*repository.Scan, error) {
	return f.recorded, nil
}

func TestProcessHappyPath(t *testing.T) {
	ex := &fakeExtractor{fields: extract.Fields{"nome": "Maria", "documento": "123"}}
	scans := &fakeScans{}

	nome := form.NewValueTarget("nome")
	f := form.New(nil, nil)
	f.Register(nome)

	p := NewProcessor(nil, ex, f, scans, 0)
	fields, err := p.Process(context.Background(), `nome=<Maria> & "123"`, repository.SourceLive)
	require.NoError(t, err)
	assert.Equal(t, "Maria", fields["nome"])

	// extractor sees the sanitized text, not the raw payload
	assert.Equal(t, "nome=&lt;Maria&gt; &amp; &quot;123&quot;", ex.gotText)
	assert.Equal(t, "Maria", nome.Value())

	require.Len(t, scans.recorded, 1)
	assert.Equal(t, repository.SourceLive, scans.recorded[0].Source)
	assert.Equal(t, ex.gotText, scans.recorded[0].Text)
}

func TestProcessValidationFailure(t *testing.T) {
	ex := &fakeExtractor{fields: extract.Fields{}}
	p := NewProcessor(nil, ex, nil, nil, 0)

	_, err := p.Process(context.Background(), "payload\x00with nul", repository.SourceImage)
	require.Error(t, err)

	var verr *validate.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, validate.KindControlCharacters, verr.Kind)
	assert.Empty(t, ex.gotText, "extractor must not see invalid payloads")
}

func TestProcessExtractionFailureWrapped(t *testing.T) {
	ex := &fakeExtractor{err: errors.New("connection refused")}
	p := NewProcessor(nil, ex, nil, nil, 0)

	_, err := p.Process(context.Background(), "payload", repository.SourceLive)
	require.Error(t, err)
	assert.Equal(t, common.CodeParserError, common.CodeOf(err))
}

func TestProcessExtractionAppErrorPreserved(t *testing.T) {
	ex := &fakeExtractor{err: common.NewAppError(common.CodeParserError, "schema violation", nil)}
	p := NewProcessor(nil, ex, nil, nil, 0)

	_, err := p.Process(context.Background(), "payload", repository.SourceLive)
	require.Error(t, err)
	assert.Equal(t, common.CodeParserError, common.CodeOf(err))
}

func TestProcessHistoryFailureIsNonFatal(t *testing.T) {
	ex := &fakeExtractor{fields: extract.Fields{"nome": "Maria"}}
	scans := &fakeScans{err: errors.New("disk full")}
	p := NewProcessor(nil, ex, nil, scans, 0)

	fields, err := p.Process(context.Background(), "payload", repository.SourceLive)
	require.NoError(t, err)
	assert.Equal(t, "Maria", fields["nome"])
}
