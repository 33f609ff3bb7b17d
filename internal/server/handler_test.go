package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpazeto/scanform/internal/common"
	"github.com/dpazeto/scanform/internal/decode"
	"github.com/dpazeto/scanform/internal/export"
	"github.com/dpazeto/scanform/internal/extract"
	"github.com/dpazeto/scanform/internal/form"
	"github.com/dpazeto/scanform/internal/repository"
	"github.com/dpazeto/scanform/internal/scan"
)

type stubStream struct{}

func (stubStream) Close() error { return nil }

type stubDecoder struct {
	imageText string
	imageErr  error
}

func (d *stubDecoder) OpenStream(context.Context, decode.Constraints, decode.ResultFunc) (io.Closer, error) {
	return stubStream{}, nil
}

func (d *stubDecoder) OpenDevice(context.Context, string, decode.ResultFunc) (io.Closer, error) {
	return stubStream{}, nil
}

func (d *stubDecoder) DecodeImage(context.Context, image.Image) (string, error) {
	return d.imageText, d.imageErr
}

func (d *stubDecoder) VideoInputs(context.Context) ([]decode.VideoDevice, error) {
	return nil, nil
}

type stubProcessor struct {
	fields map[string]string
	err    error
}

func (p *stubProcessor) Process(context.Context, string, string) (map[string]string, error) {
	return p.fields, p.err
}

type memScans struct {
	scans []*repository.Scan
}

func (m *memScans) Record(_ context.Context, s *repository.Scan) error {
	m.scans = append(m.scans, s)
	return nil
}

func (m *memScans) ListScans(context.Context, int) ([]*repository.Scan, error) {
	return m.scans, nil
}

func newTestServer(t *testing.T, dec *stubDecoder, proc *stubProcessor, scans *memScans, targets []*form.ValueTarget) *httptest.Server {
	t.Helper()
	if dec == nil {
		dec = &stubDecoder{}
	}
	if proc == nil {
		proc = &stubProcessor{fields: map[string]string{}}
	}
	if scans == nil {
		scans = &memScans{}
	}

	ctrl, err := scan.New(dec, proc, nil, nil, scan.Config{Timeout: time.Minute})
	require.NoError(t, err)

	h := New(ctrl, scans, export.NewService(scans, nil), targets)
	r := chi.NewRouter()
	h.Attach(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	t.Cleanup(ctrl.Stop)
	return srv
}

func pngUpload(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewGray(image.Rect(0, 0, 8, 8))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "code.png")
	require.NoError(t, err)
	_, err = fw.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil, nil)

	resp, err := http.Post(srv.URL+"/v1/session/start", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session struct {
		Active bool   `json:"active"`
		Status string `json:"status"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/session", &session))
	assert.True(t, session.Active)

	resp, err = http.Post(srv.URL+"/v1/session/stop", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/session", &session))
	assert.False(t, session.Active)
}

func TestDecodeImageEndpoint(t *testing.T) {
	dec := &stubDecoder{imageText: "payload"}
	proc := &stubProcessor{fields: map[string]string{"nome": "Maria"}}
	srv := newTestServer(t, dec, proc, nil, nil)

	body, contentType := pngUpload(t)
	resp, err := http.Post(srv.URL+"/v1/decode", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Maria", out.Fields["nome"])
}

func TestDecodeErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		dec  *stubDecoder
		proc *stubProcessor
		want int
	}{
		{
			name: "no code in image",
			dec:  &stubDecoder{imageErr: decode.ErrNotFound},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "parser failure",
			dec:  &stubDecoder{imageText: "payload"},
			proc: &stubProcessor{err: common.NewAppError(common.CodeParserError, "schema violation", nil)},
			want: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.dec, tt.proc, nil, nil)

			body, contentType := pngUpload(t)
			resp, err := http.Post(srv.URL+"/v1/decode", contentType, body)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestDecodeRejectsNonImage(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil, nil)

	resp, err := http.Post(srv.URL+"/v1/decode", "text/plain", bytes.NewBufferString("not an image"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListScansEndpoint(t *testing.T) {
	scans := &memScans{scans: []*repository.Scan{
		{Source: repository.SourceLive, Text: "payload", Fields: extract.Fields{"nome": "Maria"}},
	}}
	srv := newTestServer(t, nil, nil, scans, nil)

	var out struct {
		Scans []struct {
			Source string `json:"source"`
		} `json:"scans"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/scans", &out))
	require.Len(t, out.Scans, 1)
	assert.Equal(t, "live", out.Scans[0].Source)

	resp, err := http.Get(srv.URL + "/v1/scans?limit=zero")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil, nil)

	resp, err := http.Get(srv.URL + "/v1/scans/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
}

func TestHistoryDisabled(t *testing.T) {
	// No history DSN configured: the repository stays nil and the
	// history endpoints must answer cleanly instead of panicking.
	ctrl, err := scan.New(&stubDecoder{}, &stubProcessor{fields: map[string]string{}}, nil, nil, scan.Config{Timeout: time.Minute})
	require.NoError(t, err)

	h := New(ctrl, nil, export.NewService(nil, nil), nil)
	r := chi.NewRouter()
	h.Attach(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	for _, path := range []string{"/v1/scans", "/v1/scans/export"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFormEndpoint(t *testing.T) {
	nome := form.NewValueTarget("nome")
	require.NoError(t, nome.SetValue("Maria"))
	srv := newTestServer(t, nil, nil, nil, []*form.ValueTarget{nome})

	var out struct {
		Fields map[string]string `json:"fields"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/form", &out))
	assert.Equal(t, "Maria", out.Fields["nome"])
}
