package relay

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/blob"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/dto"
	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, maxSize int64) (*Handler, blob.ObjectStorage) {
	t.Helper()
	storage, err := blob.NewDisk(t.TempDir())
	require.NoError(t, err)
	h := NewHandler(storage, maxSize, log.NewNopLogger())
	h.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return h, storage
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadStoresFileAndReturnsReference(t *testing.T) {
	h, _ := newTestHandler(t, 1<<20)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	body, contentType := multipartBody(t, "file", "extrato.pdf", []byte("%PDF-1.4 extrato"))
	resp, err := http.Post(srv.URL+UploadPath, contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out dto.UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, strings.HasPrefix(out.Filename, "1700000000000-"))
	assert.True(t, strings.HasSuffix(out.Filename, "-extrato.pdf"))
	assert.Equal(t, PublicPrefix+out.Filename, out.URL)

	get, err := http.Get(srv.URL + out.URL)
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusOK, get.StatusCode)
	assert.Equal(t, "application/pdf", get.Header.Get("Content-Type"))
	data, err := io.ReadAll(get.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 extrato", string(data))
}

func TestUploadWithoutFile(t *testing.T) {
	h, _ := newTestHandler(t, 1<<20)

	body, contentType := multipartBody(t, "document", "a.pdf", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, UploadPath, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No file uploaded"}`, rec.Body.String())
}

func TestUploadNotMultipart(t *testing.T) {
	h, _ := newTestHandler(t, 1<<20)

	req := httptest.NewRequest(http.MethodPost, UploadPath, strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadTooLarge(t *testing.T) {
	h, _ := newTestHandler(t, 1024)

	body, contentType := multipartBody(t, "file", "big.pdf", bytes.Repeat([]byte("a"), 4096))
	req := httptest.NewRequest(http.MethodPost, UploadPath, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadSanitizesName(t *testing.T) {
	h, storage := newTestHandler(t, 1<<20)

	body, contentType := multipartBody(t, "file", "../../etc/passwd.pdf", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, UploadPath, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out dto.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotContains(t, out.Filename, "/")
	assert.NotContains(t, out.Filename, "..")

	rc, _, err := storage.Get(req.Context(), out.Filename)
	require.NoError(t, err)
	_ = rc.Close()
}

func TestServeUnknownUpload(t *testing.T) {
	h, _ := newTestHandler(t, 1<<20)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PublicPrefix+"missing.pdf", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "report.pdf", SanitizeFilename("report.pdf"))
	assert.Equal(t, "etcpasswd", SanitizeFilename("../etc/passwd"))
	assert.Equal(t, "ab", SanitizeFilename("a\x00\nb"))
	assert.Equal(t, `a\\b\"c`, EscapeFilename(`a\b"c`))
}

func TestGenerateNameFallsBack(t *testing.T) {
	name := GenerateName(time.UnixMilli(42), "../")
	assert.True(t, strings.HasPrefix(name, "42-"))
	assert.True(t, strings.HasSuffix(name, "-file"))
}
