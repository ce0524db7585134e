package relayclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type progressLog struct {
	mu     sync.Mutex
	values []int
}

func (p *progressLog) add(v int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, v)
}

func (p *progressLog) snapshot() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.values...)
}

func TestUploadSuccess(t *testing.T) {
	var gotName, gotType string
	var gotData []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/upload", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotName = header.Filename
		gotType = header.Header.Get("Content-Type")
		gotData, _ = io.ReadAll(file)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"url":"/uploads/1-abc-a.pdf","filename":"1-abc-a.pdf"}`)
	}))
	defer srv.Close()

	data := make([]byte, 256*1024)
	var progress progressLog
	client := New(srv.URL, 5*time.Second)
	res, err := client.Upload(context.Background(), `a "quoted".pdf`, "application/pdf", data, progress.add)
	require.NoError(t, err)

	assert.Equal(t, "/uploads/1-abc-a.pdf", res.URL)
	assert.Equal(t, "1-abc-a.pdf", res.Filename)
	assert.Equal(t, `a "quoted".pdf`, gotName)
	assert.Equal(t, "application/pdf", gotType)
	assert.Len(t, gotData, len(data))

	values := progress.snapshot()
	require.NotEmpty(t, values)
	assert.Equal(t, 100, values[len(values)-1])
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1], "progress never decreases")
	}
}

func TestUploadNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "disk full", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Upload(context.Background(), "a.pdf", "application/pdf", []byte("x"), nil)
	assert.ErrorIs(t, err, ErrUploadFailed)
}

func TestUploadNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).Upload(context.Background(), "a.pdf", "application/pdf", []byte("x"), nil)
	assert.Error(t, err)
}

func TestUploadMalformedBodyIsEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	res, err := New(srv.URL+"/", time.Second).Upload(context.Background(), "a.pdf", "", []byte("x"), nil)
	require.NoError(t, err)
	assert.Empty(t, res.URL)
	assert.Empty(t, res.Filename)
}
