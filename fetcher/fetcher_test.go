package fetcher

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uptane/go-uptane/config"
	"github.com/uptane/go-uptane/metadata"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/small.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/blob", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 101))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newFetcher(t *testing.T) *HTTPFetcher {
	t.Helper()
	f, err := NewHTTPFetcher(5*time.Second, config.TLSConfig{})
	require.NoError(t, err)
	return f
}

func TestDownloadFile(t *testing.T) {
	srv := testServer(t)
	f := newFetcher(t)

	data, err := f.DownloadFile(srv.URL+"/small.json", 1024)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"ok":true}`), data)
}

func TestDownloadFileNotFound(t *testing.T) {
	srv := testServer(t)
	f := newFetcher(t)

	_, err := f.DownloadFile(srv.URL+"/absent.json", 1024)
	require.Error(t, err)
	assert.True(t, errors.Is(err, metadata.ErrDownload{}))
	var httpErr metadata.ErrDownloadHTTP
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 404, httpErr.StatusCode)
}

func TestDownloadFileOneByteOverCap(t *testing.T) {
	srv := testServer(t)
	f := newFetcher(t)

	// /blob serves 101 bytes: a cap of 100 must fail, 101 succeed
	_, err := f.DownloadFile(srv.URL+"/blob", 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, metadata.ErrDownloadLengthMismatch{}))

	data, err := f.DownloadFile(srv.URL+"/blob", 101)
	require.NoError(t, err)
	assert.Len(t, data, 101)
}

func TestNewHTTPFetcherMissingCACert(t *testing.T) {
	_, err := NewHTTPFetcher(time.Second, config.TLSConfig{CACert: "/does/not/exist.pem"})
	assert.Error(t, err)
}

func TestDownloadFileUserAgent(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	f := newFetcher(t)
	f.SetUserAgent("uptane-client/1.0")
	_, err := f.DownloadFile(srv.URL, 16)
	require.NoError(t, err)
	assert.Equal(t, "uptane-client/1.0", seen)
}
