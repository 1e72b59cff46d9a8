package registry

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildZipArtifact packs entries into an in-memory zip archive.
func buildZipArtifact(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractDescriptor_BareYAMLPassesThrough(t *testing.T) {
	data := []byte("apps:\n  stream.http: docker:x:1\n")

	raw, err := extractDescriptor(data)
	require.NoError(t, err)
	assert.Equal(t, data, raw)
}

func TestExtractDescriptor_FindsNestedZipEntry(t *testing.T) {
	artifact := buildZipArtifact(t, map[string]string{
		"README.md":                    "docs",
		"config/application-group.yml": "streams:\n  - name: a\n    dsl: a-app\n",
		"config/other.yml":             "ignored",
	})

	raw, err := extractDescriptor(artifact)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "name: a")
}

func TestExtractDescriptor_ZipWithoutDescriptor(t *testing.T) {
	artifact := buildZipArtifact(t, map[string]string{"README.md": "docs"})

	_, err := extractDescriptor(artifact)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDescriptorNotFound)
}

func TestHTTPFetcher_FetchesOverHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(0)
	data, err := fetcher.Fetch(context.Background(), server.URL+"/bundle.yml")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestHTTPFetcher_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(0)
	_, err := fetcher.Fetch(context.Background(), server.URL+"/missing.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}

func TestHTTPFetcher_ReadsLocalFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bundle.yml")
	require.NoError(t, os.WriteFile(file, []byte("streams: []\n"), 0o644))

	fetcher := NewHTTPFetcher(0)

	// Both the file scheme and a bare path resolve.
	data, err := fetcher.Fetch(context.Background(), "file://"+file)
	require.NoError(t, err)
	assert.Equal(t, []byte("streams: []\n"), data)

	data, err = fetcher.Fetch(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, []byte("streams: []\n"), data)
}

func TestHTTPFetcher_UnsupportedScheme(t *testing.T) {
	fetcher := NewHTTPFetcher(0)

	_, err := fetcher.Fetch(context.Background(), "ftp://repo.example.com/bundle.yml")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}
