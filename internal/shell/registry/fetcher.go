package registry

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/descriptor"
)

// =============================================================================
// Artifact Fetching
// =============================================================================

var (
	ErrUnsupportedScheme  = errors.New("unsupported artifact uri scheme")
	ErrDescriptorNotFound = errors.New("artifact carries no " + descriptor.FileName)
)

// ArtifactFetcher retrieves a descriptor artifact by uri.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// HTTPFetcher fetches artifacts over http(s) and from local files. A bare
// path or a file: uri reads from disk, which keeps imports usable without a
// web server in front of the descriptor.
type HTTPFetcher struct {
	httpClient *http.Client
}

// NewHTTPFetcher creates a fetcher with the given request timeout. Zero
// means 30 seconds.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch retrieves the artifact bytes behind uri.
func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parsing artifact uri %q: %w", uri, err)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, uri)
	case "file":
		p := u.Path
		if u.Opaque != "" {
			p = u.Opaque
		}
		return os.ReadFile(p)
	case "":
		return os.ReadFile(uri)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func (f *HTTPFetcher) fetchHTTP(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, uri)
	}

	return io.ReadAll(resp.Body)
}

// =============================================================================
// Descriptor Extraction
// =============================================================================

var zipMagic = []byte("PK\x03\x04")

// extractDescriptor returns the application-group.yml content from an
// artifact: the bytes themselves for a bare YAML file, or the matching zip
// entry for a packaged artifact.
func extractDescriptor(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zipMagic) {
		return data, nil
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening artifact archive: %w", err)
	}

	for _, entry := range zr.File {
		if path.Base(entry.Name) != descriptor.FileName {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s in archive: %w", entry.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s in archive: %w", entry.Name, err)
		}
		return content, nil
	}

	return nil, ErrDescriptorNotFound
}
