// Package source opens SQL text from local paths, file:// and http(s):// URLs
// and S3 objects.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	ErrInvalidS3URL      = errors.New("invalid S3 URL")
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	ErrHTTPStatus        = errors.New("unexpected HTTP status")
)

// Scheme is the kind of location a source string names.
type Scheme string

const (
	SchemeFile  Scheme = "file"
	SchemeS3    Scheme = "s3"
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
	SchemeLocal Scheme = "local" // no scheme, local path
)

// DetectScheme detects the URL scheme from a location string.
func DetectScheme(location string) Scheme {
	lower := strings.ToLower(location)
	switch {
	case strings.HasPrefix(lower, "s3://"):
		return SchemeS3
	case strings.HasPrefix(lower, "https://"):
		return SchemeHTTPS
	case strings.HasPrefix(lower, "http://"):
		return SchemeHTTP
	case strings.HasPrefix(lower, "file://"):
		return SchemeFile
	default:
		return SchemeLocal
	}
}

// Opener resolves source locations to readers.
type Opener struct {
	S3          S3Config
	HTTPTimeout time.Duration

	httpClient *http.Client
	s3Client   s3API
}

// NewOpener returns an opener for the given S3 settings.
func NewOpener(s3cfg S3Config, httpTimeout time.Duration) *Opener {
	if httpTimeout <= 0 {
		httpTimeout = 30 * time.Second
	}
	return &Opener{
		S3:          s3cfg,
		HTTPTimeout: httpTimeout,
		httpClient:  &http.Client{Timeout: httpTimeout},
	}
}

// Open returns a reader for location. The caller closes it.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	switch scheme := DetectScheme(location); scheme {
	case SchemeLocal, SchemeFile:
		f, err := os.Open(localPath(location))
		if err != nil {
			return nil, fmt.Errorf("open source: %w", err)
		}
		return f, nil
	case SchemeHTTP, SchemeHTTPS:
		return o.openHTTP(ctx, location)
	case SchemeS3:
		return o.openS3(ctx, location)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, location)
	}
}

func localPath(location string) string {
	if DetectScheme(location) == SchemeFile {
		return location[len("file://"):]
	}
	return location
}

func (o *Opener) openHTTP(ctx context.Context, url string) (io.ReadCloser, error) {
	client := o.httpClient
	if client == nil {
		client = &http.Client{Timeout: o.HTTPTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build HTTP request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %d", ErrHTTPStatus, url, resp.StatusCode)
	}
	return resp.Body, nil
}

// Expand turns a location into the list of SQL sources it names. A local
// directory yields its *.sql files, recursively and sorted; an s3:// URL
// ending in "/" yields the *.sql objects under that prefix. Anything else is
// returned unchanged.
func (o *Opener) Expand(ctx context.Context, location string) ([]string, error) {
	switch DetectScheme(location) {
	case SchemeLocal, SchemeFile:
		return expandLocal(location)
	case SchemeS3:
		if strings.HasSuffix(location, "/") {
			return o.listS3(ctx, location)
		}
	}
	return []string{location}, nil
}

func expandLocal(location string) ([]string, error) {
	root := localPath(location)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return []string{location}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isSQLFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

func isSQLFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".sql")
}
