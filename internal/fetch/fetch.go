// Package fetch downloads geospatial datasets over HTTP or FTP and unpacks
// ZIP archives, which is how shapefile distributions usually arrive.
package fetch

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Options configures a dataset fetch.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	TempDir    string
}

// Result describes a completed dataset fetch.
type Result struct {
	URL       string
	Files     []string
	Bytes     int64
	Extracted bool
}

// Fetcher downloads datasets, dispatching on the URL scheme.
type Fetcher struct {
	http *HTTPDownloader
	ftp  *FTPDownloader
	opts Options
}

// New creates a Fetcher with the given options.
func New(opts Options) *Fetcher {
	return &Fetcher{
		http: NewHTTPDownloader(HTTPOptions{
			UserAgent:  opts.UserAgent,
			Timeout:    opts.Timeout,
			MaxRetries: opts.MaxRetries,
		}),
		ftp:  NewFTPDownloader(opts.Timeout),
		opts: opts,
	}
}

// Dataset downloads the URL into destDir. ZIP archives are extracted and the
// archive itself removed; anything else is kept as a single file. An empty
// destDir falls back to the configured temp dir, then the system temp dir.
func (f *Fetcher) Dataset(ctx context.Context, rawURL, destDir string) (*Result, error) {
	if destDir == "" {
		destDir = f.opts.TempDir
	}
	if destDir == "" {
		destDir = os.TempDir()
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: parse url")
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return nil, eris.Errorf("fetch: cannot derive file name from %q", rawURL)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "fetch: create dest dir")
	}

	downloadPath := filepath.Join(destDir, name)
	zap.L().Info("fetching dataset",
		zap.String("url", rawURL),
		zap.String("dest", downloadPath),
	)

	var n int64
	switch u.Scheme {
	case "http", "https":
		n, err = f.http.DownloadToFile(ctx, rawURL, downloadPath)
	case "ftp":
		n, err = f.ftp.DownloadToFile(ctx, rawURL, downloadPath)
	default:
		return nil, eris.Errorf("fetch: unsupported scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{URL: rawURL, Bytes: n}

	if strings.EqualFold(filepath.Ext(name), ".zip") {
		files, err := ExtractZIP(downloadPath, destDir)
		if err != nil {
			return nil, err
		}
		if err := os.Remove(downloadPath); err != nil {
			zap.L().Warn("could not remove archive after extraction",
				zap.String("path", downloadPath),
				zap.Error(err),
			)
		}
		result.Files = files
		result.Extracted = true
		return result, nil
	}

	result.Files = []string{downloadPath}
	return result, nil
}
