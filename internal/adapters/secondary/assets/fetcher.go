// Package assets resolves template images from the local assets directory or
// over HTTP.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

// PublicPrefix is the URL path the assets directory is served under
const PublicPrefix = "/public/"

var (
	// ErrRemoteBlocked is returned for http(s) references when remote fetching is disabled
	ErrRemoteBlocked = errors.New("remote assets are disabled")
	// ErrTooLarge is returned when an asset exceeds the configured size limit
	ErrTooLarge = errors.New("asset exceeds size limit")
	// ErrUnsupportedType is returned for content that is not a PNG, JPEG or GIF image
	ErrUnsupportedType = errors.New("unsupported asset type")
	// ErrOutsideRoot is returned for local paths escaping the assets directory
	ErrOutsideRoot = errors.New("path escapes assets directory")
)

var supportedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
}

// Fetcher implements ports.AssetFetcher
type Fetcher struct {
	root        string
	blockRemote bool
	maxBytes    int64
	client      ports.HTTPClient
	logger      *slog.Logger
}

// NewFetcher creates a fetcher from the assets configuration
func NewFetcher(cfg entities.AssetsConfig, client ports.HTTPClient, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = ports.NewRealHTTPClient(ports.HTTPClientConfig{
			Timeout:    cfg.GetFetchTimeout(),
			MaxRetries: cfg.MaxRetries,
			UserAgent:  "texdeck",
		})
	}
	return &Fetcher{
		root:        cfg.GetRoot(),
		blockRemote: cfg.BlockRemote,
		maxBytes:    cfg.GetMaxBytes(),
		client:      client,
		logger:      logger.With("component", "assets"),
	}
}

// Fetch resolves ref, which is either an http(s) URL or a path under the assets root
func (f *Fetcher) Fetch(ctx context.Context, ref string) (*ports.Asset, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("empty asset reference")
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return f.fetchRemote(ctx, ref)
	}
	return f.fetchLocal(ref)
}

func (f *Fetcher) fetchRemote(ctx context.Context, ref string) (*ports.Asset, error) {
	if f.blockRemote {
		return nil, ErrRemoteBlocked
	}

	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parsing asset URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u.Redacted(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", u.Redacted(), resp.Status)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, ErrTooLarge
	}

	data, err := f.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("Fetched remote asset", slog.String("url", u.Redacted()), slog.Int("bytes", len(data)))
	return newAsset(path.Base(u.Path), data)
}

func (f *Fetcher) fetchLocal(ref string) (*ports.Asset, error) {
	rel := strings.TrimPrefix(ref, PublicPrefix)
	rel = strings.TrimPrefix(rel, "/")
	rel = filepath.FromSlash(rel)

	if !filepath.IsLocal(rel) {
		return nil, ErrOutsideRoot
	}

	full := filepath.Join(f.root, rel)
	file, err := os.Open(full) // #nosec G304 - rel is confined to the assets root above
	if err != nil {
		return nil, fmt.Errorf("opening asset: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := f.readLimited(file)
	if err != nil {
		return nil, err
	}

	return newAsset(filepath.Base(full), data)
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading asset: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// newAsset sniffs the content type rather than trusting names or headers
func newAsset(name string, data []byte) (*ports.Asset, error) {
	contentType := http.DetectContentType(data)
	if !supportedTypes[contentType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return &ports.Asset{Name: name, ContentType: contentType, Data: data}, nil
}

// Ensure Fetcher implements ports.AssetFetcher
var _ ports.AssetFetcher = (*Fetcher)(nil)
