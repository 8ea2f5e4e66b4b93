package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// ErrFontUnavailable indicates that no embeddable TrueType font could
// be obtained from any source. Raised before any page is drawn.
var ErrFontUnavailable = errors.New("no embeddable font available (supply a local TTF with a font option)")

// DefaultFontURLs is the ordered list of remote fallbacks used when the
// caller supplies no font of their own.
var DefaultFontURLs = []string{
	"https://cdn.jsdelivr.net/npm/dejavu-fonts-ttf@2.37.3/ttf/DejaVuSans.ttf",
	"https://raw.githubusercontent.com/dejavu-fonts/dejavu-fonts/master/ttf/DejaVuSans.ttf",
}

// FontSource supplies raw TrueType bytes for embedding.
type FontSource interface {
	Load(ctx context.Context) ([]byte, error)
}

// EmbeddedFont serves caller-supplied font bytes.
type EmbeddedFont []byte

func (f EmbeddedFont) Load(context.Context) ([]byte, error) {
	if len(f) == 0 {
		return nil, fmt.Errorf("%w: embedded font is empty", ErrFontUnavailable)
	}
	return []byte(f), nil
}

// RemoteFont fetches the font from an ordered list of URLs; the first
// success wins.
type RemoteFont struct {
	URLs   []string
	Client *http.Client
}

func (f *RemoteFont) Load(ctx context.Context) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	var errs error
	for _, u := range f.URLs {
		data, err := fetchFont(ctx, client, u)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", u, err))
			continue
		}
		return data, nil
	}
	if errs == nil {
		errs = errors.New("no font URLs configured")
	}
	return nil, fmt.Errorf("%w: %v", ErrFontUnavailable, errs)
}

func fetchFont(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) < 12 {
		return nil, fmt.Errorf("response too small to be a font (%d bytes)", len(data))
	}
	return data, nil
}

// CachedFont memoizes another source for the life of the process. The
// caller owns the cache; there is no package-global font state.
type CachedFont struct {
	src FontSource

	mu   sync.Mutex
	data []byte
}

func NewCachedFont(src FontSource) *CachedFont {
	return &CachedFont{src: src}
}

func (c *CachedFont) Load(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data != nil {
		return c.data, nil
	}
	data, err := c.src.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.data = data
	return data, nil
}
