package icons

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Cache downloads institution and merchant artwork into a flat on-disk
// layout, recording which names were already attempted so missing artwork is
// not re-fetched on every sync.
type Cache struct {
	Dir        string
	HTTPClient *http.Client
	Log        zerolog.Logger

	index map[string]bool
	dirty bool
}

const indexFile = "index.json"

var nameSanitizer = regexp.MustCompile(`[^a-z0-9]+`)

func New(dir string, log zerolog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	c := &Cache{
		Dir:        dir,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Log:        log,
		index:      map[string]bool{},
	}
	data, err := os.ReadFile(filepath.Join(dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &c.index); err != nil {
		return nil, err
	}
	return c, nil
}

// Ensure fetches artwork for name once. src may be an https URL or an inline
// base64 payload; when empty a merchant favicon is derived from website.
// Returns the cached file path, or "" when no artwork could be resolved.
func (c *Cache) Ensure(ctx context.Context, kind, name, src, website string) (string, error) {
	slug := sanitize(name)
	if slug == "" {
		return "", nil
	}
	key := kind + "/" + slug
	path := filepath.Join(c.Dir, kind+"_"+slug+".png")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if c.index[key] {
		return "", nil
	}

	if src == "" && website != "" {
		src = faviconURL(website)
	}
	if src == "" {
		// no artwork to resolve for this name, don't ask again
		c.mark(key)
		return "", nil
	}

	var data []byte
	var err error
	if strings.HasPrefix(src, "http") {
		data, err = c.download(ctx, src)
	} else {
		data, err = base64.StdEncoding.DecodeString(src)
	}
	if err != nil {
		// left unmarked so the next sync retries
		return "", fmt.Errorf("icon %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	c.mark(key)
	return path, nil
}

func (c *Cache) mark(key string) {
	c.index[key] = true
	c.dirty = true
}

// Flush persists the attempted-name index.
func (c *Cache) Flush() error {
	if !c.dirty {
		return nil
	}
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(c.Dir, indexFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

func (c *Cache) download(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

func sanitize(name string) string {
	return strings.Trim(nameSanitizer.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

func faviconURL(website string) string {
	u, err := url.Parse(website)
	if err != nil || u.Host == "" {
		if !strings.Contains(website, "://") {
			u, err = url.Parse("https://" + website)
		}
		if err != nil || u == nil || u.Host == "" {
			return ""
		}
	}
	return fmt.Sprintf("https://www.google.com/s2/favicons?domain=%s&sz=64", u.Host)
}
