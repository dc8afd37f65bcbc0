// Package repo talks to remote package repositories: it fetches the
// package index, downloads artifacts and materializes the catalog into the
// package store.
package repo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	stage = "network"

	initialBufferSize = 4096
	// DefaultMaxIndexSize bounds an index response when none is configured
	DefaultMaxIndexSize = 64 << 20
)

// Client is the HTTP primitive shared by sync and install
type Client struct {
	http         *http.Client
	userAgent    string
	maxIndexSize int64
}

// NewClient builds a client from the configuration. Per-request deadlines
// come from the caller's context.
func NewClient(cfg *models.Config) *Client {
	max := cfg.MaxIndexSize
	if max <= 0 {
		max = DefaultMaxIndexSize
	}
	return &Client{
		http:         &http.Client{},
		userAgent:    cfg.UserAgent,
		maxIndexSize: max,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// IndexURL returns the index location of a repository.
func IndexURL(repoURL string) string {
	return strings.TrimRight(repoURL, "/") + "/index"
}

// FetchIndex returns the raw index document of repoURL.
func (c *Client) FetchIndex(ctx context.Context, repoURL string) ([]byte, error) {
	body, err := c.open(ctx, IndexURL(repoURL))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := readGrowing(body, c.maxIndexSize)
	if err != nil {
		return nil, c.classify(ctx, "", fmt.Errorf("read index: %w", err))
	}
	logrus.Debugf("Fetched index of %s (%d bytes)", repoURL, len(data))
	return data, nil
}

// Download fetches rawURL into dest. A partial file is removed on any
// failure, including cancellation.
func (c *Client) Download(ctx context.Context, rawURL, dest string) (err error) {
	if rawURL == "" {
		return models.NewError(models.ErrInvalidInput, stage, "", "download URL cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return models.WrapError(models.ErrIO, stage, "", err)
	}

	body, err := c.open(ctx, rawURL)
	if err != nil {
		return err
	}
	defer body.Close()

	out, err := os.Create(dest)
	if err != nil {
		return models.WrapError(models.ErrIO, stage, "", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = models.WrapError(models.ErrIO, stage, "", cerr)
		}
		if err != nil {
			os.Remove(dest)
		}
	}()

	n, err := io.Copy(out, body)
	if err != nil {
		return c.classify(ctx, "", fmt.Errorf("download %s: %w", rawURL, err))
	}
	logrus.Debugf("Downloaded %s (%d bytes) to %s", rawURL, n, dest)
	return nil
}

// open returns the body of a GET on rawURL. file:// URLs are read from
// the local filesystem.
func (c *Client) open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, models.WrapError(models.ErrInvalidInput, stage, "", fmt.Errorf("parse %q: %w", rawURL, err))
	}

	switch u.Scheme {
	case "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, models.WrapError(models.ErrNetwork, stage, "", err)
		}
		return &ctxBody{ctx: ctx, ReadCloser: f}, nil
	case "http", "https":
	default:
		return nil, models.NewError(models.ErrInvalidInput, stage, "", "unsupported URL scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, models.WrapError(models.ErrInvalidInput, stage, "", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.classify(ctx, "", fmt.Errorf("GET %s: %w", rawURL, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, models.NewError(models.ErrNetwork, stage, "", "GET %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *Client) classify(ctx context.Context, pkg string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w (%v)", ctxErr, err)
	}
	return models.WrapError(models.ErrNetwork, stage, pkg, err)
}

var errTooLarge = errors.New("response exceeds size limit")

// readGrowing reads r into a buffer that starts small and doubles as data
// arrives, failing once max bytes would be exceeded.
func readGrowing(r io.Reader, max int64) ([]byte, error) {
	buf := make([]byte, 0, initialBufferSize)
	for {
		if len(buf) == cap(buf) {
			if int64(len(buf)) > max {
				return nil, errTooLarge
			}
			grown := make([]byte, len(buf), 2*cap(buf))
			copy(grown, buf)
			buf = grown
		}
		n, err := r.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if int64(len(buf)) > max {
			return nil, errTooLarge
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// ctxBody fails reads of a local file once the context is done.
type ctxBody struct {
	ctx context.Context
	io.ReadCloser
}

func (b *ctxBody) Read(p []byte) (int, error) {
	if err := b.ctx.Err(); err != nil {
		return 0, err
	}
	return b.ReadCloser.Read(p)
}
