// Package cloudsync fetches the freshest copy of the tracking document from an
// HTTP file store before it is mutated.
package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	filesPath = "/files"
	userAgent = "spigell/reply-tracker"
	perPage   = "100"
)

// ErrNotFound is returned when the store has no file with the requested name.
var ErrNotFound = errors.New("file not found in cloud store")

type Config struct {
	BaseURL string
	Token   string
	// Dir receives downloaded copies.
	Dir     string
	Timeout time.Duration
}

type Client struct {
	token      string
	dir        string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	BaseURL    string
}

func New(cfg Config, logger *zap.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("cloud sync base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse cloud sync base url: %w", err)
	}

	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, errors.New("cloud sync directory is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:      cfg.Token,
		dir:        dir,
		logger:     logger,
		HTTPClient: &http.Client{Timeout: timeout},
		UserAgent:  userAgent,
		BaseURL:    base,
	}, nil
}

// FetchLatestCopy downloads the most recently modified file called name and
// returns the local path of the copy.
func (c *Client) FetchLatestCopy(ctx context.Context, name string) (string, error) {
	files, err := c.ListFiles(ctx, name)
	if err != nil {
		return "", fmt.Errorf("list cloud files: %w", err)
	}

	latest := files.Latest(name)
	if latest == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	c.logger.Debug("latest cloud copy found",
		zap.String("name", latest.Name),
		zap.Time("modified_at", latest.Modified()),
		zap.Int64("size", latest.Size),
	)

	path, err := c.download(ctx, latest)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", latest.Name, err)
	}

	return path, nil
}
