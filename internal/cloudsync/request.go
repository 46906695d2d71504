package cloudsync

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
)

type ItemResponse struct {
	Items []Item
	Page  int
	Pages int
}

type Item interface{}

// GetItems makes GET request to the store and returns items from all pages.
func (c *Client) GetItems(ctx context.Context, rawURL string, q url.Values) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	req = c.setHeaders(req)
	req.Header.Set("Accept", contentType)
	req.URL.RawQuery = q.Encode()

	resp, err := c.request(req)
	if err != nil {
		return nil, err
	}

	response, err := c.parseItemResponse(resp)
	if err != nil {
		return nil, err
	}

	items := append([]Item(nil), response.Items...)

	// The page count of the first response bounds the walk.
	pages := response.Pages
	for page := response.Page + 1; page < pages; page++ {
		c.logger.Debug("additional request needed", zap.String("reason", fmt.Sprintf(
			"current page (%d) < all page count (%d)", page, pages),
		))

		resp, err = c.request(addPage(req, page))
		if err != nil {
			return nil, err
		}

		response, err = c.parseItemResponse(resp)
		if err != nil {
			return nil, err
		}

		if response.Page != page {
			c.logger.Warn("store ignored the page parameter, stopping pagination",
				zap.Int("requested", page),
				zap.Int("returned", response.Page),
			)
			break
		}

		items = append(items, response.Items...)
	}

	return items, nil
}

func (c *Client) parseItemResponse(resp *http.Response) (*ItemResponse, error) {
	body, err := decodedBody(resp)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var response ItemResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, err
	}

	return &response, nil
}

// download writes the file into the sync directory through a temporary file
// so readers never see a partial copy.
func (c *Client) download(ctx context.Context, file *File) (string, error) {
	target, err := c.resolve(file.DownloadURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.request(c.setHeaders(req))
	if err != nil {
		return "", err
	}

	body, err := decodedBody(resp)
	if err != nil {
		return "", err
	}
	defer body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", err
	}

	dest := filepath.Join(c.dir, filepath.Base(file.Name))
	tmp, err := os.CreateTemp(c.dir, "."+filepath.Base(file.Name)+"-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", err
	}

	return dest, nil
}

// resolve makes relative download links absolute against the base URL.
func (c *Client) resolve(link string) (string, error) {
	ref, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	if ref.IsAbs() {
		return link, nil
	}

	base, err := url.Parse(c.BaseURL + "/")
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return resp.Body, nil
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}

	return readCloser{Reader: gz, close: func() error {
		gz.Close()
		return resp.Body.Close()
	}}, nil
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error {
	return r.close()
}

// addPage adds page parameter to request URL.
func addPage(req *http.Request, page int) *http.Request {
	q := req.URL.Query()
	q.Set("page", strconv.Itoa(page))
	req.URL.RawQuery = q.Encode()

	return req
}
