package cloudsync

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/mitchellh/mapstructure"
)

type Files []*File

type File struct {
	Name        string
	DownloadURL string `json:"download_url" mapstructure:"download_url"`
	ModifiedAt  string `json:"modified_at" mapstructure:"modified_at"`
	Size        int64
}

// Modified parses ModifiedAt. Unparsable stamps sort first.
func (f *File) Modified() time.Time {
	t, err := time.Parse(time.RFC3339, f.ModifiedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ListFiles returns the store entries matching name on every page.
func (c *Client) ListFiles(ctx context.Context, name string) (Files, error) {
	q := url.Values{}
	q.Add("name", name)
	q.Add("per_page", perPage)

	items, err := c.GetItems(ctx, c.BaseURL+filesPath, q)
	if err != nil {
		return nil, err
	}

	var files Files
	if err := mapstructure.Decode(items, &files); err != nil {
		return nil, fmt.Errorf("decode file listing: %w", err)
	}

	return files, nil
}

// Latest returns the newest file whose base name equals name.
func (f Files) Latest(name string) *File {
	var latest *File
	for _, file := range f {
		if file == nil || path.Base(file.Name) != name {
			continue
		}
		if latest == nil || file.Modified().After(latest.Modified()) {
			latest = file
		}
	}
	return latest
}
