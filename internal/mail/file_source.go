package mail

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// FileSource reads the latest message from a local file. It backs the
// single-shot check and can be pointed at a file maintained by another mail tool.
type FileSource struct {
	Path string
}

func (s *FileSource) FetchLatestInboundText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("reading message file: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}
