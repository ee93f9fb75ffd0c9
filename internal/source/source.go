package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
)

// PatchText returns the unified-diff text carried by one patch
// directory entry. Markdown patch notes contribute the concatenated
// content of their fenced ```diff blocks; anything else is taken as
// raw diff text.
func PatchText(name string, raw []byte) (string, error) {
	if filepath.Ext(name) != ".md" {
		return string(raw), nil
	}
	blocks, err := ExtractDiffBlocks(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse markdown in %s: %w", name, err)
	}
	return strings.Join(blocks, "\n"), nil
}

// DiffText extracts diff text from ad-hoc content: fenced ```diff
// blocks when the content is markdown, otherwise the content itself.
func DiffText(content string) string {
	blocks, err := ExtractDiffBlocks([]byte(content))
	if err == nil && len(blocks) > 0 {
		return strings.Join(blocks, "\n")
	}
	return content
}

// Provider retrieves ad-hoc patch content for single-patch runs.
type Provider struct{}

// New creates a new Provider.
func New() *Provider {
	return &Provider{}
}

// GetContent reads patch content from stdin when piped, or from the
// system clipboard otherwise.
func (p *Provider) GetContent() (string, error) {
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(content), nil
	}

	content, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to read from clipboard: %w", err)
	}
	return content, nil
}
