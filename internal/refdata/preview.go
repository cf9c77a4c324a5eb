package refdata

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
)

const (
	previewTimeout  = 15 * time.Second
	previewMaxChars = 900
)

// Preview fetches a media link and extracts a readable excerpt for
// in-chat display. Non-HTML links and extraction failures return an
// error; callers fall back to sending the bare link.
func Preview(ctx context.Context, link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("refdata: preview: invalid url: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, previewTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("refdata: preview: %w", err)
	}
	req.Header.Set("User-Agent", "tanya-bot/1.0")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("refdata: preview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refdata: preview: HTTP %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/html") {
		return "", fmt.Errorf("refdata: preview: unsupported content type %q", ct)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", fmt.Errorf("refdata: preview: parse: %w", err)
	}

	var buf bytes.Buffer
	if err := article.RenderText(&buf); err != nil {
		return "", fmt.Errorf("refdata: preview: render: %w", err)
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", fmt.Errorf("refdata: preview: no readable content")
	}
	if len(text) > previewMaxChars {
		text = text[:previewMaxChars] + "…"
	}
	return fmt.Sprintf("📄 *%s*\n\n%s", article.Title(), text), nil
}
