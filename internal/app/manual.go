package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// manualMaxBytes caps how much of a manual is downloaded.
const manualMaxBytes = 20 << 20

// manualMaxPromptChars caps how much extracted text is fed to the model.
const manualMaxPromptChars = 60_000

var manualHTTPClient = &http.Client{Timeout: 30 * time.Second}

// fetchManualText downloads an owner's manual and extracts plain text.
// PDF and HTML bodies are supported; anything else is treated as plain text.
func (a *App) fetchManualText(ctx context.Context, manualURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manualURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: bad manual url: %v", ErrValidation, err)
	}
	resp, err := manualHTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download manual: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download manual: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, manualMaxBytes))
	if err != nil {
		return "", fmt.Errorf("read manual: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	var text string
	switch {
	case strings.Contains(contentType, "pdf") || bytes.HasPrefix(body, []byte("%PDF")):
		text, err = extractPDFText(body)
	case strings.Contains(contentType, "html") || looksLikeHTML(body):
		text, err = extractHTMLText(body)
	default:
		text = string(body)
	}
	if err != nil {
		return "", err
	}

	text = normalizeText(text)
	if text == "" {
		return "", fmt.Errorf("manual contained no extractable text")
	}
	if len(text) > manualMaxPromptChars {
		text = text[:manualMaxPromptChars]
	}
	return text, nil
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(content)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func extractHTMLText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String(), nil
}

func looksLikeHTML(data []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(data[:min(len(data), 256)]))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

// normalizeText collapses runs of whitespace into single spaces.
func normalizeText(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		inSpace = false
		sb.WriteRune(r)
	}
	return sb.String()
}
