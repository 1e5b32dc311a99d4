// Package doctext turns stored document bodies (plain text, HTML, or
// base64-encoded PDF) into plain text suitable for a prompt.
package doctext

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// Format is the encoding of a stored document body.
type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// Extract returns the plain text of body. An empty or unknown format is
// treated as text.
func Extract(body string, format Format) (string, error) {
	switch format {
	case FormatHTML:
		return fromHTML(body)
	case FormatPDF:
		return fromPDF(body)
	default:
		return Collapse(body), nil
	}
}

// Plain is Extract for callers that prefer the raw body over an error.
func Plain(body string, format Format) string {
	text, err := Extract(body, format)
	if err != nil {
		return Collapse(body)
	}
	return text
}

func fromHTML(body string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	doc.Find("script, style, noscript, nav, header, footer").Remove()

	var parts []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre, td").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li").Length() > 0 {
			return
		}
		if t := Collapse(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return Collapse(doc.Text()), nil
	}
	return strings.Join(parts, "\n"), nil
}

func fromPDF(body string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(body))
	if err != nil {
		return "", fmt.Errorf("decoding pdf: %w", err)
	}
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return Collapse(string(b)), nil
}

// Collapse trims each line, collapses runs of spaces, and drops blank lines.
func Collapse(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
