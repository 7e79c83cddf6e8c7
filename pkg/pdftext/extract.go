// Package pdftext pulls plain text out of uploaded report PDFs for analysis.
package pdftext

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrNoText = errors.New("pdftext: no text extracted")

// Extract returns the normalized text of the document, stopping once
// maxRunes runes are collected (maxRunes <= 0 means no cap). Malformed
// documents return an error rather than panicking.
func Extract(r io.ReaderAt, size int64, maxRunes int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("pdftext: malformed pdf: %v", rec)
		}
	}()
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var b strings.Builder
	runes := 0
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		raw, err := page.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing entirely
			continue
		}
		part := Normalize(raw)
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
			runes++
		}
		b.WriteString(part)
		runes += len([]rune(part))
		if maxRunes > 0 && runes >= maxRunes {
			break
		}
	}
	if b.Len() == 0 {
		return "", ErrNoText
	}
	return Truncate(b.String(), maxRunes), nil
}

// Normalize collapses whitespace and drops invalid UTF-8 and NUL bytes.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}

// Truncate cuts text to at most n runes. n <= 0 returns text unchanged.
func Truncate(text string, n int) string {
	if n <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
