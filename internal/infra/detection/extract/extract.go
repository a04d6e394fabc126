// Package extract turns stored document bytes into scannable text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// MaxPages caps how many PDF pages are read for one document.
const MaxPages = 500

// ErrUnsupported is returned for binary content no extractor understands.
var ErrUnsupported = errors.New("unsupported file format")

var pdfMagic = []byte("%PDF-")

// Text returns the plain text of data. PDFs are recognised by file type or
// by their header; anything else must already be UTF-8 text.
func Text(ctx context.Context, fileType string, data []byte) (string, error) {
	if strings.EqualFold(fileType, "pdf") || bytes.HasPrefix(data, pdfMagic) {
		return pdfText(ctx, data)
	}
	if !utf8.Valid(data) {
		return "", ErrUnsupported
	}
	return string(data), nil
}

func pdfText(ctx context.Context, data []byte) (text string, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	pages := min(reader.NumPage(), MaxPages)
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(content)
	}

	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("pdf has no extractable text")
	}
	return b.String(), nil
}
