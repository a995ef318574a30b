// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns uploaded medical documents into plain text for the
// document parser. PDFs and office formats go through the markitdown
// container; plain text and Markdown are read as is.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/trialmatch/internal/errs"
)

// Converter transforms a document on disk into text.
type Converter interface {
	// Convert reads the document at path and returns its text content.
	Convert(ctx context.Context, path string) (string, error)
}

// TextConverter reads plain-text documents directly.
type TextConverter struct{}

// Convert returns the file content. Non-UTF-8 content is rejected so a
// misnamed binary file is not sent to the model.
func (TextConverter) Convert(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", errs.Invalid("document", "%s is not UTF-8 text", filepath.Base(path))
	}
	return string(data), nil
}

var (
	textExts   = map[string]bool{".txt": true, ".md": true, ".markdown": true}
	markupExts = map[string]bool{".pdf": true, ".docx": true, ".html": true, ".htm": true, ".pptx": true, ".xlsx": true}
)

// Router dispatches on the file extension. Rich may be nil when no
// container runtime is available; rich formats then fail.
type Router struct {
	Text Converter
	Rich Converter
}

// NewRouter returns a Router with the built-in text converter.
func NewRouter(rich Converter) *Router {
	return &Router{Text: TextConverter{}, Rich: rich}
}

// Convert picks the converter for path and runs it.
func (r *Router) Convert(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case textExts[ext]:
		text := r.Text
		if text == nil {
			text = TextConverter{}
		}
		return text.Convert(ctx, path)
	case markupExts[ext]:
		if r.Rich == nil {
			return "", fmt.Errorf("converting %s: no converter for %s files (is docker or podman installed?)", filepath.Base(path), ext)
		}
		return r.Rich.Convert(ctx, path)
	default:
		return "", errs.Invalid("document", "unsupported file type %q", ext)
	}
}

// Supported reports whether Router can handle path by its extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return textExts[ext] || markupExts[ext]
}
