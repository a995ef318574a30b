// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/pdiddy/trialmatch/internal/errs"
	"github.com/pdiddy/trialmatch/internal/httputil"
)

const (
	downloadService = "document host"

	// maxDownloadBytes caps a downloaded document.
	maxDownloadBytes = 25 << 20

	docxType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// contentTypeExts maps response media types to the extension the
// converter router dispatches on.
var contentTypeExts = map[string]string{
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
	"text/markdown":   ".md",
	"text/html":       ".html",
	docxType:          ".docx",
}

// isURL reports whether source is an http or https URL.
func isURL(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// download fetches rawURL into a temp file under dir and returns its path.
// The extension comes from the URL path, or from the Content-Type when the
// path has none. The caller removes the file.
func download(ctx context.Context, client *http.Client, rawURL, dir, userAgent string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errs.Transport(downloadService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errs.Upstream(downloadService, resp.StatusCode, httputil.ReadLimited(resp.Body, 1024))
	}

	ext := extFor(req.URL, resp.Header.Get("Content-Type"))

	tmpFile, err := os.CreateTemp(dir, ".document-*"+ext)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, io.LimitReader(resp.Body, maxDownloadBytes+1))
	closeErr := tmpFile.Close()
	switch {
	case copyErr != nil:
		os.Remove(tmpPath)
		return "", errs.Transport(downloadService, copyErr)
	case closeErr != nil:
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	case n > maxDownloadBytes:
		os.Remove(tmpPath)
		return "", errs.Invalid("document", "larger than %d MiB", maxDownloadBytes>>20)
	}
	return tmpPath, nil
}

func extFor(u *url.URL, contentType string) string {
	if ext := strings.ToLower(path.Ext(u.Path)); ext != "" {
		return ext
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return contentTypeExts[mt]
}
