package resource

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Sternrassler/openml-client/pkg/client"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/encoding/unicode"
)

// DefaultFileName is used when DownloadOptions.FileName is empty.
const DefaultFileName = "response.txt"

// downloadsDir is the directory below the cache root holding downloads.
const downloadsDir = "downloads"

// Handler writes a downloaded response to path and returns the path of the
// stored file.
type Handler func(resp *client.Response, path string, encoding string) (string, error)

// DownloadOptions controls Download.
type DownloadOptions struct {
	// Handler stores the response; TextHandler by default.
	Handler Handler

	// Encoding of the stored text file; "utf-8" by default.
	Encoding string

	// FileName is the name of the stored file below the URL path.
	FileName string

	// MD5Checksum is the expected hex digest of the downloaded body.
	MD5Checksum string
}

// downloads collapses concurrent downloads of the same target file.
var downloads singleflight.Group

func (e *endpoint) Download(ctx context.Context, rawURL string, opts DownloadOptions) (string, error) {
	if err := e.check(OpDownload); err != nil {
		return "", err
	}

	c := e.transport.Cache()
	if c == nil || c.Dir() == "" {
		return "", e.fail(OpDownload, ErrCacheRequired)
	}

	target, err := DownloadPath(c.Dir(), rawURL, opts.FileName)
	if err != nil {
		return "", e.fail(OpDownload, err)
	}

	if exists(target) {
		e.logger.Debug().Str("path", target).Msg("Download already present")
		return target, nil
	}

	// The shared fetch must outlive any single caller; each caller stops
	// waiting when its own context ends. The transport's per-attempt timeout
	// and retry budget bound the fetch.
	fetchCtx := context.WithoutCancel(ctx)
	ch := downloads.DoChan(target, func() (interface{}, error) {
		if exists(target) {
			return target, nil
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return "", fmt.Errorf("create download directory: %w", err)
		}

		resp, err := e.transport.Get(fetchCtx, rawURL, client.GetOptions{MD5Checksum: opts.MD5Checksum})
		if err != nil {
			return "", err
		}

		handler := opts.Handler
		if handler == nil {
			handler = TextHandler
		}
		encoding := opts.Encoding
		if encoding == "" {
			encoding = "utf-8"
		}
		return handler(resp, target, encoding)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return "", e.fail(OpDownload, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return "", e.fail(OpDownload, res.Err)
	}
	stored, shared := res.Val, res.Shared

	e.logger.Debug().
		Str("url", client.RedactURL(rawURL)).
		Str("path", target).
		Bool("shared", shared).
		Msg("Downloaded file")

	return stored.(string), nil
}

// DownloadPath returns <dir>/downloads/<url path>/<fileName>. The URL path
// is cleaned so the result never leaves the downloads directory.
func DownloadPath(dir, rawURL, fileName string) (string, error) {
	if fileName == "" {
		fileName = DefaultFileName
	}
	if fileName == "." || fileName == ".." || strings.ContainsAny(fileName, `/\`) {
		return "", fmt.Errorf("invalid file name %q", fileName)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid download url: %w", err)
	}
	urlPath := strings.TrimPrefix(path.Clean("/"+u.Path), "/")

	return filepath.Join(dir, downloadsDir, filepath.FromSlash(urlPath), fileName), nil
}

// TextHandler decodes the body as text and stores it in encoding.
func TextHandler(resp *client.Response, path string, encoding string) (string, error) {
	text, err := resp.Text()
	if err != nil {
		return "", err
	}

	enc, err := client.Encoding(encoding)
	if err != nil {
		return "", err
	}
	data := []byte(text)
	if enc != unicode.UTF8 {
		data, err = enc.NewEncoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("encode text as %s: %w", encoding, err)
		}
	}

	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// BinaryHandler stores the raw body.
func BinaryHandler(resp *client.Response, path string, _ string) (string, error) {
	if err := writeFileAtomic(path, resp.Body); err != nil {
		return "", err
	}
	return path, nil
}

// writeFileAtomic writes data to a temp file next to path and renames it
// into place, so a partially written download is never visible.
func writeFileAtomic(target string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+"."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename %s: %w", target, err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
